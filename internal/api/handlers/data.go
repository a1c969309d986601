package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/fincore/internal/contracts"
	"github.com/wonny/fincore/internal/ingest"
	"github.com/wonny/fincore/pkg/logger"
)

// QualitySource returns the most recent data quality snapshot
type QualitySource interface {
	LatestSnapshot(ctx context.Context) (*contracts.DataQualitySnapshot, error)
}

// ImportRunner executes a statement import
type ImportRunner interface {
	Run(ctx context.Context, req ingest.Request) (*ingest.Report, error)
}

// DataHandler handles data quality and import endpoints
// SSOT: data API handlers live here only
type DataHandler struct {
	quality  QualitySource
	importer ImportRunner
	onImport func(ctx context.Context) error
	logger   *logger.Logger
}

// NewDataHandler creates a new data handler. onImport runs after a
// successful import and may be nil.
func NewDataHandler(quality QualitySource, importer ImportRunner, onImport func(ctx context.Context) error, log *logger.Logger) *DataHandler {
	return &DataHandler{
		quality:  quality,
		importer: importer,
		onImport: onImport,
		logger:   log,
	}
}

// GetQuality returns the latest data quality snapshot
// GET /api/data/quality
func (h *DataHandler) GetQuality(w http.ResponseWriter, r *http.Request) {
	if h.quality == nil {
		respondError(w, http.StatusServiceUnavailable, "quality snapshots are not available")
		return
	}

	snapshot, err := h.quality.LatestSnapshot(r.Context())
	if errors.Is(err, contracts.ErrNotFound) {
		respondError(w, http.StatusNotFound, "no quality snapshot recorded")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get quality snapshot")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve quality snapshot")
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}

// ImportRequest is the body of an import call
type ImportRequest struct {
	Type      string `json:"type"` // all, balancesheet, fina_indicator, income, cashflow
	File      string `json:"file"` // optional, relative to the import base dir
	ChunkSize int    `json:"chunk_size"`
	MaxRows   int    `json:"max_rows"`
	Overwrite bool   `json:"overwrite"`
}

// Import runs a statement import synchronously
// POST /api/data/import
func (h *DataHandler) Import(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil {
		respondError(w, http.StatusServiceUnavailable, "import is not available")
		return
	}

	var req ImportRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	h.logger.WithFields(map[string]interface{}{
		"type":      req.Type,
		"file":      req.File,
		"overwrite": req.Overwrite,
	}).Info("Starting import")

	report, err := h.importer.Run(r.Context(), ingest.Request{
		File:      req.File,
		Type:      req.Type,
		ChunkSize: req.ChunkSize,
		MaxRows:   req.MaxRows,
		Overwrite: req.Overwrite,
		Confined:  true,
	})
	if errors.Is(err, ingest.ErrFileRequiresType) ||
		errors.Is(err, ingest.ErrUnknownStatementType) ||
		errors.Is(err, ingest.ErrFileOutsideBase) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Import failed")
		respondError(w, http.StatusInternalServerError, "Import failed")
		return
	}

	if h.onImport != nil {
		if err := h.onImport(r.Context()); err != nil {
			h.logger.WithError(err).Warn("Post-import hook failed")
		}
	}

	processed, skipped := report.Totals()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"processed": processed,
		"skipped":   skipped,
		"data":      report,
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
