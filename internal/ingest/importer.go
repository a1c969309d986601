package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wonny/fincore/internal/contracts"
	"github.com/wonny/fincore/pkg/logger"
)

// TypeAll selects every statement type
const TypeAll = "all"

// ErrFileRequiresType is returned when an explicit file is imported without a concrete type
var ErrFileRequiresType = errors.New("importing a specific file requires --type (balancesheet, fina_indicator, income, cashflow)")

// ErrFileOutsideBase is returned for a confined request whose file is not under the import base dir
var ErrFileOutsideBase = errors.New("file must be a relative path inside the import base dir")

// Request describes one import invocation
type Request struct {
	File      string // optional, relative to the base dir; requires a concrete Type
	Type      string // all, balancesheet, fina_indicator, income, cashflow
	ChunkSize int
	MaxRows   int
	Overwrite bool
	// Confined rejects absolute files and files escaping the base dir
	Confined bool
}

// FileReport is the outcome for one source file
type FileReport struct {
	Path   string                  `json:"path"`
	Type   contracts.StatementType `json:"type"`
	Result *BatchResult            `json:"result,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

// Failed reports whether the file could not be imported at all
func (f FileReport) Failed() bool {
	return f.Error != ""
}

// Report aggregates a full import run
type Report struct {
	StartedAt    time.Time     `json:"started_at"`
	ManifestHash string        `json:"manifest_hash"`
	Basics       *BasicsResult `json:"basics,omitempty"`
	Files        []FileReport  `json:"files"`
	Duration     time.Duration `json:"duration"`
}

// Totals sums processed and skipped rows across files
func (r *Report) Totals() (processed, skipped int) {
	for _, f := range r.Files {
		if f.Result != nil {
			processed += f.Result.Processed
			skipped += f.Result.Skipped
		}
	}
	return processed, skipped
}

// Importer runs the stock-master pass and the per-type statement loads
type Importer struct {
	stocks     contracts.StockRepository
	statements contracts.StatementRepository
	manifest   *Manifest
	baseDir    string
	logger     *logger.Logger
}

// NewImporter creates an importer. A nil manifest uses DefaultManifest.
func NewImporter(stocks contracts.StockRepository, statements contracts.StatementRepository, manifest *Manifest, baseDir string, log *logger.Logger) *Importer {
	if manifest == nil {
		manifest = DefaultManifest()
	}
	return &Importer{
		stocks:     stocks,
		statements: statements,
		manifest:   manifest,
		baseDir:    baseDir,
		logger:     log,
	}
}

// Run executes an import. A missing or unreadable file only fails that
// file; the remaining files are still processed.
func (im *Importer) Run(ctx context.Context, req Request) (*Report, error) {
	reqType := strings.ToLower(strings.TrimSpace(req.Type))
	if reqType == "" {
		reqType = TypeAll
	}
	if req.File != "" && reqType == TypeAll {
		return nil, ErrFileRequiresType
	}
	if req.File != "" && req.Confined && !filepath.IsLocal(req.File) {
		return nil, fmt.Errorf("%w: %q", ErrFileOutsideBase, req.File)
	}

	types := contracts.ImportOrder
	if reqType != TypeAll {
		t, err := contracts.ParseStatementType(reqType)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStatementType, req.Type)
		}
		types = []contracts.StatementType{t}
	}

	maxRows := req.MaxRows
	if maxRows <= 0 {
		maxRows = im.manifest.MaxRows
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	report := &Report{
		StartedAt:    time.Now(),
		ManifestHash: im.manifest.Hash(),
	}
	loader := NewLoader(im.stocks, im.statements, im.logger, Options{
		ChunkSize: req.ChunkSize,
		Overwrite: req.Overwrite,
	})

	if req.File != "" {
		report.Files = append(report.Files, im.importFile(ctx, loader, im.resolve(req.File), types[0], maxRows))
		report.Duration = time.Since(report.StartedAt)
		return report, ctx.Err()
	}

	im.importBasics(ctx, report)

	for _, t := range types {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		rel, ok := im.manifest.FileFor(t)
		if !ok {
			im.logger.WithField("type", string(t)).Warn("no file configured, skipping")
			continue
		}
		report.Files = append(report.Files, im.importFile(ctx, loader, im.resolve(rel), t, maxRows))
	}

	report.Duration = time.Since(report.StartedAt)
	processed, skipped := report.Totals()
	im.logger.WithFields(map[string]interface{}{
		"files":     len(report.Files),
		"processed": processed,
		"skipped":   skipped,
		"duration":  report.Duration.String(),
	}).Info("financial data import finished")

	return report, ctx.Err()
}

func (im *Importer) resolve(path string) string {
	if filepath.IsAbs(path) || im.baseDir == "" {
		return path
	}
	return filepath.Join(im.baseDir, path)
}

// importBasics seeds the stock master from the indicator file
func (im *Importer) importBasics(ctx context.Context, report *Report) {
	path := im.resolve(im.manifest.Basics)
	log := im.logger.WithField("path", path)

	rows, err := readFile(path, 0)
	if err != nil {
		log.WithError(err).Warn("stock basics source unavailable, skipping")
		return
	}

	basics, err := ImportStockBasics(ctx, im.stocks, rows)
	if err != nil {
		log.WithError(err).Error("stock basics import failed")
		return
	}
	report.Basics = &basics
	log.WithFields(map[string]interface{}{
		"seen":    basics.Seen,
		"created": basics.Created,
	}).Info("stock basics imported")
}

func (im *Importer) importFile(ctx context.Context, loader *Loader, path string, t contracts.StatementType, maxRows int) FileReport {
	fr := FileReport{Path: path, Type: t}
	log := im.logger.WithFields(map[string]interface{}{
		"path": path,
		"type": string(t),
	})

	rows, err := readFile(path, maxRows)
	if err != nil {
		log.WithError(err).Error("file import aborted")
		fr.Error = err.Error()
		return fr
	}
	if len(rows) == 0 {
		log.Info("file has no data rows")
	}

	result, err := loader.LoadBatch(ctx, rows, t, maxRows)
	fr.Result = &result
	if err != nil {
		fr.Error = err.Error()
	}
	return fr
}

func readFile(path string, maxRows int) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := ReadCSV(f, maxRows)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return rows, nil
}
