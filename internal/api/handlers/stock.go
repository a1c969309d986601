package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/fincore/internal/analytics"
	"github.com/wonny/fincore/internal/indicators"
	"github.com/wonny/fincore/pkg/logger"
)

// StockHandler serves the per-stock analytics endpoints
// SSOT: stock API handlers live here only
type StockHandler struct {
	service *analytics.Service
	logger  *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(service *analytics.Service, log *logger.Logger) *StockHandler {
	return &StockHandler{
		service: service,
		logger:  log,
	}
}

// limitParam reads ?limit=, falling back to 0 (service default) when absent or invalid
func limitParam(r *http.Request) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, analytics.ErrStockNotFound), errors.Is(err, analytics.ErrNoFinancialData):
		return http.StatusNotFound
	case errors.Is(err, analytics.ErrUnsupportedPeriod),
		errors.Is(err, analytics.ErrUnknownMetric),
		errors.Is(err, analytics.ErrIndustryRequired):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *StockHandler) fail(w http.ResponseWriter, err error, msg string, fields map[string]interface{}) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithFields(fields).Error(msg)
		respondError(w, status, msg)
		return
	}
	respondError(w, status, err.Error())
}

func ok(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// GetHistory returns price bars, newest first
// GET /api/stocks/{symbol}/history?period=day&limit=100
func (h *StockHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	period := r.URL.Query().Get("period")

	bars, err := h.service.GetHistoricalData(r.Context(), symbol, period, limitParam(r))
	if err != nil {
		h.fail(w, err, "Failed to retrieve history", map[string]interface{}{"symbol": symbol, "period": period})
		return
	}
	ok(w, bars)
}

// GetIndicators computes technical indicators over the price history
// GET /api/stocks/{symbol}/indicators?names=ma,macd&period=day&limit=100
func (h *StockHandler) GetIndicators(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	q := r.URL.Query()
	names := indicators.ParseNames(q.Get("names"))

	report, err := h.service.Indicators(r.Context(), symbol, q.Get("period"), names, limitParam(r))
	if err != nil {
		h.fail(w, err, "Failed to calculate indicators", map[string]interface{}{"symbol": symbol})
		return
	}
	ok(w, report)
}

// GetFinancials returns indicator records, newest first
// GET /api/stocks/{symbol}/financials?period=quarter&limit=8
func (h *StockHandler) GetFinancials(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	records, err := h.service.GetFinancialData(r.Context(), symbol, r.URL.Query().Get("period"), limitParam(r))
	if err != nil {
		h.fail(w, err, "Failed to retrieve financial data", map[string]interface{}{"symbol": symbol})
		return
	}
	ok(w, records)
}

// GetCombined returns the joined income, indicator and cash flow view
// GET /api/stocks/{symbol}/financials/combined?limit=8
func (h *StockHandler) GetCombined(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	rows, err := h.service.CombinedFinancials(r.Context(), symbol, limitParam(r))
	if err != nil {
		h.fail(w, err, "Failed to retrieve combined financials", map[string]interface{}{"symbol": symbol})
		return
	}
	ok(w, rows)
}

// GetHealthScore scores the latest indicator record
// GET /api/stocks/{symbol}/health-score
func (h *StockHandler) GetHealthScore(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	report, err := h.service.FinancialHealth(r.Context(), symbol)
	if err != nil {
		h.fail(w, err, "Failed to score financial health", map[string]interface{}{"symbol": symbol})
		return
	}
	ok(w, report)
}

// GetTrend compares the two latest report dates
// GET /api/stocks/{symbol}/trend
func (h *StockHandler) GetTrend(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	report, err := h.service.TrendAnalysis(r.Context(), symbol)
	if err != nil {
		h.fail(w, err, "Failed to analyze trend", map[string]interface{}{"symbol": symbol})
		return
	}
	ok(w, report)
}

// GetIndustry ranks an industry by one indicator field
// GET /api/industries/{industry}?metric=roe
func (h *StockHandler) GetIndustry(w http.ResponseWriter, r *http.Request) {
	industry := mux.Vars(r)["industry"]

	report, err := h.service.IndustryComparison(r.Context(), industry, r.URL.Query().Get("metric"))
	if err != nil {
		h.fail(w, err, "Failed to compare industry", map[string]interface{}{"industry": industry})
		return
	}
	ok(w, report)
}
