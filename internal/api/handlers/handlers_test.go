package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fincore/internal/analytics"
	"github.com/wonny/fincore/internal/contracts"
	"github.com/wonny/fincore/internal/ingest"
	"github.com/wonny/fincore/internal/store"
	"github.com/wonny/fincore/pkg/config"
	"github.com/wonny/fincore/pkg/logger"
)

func newStockRouter(t *testing.T) *mux.Router {
	t.Helper()
	ctx := context.Background()

	mem := store.NewMemory()
	_, err := mem.InsertIfAbsent(ctx, []*contracts.Stock{
		{Symbol: "600000", TSCode: "600000.SH", Name: "Pudong Bank", Market: contracts.MarketSH, Industry: "Bank"},
		{Symbol: "000001", TSCode: "000001.SZ", Name: "Ping An Bank", Market: contracts.MarketSZ, Industry: "Bank"},
	})
	require.NoError(t, err)

	st, err := mem.GetBySymbol(ctx, "600000")
	require.NoError(t, err)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 40; i++ {
		c := 10 + float64(i)*0.1
		mem.AddPrices(st.ID, contracts.PriceBar{
			Date: start.AddDate(0, 0, i), Open: c, High: c + 0.5, Low: c - 0.5, Close: c, Volume: 1000,
		})
	}

	_, err = mem.InsertBatch(ctx, []*contracts.StatementRecord{{
		StockID:      st.ID,
		Symbol:       st.Symbol,
		Type:         contracts.StatementIndicator,
		ReportDate:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		ReportPeriod: contracts.PeriodQuarter,
		Fields: map[string]decimal.NullDecimal{
			"roe":               decimal.NewNullDecimal(decimal.RequireFromString("12.5")),
			"debt_to_assets":    decimal.NewNullDecimal(decimal.RequireFromString("45")),
			"grossprofit_margin": decimal.NewNullDecimal(decimal.RequireFromString("30")),
		},
	}}, false)
	require.NoError(t, err)

	svc := analytics.NewService(mem, mem, mem, nil, config.CacheConfig{}, logger.Nop())
	h := NewStockHandler(svc, logger.Nop())

	r := mux.NewRouter()
	r.HandleFunc("/api/stocks/{symbol}/history", h.GetHistory)
	r.HandleFunc("/api/stocks/{symbol}/indicators", h.GetIndicators)
	r.HandleFunc("/api/stocks/{symbol}/financials", h.GetFinancials)
	r.HandleFunc("/api/stocks/{symbol}/financials/combined", h.GetCombined)
	r.HandleFunc("/api/stocks/{symbol}/health-score", h.GetHealthScore)
	r.HandleFunc("/api/stocks/{symbol}/trend", h.GetTrend)
	r.HandleFunc("/api/industries/{industry}", h.GetIndustry)
	return r
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStockHandlerStatus(t *testing.T) {
	r := newStockRouter(t)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"history", "/api/stocks/600000/history?limit=10", http.StatusOK},
		{"weekly history", "/api/stocks/600000/history?period=week", http.StatusOK},
		{"bad period", "/api/stocks/600000/history?period=year", http.StatusBadRequest},
		{"unknown stock", "/api/stocks/999999/history", http.StatusNotFound},
		{"indicators", "/api/stocks/600000/indicators?names=ma,rsi", http.StatusOK},
		{"financials", "/api/stocks/600000/financials", http.StatusOK},
		{"financials bad period", "/api/stocks/600000/financials?period=month", http.StatusBadRequest},
		{"combined", "/api/stocks/600000/financials/combined", http.StatusOK},
		{"health score", "/api/stocks/600000/health-score", http.StatusOK},
		{"health without statements", "/api/stocks/000001/health-score", http.StatusNotFound},
		{"trend", "/api/stocks/600000/trend", http.StatusOK},
		{"industry", "/api/industries/Bank?metric=roe", http.StatusOK},
		{"industry bad metric", "/api/industries/Bank?metric=price", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(r, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestGetHistoryBody(t *testing.T) {
	r := newStockRouter(t)

	rec := serve(r, http.MethodGet, "/api/stocks/600000/history?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool                 `json:"success"`
		Data    []contracts.PriceBar `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.Len(t, body.Data, 5)
	assert.True(t, body.Data[0].Date.After(body.Data[4].Date), "newest first")
}

func TestGetIndustryBody(t *testing.T) {
	r := newStockRouter(t)

	rec := serve(r, http.MethodGet, "/api/industries/Bank", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data analytics.IndustryReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "roe", body.Data.Metric)
	require.Len(t, body.Data.Entries, 1)
	assert.Equal(t, "600000", body.Data.Entries[0].Symbol)
	assert.InDelta(t, 12.5, body.Data.Statistics.Average, 1e-9)
}

type fakeQuality struct {
	snapshot *contracts.DataQualitySnapshot
	err      error
}

func (f fakeQuality) LatestSnapshot(context.Context) (*contracts.DataQualitySnapshot, error) {
	return f.snapshot, f.err
}

type fakeImporter struct {
	got    ingest.Request
	report *ingest.Report
	err    error
}

func (f *fakeImporter) Run(_ context.Context, req ingest.Request) (*ingest.Report, error) {
	f.got = req
	return f.report, f.err
}

func TestGetQuality(t *testing.T) {
	tests := []struct {
		name   string
		source QualitySource
		status int
	}{
		{"snapshot", fakeQuality{snapshot: &contracts.DataQualitySnapshot{QualityScore: 0.8, Passed: true}}, http.StatusOK},
		{"none recorded", fakeQuality{err: contracts.ErrNotFound}, http.StatusNotFound},
		{"failure", fakeQuality{err: errors.New("boom")}, http.StatusInternalServerError},
		{"not configured", nil, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewDataHandler(tt.source, nil, nil, logger.Nop())
			rec := serve(http.HandlerFunc(h.GetQuality), http.MethodGet, "/api/data/quality", "")
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestImport(t *testing.T) {
	t.Run("runs and invalidates", func(t *testing.T) {
		imp := &fakeImporter{report: &ingest.Report{Files: []ingest.FileReport{{
			Type:   contracts.StatementIncome,
			Result: &ingest.BatchResult{Processed: 3, Skipped: 1},
		}}}}
		hooked := false
		h := NewDataHandler(nil, imp, func(context.Context) error { hooked = true; return nil }, logger.Nop())

		rec := serve(http.HandlerFunc(h.Import), http.MethodPost, "/api/data/import",
			`{"type":"income","overwrite":true,"chunk_size":50}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		assert.Equal(t, "income", imp.got.Type)
		assert.True(t, imp.got.Overwrite)
		assert.Equal(t, 50, imp.got.ChunkSize)
		assert.True(t, imp.got.Confined)
		assert.True(t, hooked)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, float64(3), body["processed"])
		assert.Equal(t, float64(1), body["skipped"])
	})

	t.Run("bad request", func(t *testing.T) {
		imp := &fakeImporter{err: ingest.ErrFileRequiresType}
		h := NewDataHandler(nil, imp, nil, logger.Nop())
		rec := serve(http.HandlerFunc(h.Import), http.MethodPost, "/api/data/import", `{"file":"x.csv"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("file outside base dir", func(t *testing.T) {
		mem := store.NewMemory()
		h := NewDataHandler(nil, ingest.NewImporter(mem, mem, nil, t.TempDir(), logger.Nop()), nil, logger.Nop())

		for _, file := range []string{"/etc/hostname", "../financial/income_200.csv", "financial/../../x.csv"} {
			rec := serve(http.HandlerFunc(h.Import), http.MethodPost, "/api/data/import",
				`{"type":"income","file":"`+file+`"}`)
			assert.Equal(t, http.StatusBadRequest, rec.Code, file)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		h := NewDataHandler(nil, &fakeImporter{}, nil, logger.Nop())
		rec := serve(http.HandlerFunc(h.Import), http.MethodPost, "/api/data/import", `{`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
