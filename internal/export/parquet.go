package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/wonny/fincore/internal/contracts"
	"github.com/wonny/fincore/internal/indicators"
	"github.com/wonny/fincore/pkg/logger"
)

// DefaultWorkers bounds concurrent symbol exports when none is configured
const DefaultWorkers = 4

// IndicatorRow is one trading day of a stock with every indicator channel.
// Channels without enough history are written as nulls.
type IndicatorRow struct {
	Symbol     string    `parquet:"symbol,dict"`
	Date       time.Time `parquet:"date"`
	Open       float64   `parquet:"open"`
	High       float64   `parquet:"high"`
	Low        float64   `parquet:"low"`
	Close      float64   `parquet:"close"`
	Volume     int64     `parquet:"volume"`
	MA5        *float64  `parquet:"ma5,optional"`
	MA10       *float64  `parquet:"ma10,optional"`
	MA20       *float64  `parquet:"ma20,optional"`
	MA60       *float64  `parquet:"ma60,optional"`
	DIF        *float64  `parquet:"macd_dif,optional"`
	DEA        *float64  `parquet:"macd_dea,optional"`
	MACD       *float64  `parquet:"macd,optional"`
	RSI        *float64  `parquet:"rsi,optional"`
	K          *float64  `parquet:"kdj_k,optional"`
	D          *float64  `parquet:"kdj_d,optional"`
	J          *float64  `parquet:"kdj_j,optional"`
	BollUpper  *float64  `parquet:"boll_upper,optional"`
	BollMiddle *float64  `parquet:"boll_middle,optional"`
	BollLower  *float64  `parquet:"boll_lower,optional"`
}

func at(s indicators.Series, i int) *float64 {
	if i >= len(s) {
		return nil
	}
	return s[i].Ptr()
}

// Rows computes every indicator over bars (any order) and flattens the
// result into one row per bar, oldest first
func Rows(symbol string, bars []contracts.PriceBar) []IndicatorRow {
	asc := contracts.SortedAscending(bars)
	res := indicators.Calculate(asc, indicators.AllNames)

	rows := make([]IndicatorRow, len(asc))
	for i, b := range asc {
		rows[i] = IndicatorRow{
			Symbol: symbol,
			Date:   b.Date,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
			MA5:    at(res.MA["ma5"], i),
			MA10:   at(res.MA["ma10"], i),
			MA20:   at(res.MA["ma20"], i),
			MA60:   at(res.MA["ma60"], i),
			RSI:    at(res.RSI, i),
		}
		if res.MACD != nil {
			rows[i].DIF = at(res.MACD.DIF, i)
			rows[i].DEA = at(res.MACD.DEA, i)
			rows[i].MACD = at(res.MACD.MACD, i)
		}
		if res.KDJ != nil {
			rows[i].K = at(res.KDJ.K, i)
			rows[i].D = at(res.KDJ.D, i)
			rows[i].J = at(res.KDJ.J, i)
		}
		if res.Boll != nil {
			rows[i].BollUpper = at(res.Boll.Upper, i)
			rows[i].BollMiddle = at(res.Boll.Middle, i)
			rows[i].BollLower = at(res.Boll.Lower, i)
		}
	}
	return rows
}

// WriteFile writes rows to path with Snappy compression
func WriteFile(path string, rows []IndicatorRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w := parquet.NewGenericWriter[IndicatorRow](f,
		parquet.Compression(&parquet.Snappy),
		parquet.PageBufferSize(64*1024),
	)
	if _, err := w.Write(rows); err != nil {
		w.Close()
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	// footer first, then the file
	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return f.Close()
}

// FileResult is the outcome for one symbol
type FileResult struct {
	Symbol string `json:"symbol"`
	Path   string `json:"path,omitempty"`
	Rows   int    `json:"rows"`
	Error  string `json:"error,omitempty"`
}

// Summary aggregates one export run, ordered by symbol
type Summary struct {
	Files    []FileResult  `json:"files"`
	Written  int           `json:"written"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Exporter writes per-symbol indicator files
type Exporter struct {
	stocks  contracts.StockRepository
	prices  contracts.PriceRepository
	dir     string
	workers int
	logger  *logger.Logger
}

// NewExporter creates an exporter writing into dir
func NewExporter(stocks contracts.StockRepository, prices contracts.PriceRepository, dir string, workers int, log *logger.Logger) *Exporter {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Exporter{
		stocks:  stocks,
		prices:  prices,
		dir:     dir,
		workers: workers,
		logger:  log,
	}
}

// Path is the output file of symbol
func (e *Exporter) Path(symbol string) string {
	return filepath.Join(e.dir, symbol+"_indicators.parquet")
}

// Export writes the last limit bars (0 = all) of each symbol. An empty
// symbol list exports every active stock. Per-symbol failures are recorded
// in the summary; only setup errors and cancellation are returned.
func (e *Exporter) Export(ctx context.Context, symbols []string, limit int) (*Summary, error) {
	start := time.Now()
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	if len(symbols) == 0 {
		stocks, err := e.stocks.List(ctx, contracts.StockActive)
		if err != nil {
			return nil, fmt.Errorf("list stocks: %w", err)
		}
		for _, s := range stocks {
			symbols = append(symbols, s.Symbol)
		}
	}

	results := make([]FileResult, len(symbols))
	sem := make(chan struct{}, e.workers)
	var wg sync.WaitGroup

	for i, symbol := range symbols {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, symbol string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = e.exportOne(ctx, symbol, limit)
		}(i, symbol)
	}
	wg.Wait()

	summary := &Summary{}
	for _, r := range results {
		if r.Symbol == "" {
			continue // not started before cancellation
		}
		switch {
		case r.Error != "":
			summary.Failed++
		case r.Rows == 0:
			summary.Skipped++
		default:
			summary.Written++
		}
		summary.Files = append(summary.Files, r)
	}
	sort.Slice(summary.Files, func(i, j int) bool { return summary.Files[i].Symbol < summary.Files[j].Symbol })
	summary.Duration = time.Since(start)

	e.logger.WithFields(map[string]interface{}{
		"written":  summary.Written,
		"skipped":  summary.Skipped,
		"failed":   summary.Failed,
		"duration": summary.Duration.String(),
	}).Info("Indicator export finished")

	return summary, ctx.Err()
}

func (e *Exporter) exportOne(ctx context.Context, symbol string, limit int) FileResult {
	res := FileResult{Symbol: symbol}
	log := e.logger.WithField("symbol", symbol)

	st, err := e.stocks.GetBySymbol(ctx, symbol)
	if err != nil {
		if errors.Is(err, contracts.ErrNotFound) {
			err = fmt.Errorf("unknown stock %s", symbol)
		}
		res.Error = err.Error()
		log.WithError(err).Warn("export skipped")
		return res
	}

	bars, err := e.prices.ListRecent(ctx, st.ID, limit)
	if err != nil {
		res.Error = err.Error()
		log.WithError(err).Error("load prices failed")
		return res
	}
	if len(bars) == 0 {
		log.Debug("no prices, nothing to export")
		return res
	}

	path := e.Path(symbol)
	if err := WriteFile(path, Rows(symbol, bars)); err != nil {
		res.Error = err.Error()
		log.WithError(err).Error("write parquet failed")
		return res
	}
	res.Path = path
	res.Rows = len(bars)
	return res
}
