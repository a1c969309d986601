package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/fincore/internal/contracts"
	"github.com/wonny/fincore/pkg/logger"
)

var (
	// ErrMissingRequiredField marks rows without ts_code or end_date
	ErrMissingRequiredField = errors.New("missing required field")
	// ErrUnknownStock marks rows whose symbol is not in the stock master
	ErrUnknownStock = errors.New("unknown stock")
)

// Skip reasons reported in BatchResult.SkipReasons
const (
	SkipMissingField     = "missing_required_field"
	SkipUnknownStock     = "unknown_stock"
	SkipLookupError      = "lookup_error"
	SkipInvalidDate      = "invalid_report_date"
	SkipMappingFailed    = "mapping_failed"
	SkipDuplicate        = "duplicate"
	SkipPersistenceError = "persistence_error"
)

const (
	// DefaultMaxRows caps rows per file when the caller gives no limit
	DefaultMaxRows = 200
	// DefaultChunkSize is the number of records written per persistence chunk
	DefaultChunkSize = 1000
)

// Options controls persistence behavior of a Loader
type Options struct {
	ChunkSize int
	Overwrite bool // replace existing natural keys instead of leaving them untouched
}

// BatchResult is the outcome of one LoadBatch call
type BatchResult struct {
	RunID       uuid.UUID               `json:"run_id"`
	Type        contracts.StatementType `json:"type"`
	Total       int                     `json:"total"`
	Processed   int                     `json:"processed"`
	Skipped     int                     `json:"skipped"`
	SkipReasons map[string]int          `json:"skip_reasons"`
	Duration    time.Duration           `json:"duration"`
}

func (r *BatchResult) skip(reason string) {
	r.Skipped++
	r.SkipReasons[reason]++
}

// Loader validates, maps and persists statement rows
// SSOT: the only writer of statement records
type Loader struct {
	stocks     contracts.StockRepository
	statements contracts.StatementRepository
	logger     *logger.Logger
	opts       Options
}

// NewLoader creates a new statement loader
func NewLoader(stocks contracts.StockRepository, statements contracts.StatementRepository, log *logger.Logger, opts Options) *Loader {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	return &Loader{
		stocks:     stocks,
		statements: statements,
		logger:     log,
		opts:       opts,
	}
}

// pendingRow is a mapped record waiting for its chunk to be flushed
type pendingRow struct {
	index  int
	raw    map[string]string
	record *contracts.StatementRecord
}

// LoadBatch processes rows in source order, capped at maxRows (<= 0 means 200).
// Row-level problems are skipped and counted; only context cancellation
// returns an error.
func (l *Loader) LoadBatch(ctx context.Context, rows []map[string]string, t contracts.StatementType, maxRows int) (BatchResult, error) {
	start := time.Now()
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	if len(rows) > maxRows {
		rows = rows[:maxRows]
	}

	result := BatchResult{
		RunID:       uuid.New(),
		Type:        t,
		Total:       len(rows),
		SkipReasons: make(map[string]int),
	}
	log := l.logger.WithFields(map[string]interface{}{
		"run_id": result.RunID.String(),
		"type":   string(t),
	})

	resolved := make(map[string]*contracts.Stock)
	pending := make([]pendingRow, 0, l.opts.ChunkSize)

	for i, raw := range rows {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("load %s batch: %w", t, err)
		}

		rowNum := i + 1
		code := strings.TrimSpace(raw["ts_code"])
		endDate := strings.TrimSpace(raw["end_date"])
		rowLog := log.WithFields(map[string]interface{}{
			"row":      rowNum,
			"ts_code":  code,
			"end_date": endDate,
		})

		if code == "" || endDate == "" {
			rowLog.WithError(ErrMissingRequiredField).WithField("reason", SkipMissingField).Warn("row skipped")
			result.skip(SkipMissingField)
			continue
		}

		stock, err := l.resolve(ctx, resolved, contracts.SymbolFromCode(code))
		if errors.Is(err, ErrUnknownStock) {
			rowLog.WithError(err).WithField("reason", SkipUnknownStock).Warn("row skipped")
			result.skip(SkipUnknownStock)
			continue
		}
		if err != nil {
			rowLog.WithError(err).WithField("reason", SkipLookupError).Error("row skipped")
			result.skip(SkipLookupError)
			continue
		}

		record, reason, err := buildRecord(stock, t, raw, endDate)
		if err != nil {
			rowLog.WithError(err).WithFields(map[string]interface{}{
				"reason": reason,
				"record": raw,
			}).Error("row skipped")
			result.skip(reason)
			continue
		}

		pending = append(pending, pendingRow{index: rowNum, raw: raw, record: record})
		if len(pending) >= l.opts.ChunkSize {
			l.flush(ctx, log, pending, &result)
			pending = pending[:0]
		}
	}

	if len(pending) > 0 {
		l.flush(ctx, log, pending, &result)
	}

	result.Duration = time.Since(start)
	log.WithFields(map[string]interface{}{
		"total":     result.Total,
		"processed": result.Processed,
		"skipped":   result.Skipped,
		"duration":  result.Duration.String(),
	}).Info("statement batch loaded")

	return result, nil
}

// resolve looks up a symbol once per batch
func (l *Loader) resolve(ctx context.Context, cache map[string]*contracts.Stock, symbol string) (*contracts.Stock, error) {
	if stock, seen := cache[symbol]; seen {
		if stock == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStock, symbol)
		}
		return stock, nil
	}

	stock, err := l.stocks.GetBySymbol(ctx, symbol)
	if errors.Is(err, contracts.ErrNotFound) {
		cache[symbol] = nil
		return nil, fmt.Errorf("%w: %s", ErrUnknownStock, symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", symbol, err)
	}

	cache[symbol] = stock
	return stock, nil
}

// buildRecord maps one validated row into a canonical record
func buildRecord(stock *contracts.Stock, t contracts.StatementType, raw map[string]string, endDate string) (*contracts.StatementRecord, string, error) {
	reportDate, err := NormalizeReportDate(endDate)
	if err != nil {
		return nil, SkipInvalidDate, err
	}

	fields, err := MapFields(t, raw)
	if err != nil {
		return nil, SkipMappingFailed, err
	}

	return &contracts.StatementRecord{
		StockID:      stock.ID,
		Symbol:       stock.Symbol,
		Type:         t,
		ReportDate:   reportDate,
		ReportPeriod: PeriodOf(reportDate),
		Fields:       fields,
		RawPayload:   RawPayload(raw),
	}, "", nil
}

// flush writes one chunk. When the chunk fails as a whole, rows are retried
// one by one so a single bad row cannot sink its neighbours.
func (l *Loader) flush(ctx context.Context, log *logger.Logger, chunk []pendingRow, result *BatchResult) {
	records := make([]*contracts.StatementRecord, len(chunk))
	for i, p := range chunk {
		records[i] = p.record
	}

	written, err := l.statements.InsertBatch(ctx, records, l.opts.Overwrite)
	if err == nil && len(written) == len(records) {
		for _, ok := range written {
			if ok {
				result.Processed++
			} else {
				result.skip(SkipDuplicate)
			}
		}
		return
	}

	if err != nil {
		log.WithError(err).WithField("chunk_size", len(chunk)).Warn("chunk insert failed, retrying row by row")
	}

	for _, p := range chunk {
		written, err := l.statements.InsertBatch(ctx, []*contracts.StatementRecord{p.record}, l.opts.Overwrite)
		if err != nil || len(written) != 1 {
			if err == nil {
				err = fmt.Errorf("insert reported %d results for 1 record", len(written))
			}
			log.WithError(err).WithFields(map[string]interface{}{
				"row":         p.index,
				"reason":      SkipPersistenceError,
				"report_date": p.record.ReportDate.Format("2006-01-02"),
				"stock_id":    p.record.StockID,
				"record":      p.raw,
			}).Error("row skipped")
			result.skip(SkipPersistenceError)
			continue
		}
		if written[0] {
			result.Processed++
		} else {
			result.skip(SkipDuplicate)
		}
	}
}
