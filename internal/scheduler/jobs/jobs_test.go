package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fincore/internal/contracts"
	"github.com/wonny/fincore/internal/export"
	"github.com/wonny/fincore/internal/ingest"
	"github.com/wonny/fincore/pkg/logger"
)

type fakeImporter struct {
	req    ingest.Request
	report *ingest.Report
	err    error
}

func (f *fakeImporter) Run(_ context.Context, req ingest.Request) (*ingest.Report, error) {
	f.req = req
	return f.report, f.err
}

func TestImportJob(t *testing.T) {
	t.Run("imports then invalidates", func(t *testing.T) {
		imp := &fakeImporter{report: &ingest.Report{Files: []ingest.FileReport{
			{Path: "income.csv", Type: contracts.StatementIncome, Result: &ingest.BatchResult{Processed: 2}},
			{Path: "missing.csv", Type: contracts.StatementCashFlow, Error: "no such file"},
		}}}
		invalidated := 0
		job := NewImportJob(imp, func(context.Context) error { invalidated++; return nil },
			"0 0 18 * * *", ingest.Request{Type: ingest.TypeAll, Overwrite: true}, logger.Nop())

		assert.Equal(t, "financial_import", job.Name())
		assert.Equal(t, "0 0 18 * * *", job.Schedule())
		require.NoError(t, job.Run(context.Background()))
		assert.Equal(t, 1, invalidated)
		assert.True(t, imp.req.Overwrite)
	})

	t.Run("import error skips invalidation", func(t *testing.T) {
		imp := &fakeImporter{err: errors.New("db down")}
		invalidated := 0
		job := NewImportJob(imp, func(context.Context) error { invalidated++; return nil }, "@daily", ingest.Request{}, logger.Nop())

		assert.Error(t, job.Run(context.Background()))
		assert.Equal(t, 0, invalidated)
	})

	t.Run("invalidation error fails job", func(t *testing.T) {
		imp := &fakeImporter{report: &ingest.Report{}}
		job := NewImportJob(imp, func(context.Context) error { return errors.New("redis down") }, "@daily", ingest.Request{}, logger.Nop())
		assert.Error(t, job.Run(context.Background()))
	})
}

type fakeGate struct {
	checked time.Time
	saved   *contracts.DataQualitySnapshot
	err     error
}

func (f *fakeGate) Check(_ context.Context, date time.Time) (*contracts.DataQualitySnapshot, error) {
	f.checked = date
	if f.err != nil {
		return nil, f.err
	}
	return &contracts.DataQualitySnapshot{Date: date, QualityScore: 0.4}, nil
}

func (f *fakeGate) SaveSnapshot(_ context.Context, s *contracts.DataQualitySnapshot) error {
	f.saved = s
	return nil
}

func TestQualityJob(t *testing.T) {
	gate := &fakeGate{}
	job := NewQualityJob(gate, "0 30 18 * * *", logger.Nop())
	job.now = func() time.Time { return time.Date(2024, 5, 6, 18, 30, 0, 0, time.UTC) }

	// a failing gate still saves its snapshot
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), gate.checked)
	require.NotNil(t, gate.saved)
	assert.False(t, gate.saved.Passed)

	gate.err = errors.New("boom")
	assert.Error(t, job.Run(context.Background()))
}

type fakeExporter struct {
	summary *export.Summary
	err     error
}

func (f fakeExporter) Export(context.Context, []string, int) (*export.Summary, error) {
	return f.summary, f.err
}

func TestExportJob(t *testing.T) {
	tests := []struct {
		name    string
		summary *export.Summary
		err     error
		wantErr bool
	}{
		{"written", &export.Summary{Written: 3, Failed: 1}, nil, false},
		{"nothing to export", &export.Summary{}, nil, false},
		{"all failed", &export.Summary{Failed: 2}, nil, true},
		{"setup error", nil, errors.New("mkdir"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewExportJob(fakeExporter{tt.summary, tt.err}, "@daily", 250, logger.Nop())
			err := job.Run(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
