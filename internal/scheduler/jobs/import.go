package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/fincore/internal/ingest"
	"github.com/wonny/fincore/pkg/logger"
)

// Importer runs a statement import
type Importer interface {
	Run(ctx context.Context, req ingest.Request) (*ingest.Report, error)
}

// ImportJob re-imports every configured statement file and then drops
// cached financial views
// SSOT: the scheduled import lives here only
type ImportJob struct {
	importer   Importer
	invalidate func(ctx context.Context) error
	schedule   string
	request    ingest.Request
	logger     *logger.Logger
}

// NewImportJob creates an import job. invalidate may be nil.
func NewImportJob(importer Importer, invalidate func(ctx context.Context) error, schedule string, req ingest.Request, log *logger.Logger) *ImportJob {
	return &ImportJob{
		importer:   importer,
		invalidate: invalidate,
		schedule:   schedule,
		request:    req,
		logger:     log,
	}
}

// Name returns the job name
func (j *ImportJob) Name() string {
	return "financial_import"
}

// Schedule returns the configured cron expression
func (j *ImportJob) Schedule() string {
	return j.schedule
}

// Run executes the import. Files that fail individually are logged but do
// not fail the job.
func (j *ImportJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled financial import")

	report, err := j.importer.Run(ctx, j.request)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	for _, f := range report.Files {
		if f.Failed() {
			j.logger.WithFields(map[string]interface{}{
				"path":  f.Path,
				"type":  string(f.Type),
				"error": f.Error,
			}).Warn("file import failed")
		}
	}

	if j.invalidate != nil {
		if err := j.invalidate(ctx); err != nil {
			return fmt.Errorf("invalidate cache: %w", err)
		}
	}

	processed, skipped := report.Totals()
	j.logger.WithFields(map[string]interface{}{
		"processed": processed,
		"skipped":   skipped,
	}).Info("Scheduled financial import completed")
	return nil
}
