package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/fincore/internal/export"
	"github.com/wonny/fincore/pkg/logger"
)

// Exporter writes indicator files
type Exporter interface {
	Export(ctx context.Context, symbols []string, limit int) (*export.Summary, error)
}

// ExportJob refreshes the indicator files of every active stock
type ExportJob struct {
	exporter Exporter
	schedule string
	limit    int
	logger   *logger.Logger
}

// NewExportJob creates an export job over the last limit bars (0 = all)
func NewExportJob(exporter Exporter, schedule string, limit int, log *logger.Logger) *ExportJob {
	return &ExportJob{
		exporter: exporter,
		schedule: schedule,
		limit:    limit,
		logger:   log,
	}
}

// Name returns the job name
func (j *ExportJob) Name() string {
	return "indicator_export"
}

// Schedule returns the configured cron expression
func (j *ExportJob) Schedule() string {
	return j.schedule
}

// Run exports all active stocks. The job fails only if nothing could be written.
func (j *ExportJob) Run(ctx context.Context) error {
	summary, err := j.exporter.Export(ctx, nil, j.limit)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if summary.Failed > 0 && summary.Written == 0 {
		return fmt.Errorf("export: all %d symbols failed", summary.Failed)
	}
	return nil
}
