package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/fincore/internal/contracts"
	"github.com/wonny/fincore/pkg/logger"
)

// QualityChecker builds and stores coverage snapshots
type QualityChecker interface {
	Check(ctx context.Context, date time.Time) (*contracts.DataQualitySnapshot, error)
	SaveSnapshot(ctx context.Context, snapshot *contracts.DataQualitySnapshot) error
}

// QualityJob records a daily data quality snapshot
type QualityJob struct {
	gate     QualityChecker
	schedule string
	now      func() time.Time
	logger   *logger.Logger
}

// NewQualityJob creates a quality snapshot job
func NewQualityJob(gate QualityChecker, schedule string, log *logger.Logger) *QualityJob {
	return &QualityJob{
		gate:     gate,
		schedule: schedule,
		now:      time.Now,
		logger:   log,
	}
}

// Name returns the job name
func (j *QualityJob) Name() string {
	return "quality_snapshot"
}

// Schedule returns the configured cron expression
func (j *QualityJob) Schedule() string {
	return j.schedule
}

// Run checks coverage for today and saves the snapshot. A failing gate is
// logged, not returned; only check or save errors fail the job.
func (j *QualityJob) Run(ctx context.Context) error {
	now := j.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	snapshot, err := j.gate.Check(ctx, today)
	if err != nil {
		return fmt.Errorf("quality check: %w", err)
	}
	if err := j.gate.SaveSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	weakest, cov := snapshot.Weakest()
	log := j.logger.WithFields(map[string]interface{}{
		"score":        snapshot.QualityScore,
		"weakest":      weakest,
		"weakest_cov":  cov,
		"total_stocks": snapshot.TotalStocks,
		"valid_stocks": snapshot.ValidStocks,
	})
	if snapshot.Passed {
		log.Info("Quality gate passed")
	} else {
		log.Warn("Quality gate failed")
	}
	return nil
}
