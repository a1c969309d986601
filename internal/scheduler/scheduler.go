package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wonny/fincore/pkg/logger"
)

// Option configures a Scheduler
type Option func(*Scheduler)

// WithRetry sets how often a failed run is retried and the pause between attempts
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(s *Scheduler) {
		s.maxRetries = maxRetries
		s.retryDelay = delay
	}
}

type entry struct {
	job     Job
	id      cron.EntryID
	history *JobHistory
	running bool
}

// Scheduler runs jobs on cron schedules. A job never overlaps with itself:
// a trigger that fires while the previous run is active is recorded as skipped.
// SSOT: schedules are managed here only
type Scheduler struct {
	cron   *cron.Cron
	logger *logger.Logger

	mu      sync.RWMutex
	entries map[string]*entry

	ctx    context.Context
	cancel context.CancelFunc

	maxRetries int
	retryDelay time.Duration
}

// New creates a scheduler that parses six-field (seconds) cron expressions
func New(log *logger.Logger, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		logger:     log,
		entries:    make(map[string]*entry),
		ctx:        ctx,
		cancel:     cancel,
		maxRetries: 2,
		retryDelay: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddJob registers a job under its name
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("job %s already exists", name)
	}

	id, err := s.cron.AddFunc(job.Schedule(), func() {
		s.execute(s.ctx, name)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.entries[name] = &entry{job: job, id: id, history: &JobHistory{}}

	s.logger.WithFields(map[string]interface{}{
		"job":      name,
		"schedule": job.Schedule(),
	}).Info("Job added to scheduler")
	return nil
}

// RemoveJob unschedules a job and drops its history
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[name]
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}
	s.cron.Remove(e.id)
	delete(s.entries, name)

	s.logger.WithField("job", name).Info("Job removed from scheduler")
	return nil
}

// Start begins firing schedules in the background
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// RunNow executes a job synchronously outside its schedule
func (s *Scheduler) RunNow(ctx context.Context, name string) (JobResult, error) {
	s.mu.RLock()
	_, exists := s.entries[name]
	s.mu.RUnlock()
	if !exists {
		return JobResult{}, fmt.Errorf("job %s not found", name)
	}
	return s.execute(ctx, name), nil
}

// Next returns the next scheduled time of a job
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[name]
	if !exists {
		return time.Time{}, false
	}
	return s.next(e.id), true
}

// next is only filled in by a running cron; before Start it is derived from the schedule
func (s *Scheduler) next(id cron.EntryID) time.Time {
	ce := s.cron.Entry(id)
	if ce.Next.IsZero() && ce.Schedule != nil {
		return ce.Schedule.Next(time.Now())
	}
	return ce.Next
}

func (s *Scheduler) execute(ctx context.Context, name string) JobResult {
	start := time.Now()
	result := JobResult{JobName: name, StartTime: start}

	s.mu.Lock()
	e, exists := s.entries[name]
	if !exists {
		s.mu.Unlock()
		result.Error = "job removed"
		return result
	}
	if e.running {
		result.Skipped = true
		result.EndTime = start
		e.history.Add(result)
		s.mu.Unlock()
		s.logger.WithField("job", name).Warn("Previous run still active, skipping")
		return result
	}
	e.running = true
	job := e.job
	s.mu.Unlock()

	log := s.logger.WithField("job", name)
	log.Info("Job started")

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		result.Attempts++
		lastErr = job.Run(ctx)
		if lastErr == nil || ctx.Err() != nil {
			break
		}

		log.WithFields(map[string]interface{}{
			"attempt": attempt + 1,
			"error":   lastErr.Error(),
		}).Warn("Job execution failed")

		if attempt < s.maxRetries {
			select {
			case <-ctx.Done():
			case <-time.After(s.retryDelay):
			}
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(start)
	result.Success = lastErr == nil
	if lastErr != nil {
		result.Error = lastErr.Error()
	}

	s.mu.Lock()
	e.running = false
	e.history.Add(result)
	s.mu.Unlock()

	if result.Success {
		log.WithField("duration", result.Duration.String()).Info("Job completed successfully")
	} else {
		log.WithFields(map[string]interface{}{
			"duration": result.Duration.String(),
			"attempts": result.Attempts,
			"error":    result.Error,
		}).Error("Job failed")
	}
	return result
}

// JobStats summarizes the history of one job
type JobStats struct {
	JobName      string     `json:"job_name"`
	Schedule     string     `json:"schedule"`
	TotalRuns    int        `json:"total_runs"`
	FailureCount int        `json:"failure_count"`
	SuccessRate  float64    `json:"success_rate"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	NextRun      *time.Time `json:"next_run,omitempty"`
}

// Stats returns per-job statistics ordered by job name
func (s *Scheduler) Stats() []JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make([]JobStats, 0, len(s.entries))
	for name, e := range s.entries {
		st := JobStats{
			JobName:      name,
			Schedule:     e.job.Schedule(),
			TotalRuns:    len(e.history.Results),
			FailureCount: e.history.Failures(),
			SuccessRate:  e.history.SuccessRate(),
		}
		for i := len(e.history.Results) - 1; i >= 0; i-- {
			r := e.history.Results[i]
			if st.LastRun == nil {
				t := r.StartTime
				st.LastRun = &t
			}
			if r.Success {
				t := r.StartTime
				st.LastSuccess = &t
				break
			}
		}
		if next := s.next(e.id); !next.IsZero() {
			st.NextRun = &next
		}
		stats = append(stats, st)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].JobName < stats[j].JobName })
	return stats
}

// History returns a copy of the results of a job, oldest first
func (s *Scheduler) History(name string) ([]JobResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[name]
	if !exists {
		return nil, fmt.Errorf("job %s not found", name)
	}
	return append([]JobResult(nil), e.history.Results...), nil
}
