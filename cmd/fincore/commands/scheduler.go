package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/fincore/internal/ingest"
	"github.com/wonny/fincore/internal/scheduler"
	"github.com/wonny/fincore/internal/scheduler/jobs"
	"github.com/wonny/fincore/internal/store"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run or inspect scheduled jobs",
	Long: `Jobs:
  financial_import  - IMPORT_SCHEDULE (default 18:00 daily)
  quality_snapshot  - QUALITY_SCHEDULE (default 18:30 daily)
  indicator_export  - EXPORT_SCHEDULE (disabled when empty)

Examples:
  go run ./cmd/fincore scheduler start
  go run ./cmd/fincore scheduler list
  go run ./cmd/fincore scheduler run financial_import`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler and block until interrupted",
		RunE:  runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs and their next run",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run a job now and wait for it",
		Args:  cobra.ExactArgs(1),
		RunE:  runJobNow,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

// initScheduler registers every configured job
func initScheduler(a *app) (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.log)

	imp, err := a.importer(a.store, a.store)
	if err != nil {
		return nil, err
	}
	req := ingest.Request{
		Type:      ingest.TypeAll,
		ChunkSize: a.cfg.Import.ChunkSize,
		MaxRows:   a.cfg.Import.MaxRows,
	}
	if err := sched.AddJob(jobs.NewImportJob(imp, a.service().InvalidateFinancials, a.cfg.Import.Schedule, req, a.log)); err != nil {
		return nil, err
	}

	gate := store.NewQualityGate(a.db.Pool, a.cfg.Quality.MinScore)
	if err := sched.AddJob(jobs.NewQualityJob(gate, a.cfg.Quality.Schedule, a.log)); err != nil {
		return nil, err
	}

	if a.cfg.Export.Schedule != "" {
		if err := sched.AddJob(jobs.NewExportJob(a.exporter("", 0), a.cfg.Export.Schedule, 0, a.log)); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	sched.Start()

	PrintSuccess("Scheduler started")
	printJobs(sched)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()
	return nil
}

func printJobs(sched *scheduler.Scheduler) {
	widths := []int{20, 16, 20}
	PrintTableHeader([]string{"JOB", "SCHEDULE", "NEXT RUN"}, widths)
	for _, st := range sched.Stats() {
		next := "-"
		if st.NextRun != nil {
			next = st.NextRun.Format("2006-01-02 15:04:05")
		}
		PrintTableRow([]string{st.JobName, st.Schedule, next}, widths)
	}
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	printJobs(sched)
	return nil
}

func runJobNow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	res, err := sched.RunNow(ctx, args[0])
	if err != nil {
		return err
	}
	if !res.Success {
		PrintError(fmt.Sprintf("%s failed after %d attempt(s): %s", res.JobName, res.Attempts, res.Error))
		return fmt.Errorf("job %s failed", res.JobName)
	}
	PrintSuccess(fmt.Sprintf("%s completed in %s", res.JobName, res.Duration))
	return nil
}
