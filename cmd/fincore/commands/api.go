package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/fincore/internal/api"
	"github.com/wonny/fincore/internal/api/handlers"
	"github.com/wonny/fincore/internal/store"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the HTTP API server",
	Long: `Serves the analytics queries over HTTP.

Endpoints:
  GET  /health
  GET  /api/stocks/{symbol}/history?period=&limit=
  GET  /api/stocks/{symbol}/indicators?names=&period=&limit=
  GET  /api/stocks/{symbol}/financials?period=&limit=
  GET  /api/stocks/{symbol}/financials/combined?limit=
  GET  /api/stocks/{symbol}/health-score
  GET  /api/stocks/{symbol}/trend
  GET  /api/industries/{industry}?metric=
  GET  /api/data/quality
  POST /api/data/import

Example:
  go run ./cmd/fincore api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "listen port (default PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	svc := a.service()
	imp, err := a.importer(a.store, a.store)
	if err != nil {
		return err
	}
	gate := store.NewQualityGate(a.db.Pool, a.cfg.Quality.MinScore)

	router := api.NewRouter(
		handlers.NewStockHandler(svc, a.log),
		handlers.NewDataHandler(gate, imp, svc.InvalidateFinancials, a.log),
		a.log,
	)
	server := api.New(a.cfg, a.log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	a.log.Info("Server stopped")
	return nil
}
