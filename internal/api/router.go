package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/fincore/internal/api/handlers"
	"github.com/wonny/fincore/pkg/logger"
)

// NewRouter creates and configures the HTTP router
// SSOT: routes are registered here only
func NewRouter(stockHandler *handlers.StockHandler, dataHandler *handlers.DataHandler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Stock endpoints
	api.HandleFunc("/stocks/{symbol}/history", stockHandler.GetHistory).Methods("GET")
	api.HandleFunc("/stocks/{symbol}/indicators", stockHandler.GetIndicators).Methods("GET")
	api.HandleFunc("/stocks/{symbol}/financials", stockHandler.GetFinancials).Methods("GET")
	api.HandleFunc("/stocks/{symbol}/financials/combined", stockHandler.GetCombined).Methods("GET")
	api.HandleFunc("/stocks/{symbol}/health-score", stockHandler.GetHealthScore).Methods("GET")
	api.HandleFunc("/stocks/{symbol}/trend", stockHandler.GetTrend).Methods("GET")
	api.HandleFunc("/industries/{industry}", stockHandler.GetIndustry).Methods("GET")

	// Data endpoints
	api.HandleFunc("/data/quality", dataHandler.GetQuality).Methods("GET")
	api.HandleFunc("/data/import", dataHandler.Import).Methods("POST")

	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "fincore-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
