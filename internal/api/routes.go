package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/justinas/alice"
)

// SetupRoutes configures all API routes behind the middleware chain
func SetupRoutes(handler *Handler) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// Metrics routes
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/metrics", handler.GetMetrics).Methods("GET")
	api.HandleFunc("/metrics", handler.UpdateMetrics).Methods("POST")
	api.HandleFunc("/metrics/daily", handler.UpdateDailyMetric).Methods("POST")
	api.HandleFunc("/metrics/daily/batch", handler.UpdateDailyMetrics).Methods("POST")

	return alice.New(
		requestLogger(handler.log),
		recoverPanic(handler.log),
	).Then(r)
}
