package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/atlas/internal/api/handlers"
	"github.com/wonny/atlas/pkg/logger"
	"github.com/wonny/atlas/pkg/redis"
)

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(runHandler *handlers.RunHandler, fxHandler *handlers.FxHandler, limiter *redis.RateLimiter, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// API v1
	api := r.PathPrefix("/api/v1").Subrouter()

	// Margin run endpoints
	api.HandleFunc("/runs", runHandler.ListRuns).Methods("GET")
	api.HandleFunc("/runs", withRateLimit(limiter, redis.RunTriggerRateLimit, log, runHandler.Trigger)).Methods("POST")
	api.HandleFunc("/runs/{id}", runHandler.GetRun).Methods("GET")
	api.HandleFunc("/runs/{id}/status", runHandler.GetStatus).Methods("GET")
	api.HandleFunc("/runs/{id}/results", runHandler.GetResults).Methods("GET")
	api.HandleFunc("/runs/{id}/final", runHandler.GetFinal).Methods("GET")
	api.HandleFunc("/runs/{id}/crif", runHandler.GetCrif).Methods("GET")

	// FX quote endpoints
	api.HandleFunc("/fx/{ccy}", fxHandler.GetQuote).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "atlas-api",
	})
}

// withRateLimit guards a mutating route with the Redis sliding-window
// limiter. A nil limiter (Redis not configured) lets all requests
// through; limiter errors fail open.
func withRateLimit(limiter *redis.RateLimiter, cfg redis.RateLimitConfig, log *logger.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if limiter != nil {
			allowed, _, err := limiter.Allow(r.Context(), cfg)
			if err != nil {
				log.WithFields(map[string]interface{}{
					"error": err.Error(),
					"key":   cfg.Key,
				}).Warn("Rate limit check failed")
			} else if !allowed {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "Too many requests",
				})
				return
			}
		}
		next(w, r)
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Call next handler
			next.ServeHTTP(w, r)

			// Log request
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
