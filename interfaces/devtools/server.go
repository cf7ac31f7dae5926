// Package devtools exposes a read-only inspection surface over the cache
// and session state: entry summaries, the session projection (never
// tokens), prometheus metrics and a live event stream. It is a debugging
// aid for the admin UI, not part of the UI itself.
package devtools

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"admincore/domain/cache"
	"admincore/domain/session"
	"admincore/infrastructure/config"
	"admincore/pkg/common"
	"admincore/pkg/observability"
)

// entrySummary is the inspection view of one cache entry
type entrySummary struct {
	Key         string    `json:"key"`
	Version     int64     `json:"version"`
	Records     int       `json:"records"`
	LastUpdated time.Time `json:"last_updated"`
	Stale       bool      `json:"stale"`
}

// Server serves the devtools endpoints
type Server struct {
	cfg      *config.Config
	store    *cache.Store
	sessions *session.Manager
	metrics  *observability.Collector
	hub      *Hub
	logger   *zap.Logger
}

// NewServer creates the devtools server
func NewServer(
	cfg *config.Config,
	store *cache.Store,
	sessions *session.Manager,
	metrics *observability.Collector,
	hub *Hub,
	logger *zap.Logger,
) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		sessions: sessions,
		metrics:  metrics,
		hub:      hub,
		logger:   logger,
	}
}

// Setup configures all routes and middleware
func (s *Server) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(s.requestLogger)

	if s.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check
	router.Get("/health", s.healthCheck)

	// Inspection endpoints
	router.Route("/debug", func(r chi.Router) {
		r.Get("/cache", s.cacheSummary)
		r.Get("/session", s.sessionSnapshot)
		r.Get("/events", s.hub.HandleWebSocket)
	})

	// Prometheus metrics
	router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	return router
}

// healthCheck reports liveness
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// cacheSummary lists entry summaries for every cached key
func (s *Server) cacheSummary(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	entries := s.store.Entries()

	summaries := make([]entrySummary, 0, len(entries))
	for _, entry := range entries {
		summaries = append(summaries, entrySummary{
			Key:         entry.Key.String(),
			Version:     entry.Version,
			Records:     len(entry.Data),
			LastUpdated: entry.LastUpdated,
			Stale:       entry.IsStale(now),
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(summaries),
		"entries": summaries,
	})
}

// sessionSnapshot returns the read-only session projection
func (s *Server) sessionSnapshot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.sessions.Snapshot())
}

// requestLogger stamps the request context with the chi-assigned request ID
// and the arrival time, then logs each request with zap. Handlers further
// down see both through the common context accessors.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := common.WithRequestID(r.Context(), chimiddleware.GetReqID(r.Context()))
		ctx = common.WithStartTime(ctx, time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))

		requestID, _ := common.GetRequestID(ctx)
		var duration time.Duration
		if start, ok := common.GetStartTime(ctx); ok {
			duration = time.Since(start)
		}
		s.logger.Debug("Devtools request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID),
			zap.Duration("duration", duration),
		)
	})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
