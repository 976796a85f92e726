// Package api provides the HTTP API layer for the conflict resolution
// engine.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"normlex/internal/audit"
	"normlex/internal/config"
	"normlex/internal/detection"
	"normlex/internal/logging"
	"normlex/internal/registry"
	"normlex/internal/resolution"
)

// Router represents the main API router
type Router struct {
	config   *config.Config
	mux      *chi.Mux
	version  string
	resolver *resolution.Resolver
	detector *detection.Detector
	store    registry.Store
	trail    *audit.Trail
	logger   logging.Logger
}

// NewRouter creates a new API router with middleware and routes
func NewRouter(cfg *config.Config, resolver *resolution.Resolver, detector *detection.Detector, store registry.Store, trail *audit.Trail, logger logging.Logger) *Router {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	r := &Router{
		config:   cfg,
		mux:      chi.NewRouter(),
		version:  "1.0.0",
		resolver: resolver,
		detector: detector,
		store:    store,
		trail:    trail,
		logger:   logger.WithComponent("api"),
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Handler returns the HTTP handler
func (r *Router) Handler() http.Handler {
	return r.mux
}

// setupMiddleware configures the middleware stack
func (r *Router) setupMiddleware() {
	// Recovery middleware (should be first)
	r.mux.Use(chimiddleware.Recoverer)

	// Request timeout
	r.mux.Use(chimiddleware.Timeout(30 * time.Second))

	// Trace ID propagation and request logging
	r.mux.Use(r.tracingMiddleware)
	r.mux.Use(r.loggingMiddleware)

	// Request size limit (10MB)
	r.mux.Use(chimiddleware.RequestSize(10 * 1024 * 1024))

	// Heartbeat for load balancer health checks
	r.mux.Use(chimiddleware.Heartbeat("/ping"))
}

// tracingMiddleware makes sure every request carries a trace ID, either the
// caller's X-Trace-ID or a fresh one.
func (r *Router) tracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		traceID := req.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = logging.GenerateTraceID()
		}
		ctx := logging.WithTraceID(req.Context(), traceID)
		w.Header().Set("X-Trace-ID", traceID)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// loggingMiddleware logs one line per request with timing.
func (r *Router) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)
		r.logger.InfoContext(req.Context(), "request completed",
			"method", req.Method,
			"path", req.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	})
}

// setupRoutes configures API routes
func (r *Router) setupRoutes() {
	// Health check endpoints (no version prefix for load balancers)
	r.mux.Get("/health", r.handleHealth)

	// API v1 routes
	r.mux.Route("/api/v1", func(rtr chi.Router) {
		rtr.Get("/health", r.handleHealth)

		rtr.Route("/frameworks", func(fr chi.Router) {
			fr.Post("/", r.handleCreateFramework)
			fr.Get("/", r.handleListFrameworks)
			fr.Get("/{id}", r.handleGetFramework)
			fr.Put("/{id}", r.handleUpdateFramework)
			fr.Delete("/{id}", r.handleDeleteFramework)
		})

		rtr.Route("/conflicts", func(cr chi.Router) {
			cr.Post("/detect", r.handleDetectConflicts)
			cr.Get("/{type}/strategies", r.handleSuggestStrategies)
		})

		rtr.Route("/resolutions", func(rr chi.Router) {
			rr.Post("/", r.handleResolve)
			rr.Post("/summary", r.handleResolveSummary)
		})

		rtr.Post("/strategies/{name}/apply", r.handleApplyStrategy)

		rtr.Route("/audit", func(ar chi.Router) {
			ar.Get("/stats", r.handleAuditStats)
			ar.Get("/events", r.handleAuditSearch)
		})
	})

	// Root endpoint with server info
	r.mux.Get("/", r.handleRoot)

	// 404 handler
	r.mux.NotFound(r.handleNotFound)

	// 405 handler
	r.mux.MethodNotAllowed(r.handleMethodNotAllowed)
}

// handleRoot handles requests to the root endpoint
func (r *Router) handleRoot(w http.ResponseWriter, _ *http.Request) {
	serverInfo := map[string]interface{}{
		"server":      "normlex",
		"version":     r.version,
		"api_version": "v1",
		"status":      "running",
		"endpoints": map[string]string{
			"health":     "/health",
			"frameworks": "/api/v1/frameworks",
			"detect":     "/api/v1/conflicts/detect",
			"strategies": "/api/v1/conflicts/{type}/strategies",
			"resolve":    "/api/v1/resolutions",
			"summary":    "/api/v1/resolutions/summary",
			"audit":      "/api/v1/audit/events",
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := writeJSON(w, serverInfo); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// handleHealth reports liveness and registry availability.
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	status := "healthy"
	code := http.StatusOK

	if _, err := r.store.List(req.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = writeJSON(w, map[string]interface{}{
		"status":    status,
		"version":   r.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleNotFound handles 404 errors
func (r *Router) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)

	errorResp := map[string]interface{}{
		"error": map[string]interface{}{
			"code":    "NOT_FOUND",
			"message": "Endpoint not found",
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if err := writeJSON(w, errorResp); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// handleMethodNotAllowed handles 405 errors
func (r *Router) handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)

	errorResp := map[string]interface{}{
		"error": map[string]interface{}{
			"code":    "METHOD_NOT_ALLOWED",
			"message": "Method not allowed",
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if err := writeJSON(w, errorResp); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// writeJSON writes JSON response
func writeJSON(w http.ResponseWriter, data interface{}) error {
	return json.NewEncoder(w).Encode(data)
}
