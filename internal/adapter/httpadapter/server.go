// Package httpadapter serves the dashboard page, its JSON and CSV exports,
// and the health, readiness and metrics endpoints.
package httpadapter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/climate-health-dashboard/internal/domain"
	"github.com/couchcryptid/climate-health-dashboard/internal/pipeline"
	"github.com/couchcryptid/climate-health-dashboard/internal/presenter"
)

// Renderer builds a dashboard view.
type Renderer interface {
	Render(ctx context.Context, req pipeline.Request) (*presenter.View, error)
}

// RegionLister lists the regions offered in the region picker.
type RegionLister interface {
	Regions() []domain.Region
}

// Server exposes the dashboard and the operational endpoints.
type Server struct {
	httpServer *http.Server
	renderer   Renderer
	regions    RegionLister
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the dashboard routes plus /healthz,
// /readyz and /metrics.
func NewServer(addr string, renderer Renderer, regions RegionLister, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
			// A render makes several upstream calls, each with retries.
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		renderer: renderer,
		regions:  regions,
		logger:   logger,
	}

	mux.HandleFunc("GET /{$}", s.handlePage)
	mux.HandleFunc("GET /api/dashboard", s.handleJSON)
	mux.HandleFunc("GET /api/dashboard.csv", s.handleCSV)
	mux.HandleFunc("GET /api/regions", s.handleRegions)
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
