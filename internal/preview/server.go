// Package preview serves the generated blog locally and rebuilds it when posts or the
// configuration change.
package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	prom "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"git.home.luguber.info/inful/blogbuilder/internal/config"
	"git.home.luguber.info/inful/blogbuilder/internal/logfields"
	"git.home.luguber.info/inful/blogbuilder/internal/metrics"
	"git.home.luguber.info/inful/blogbuilder/internal/site"
)

// Builder produces the site served by the preview server. *site.Generator implements it.
type Builder interface {
	Generate(ctx context.Context, trigger string) (*site.Report, error)
	OutputDir() string
}

// ReloadFunc re-reads the configuration file and returns a Builder for it.
type ReloadFunc func() (*config.Config, Builder, error)

// Server serves the output directory and owns the rebuild state.
type Server struct {
	cfg      *config.Config
	registry *prom.Registry
	reload   ReloadFunc
	logger   *slog.Logger

	mu      sync.RWMutex
	builder Builder

	sf           singleflight.Group
	reloadNeeded bool
	status       buildStatus
	router       *chi.Mux

	// postsDirChanged carries the latest posts.dir installed by a reload.
	postsDirChanged chan string
}

// Option configures a Server.
type Option func(*Server)

// WithRegistry exposes reg on /metrics.
func WithRegistry(reg *prom.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// WithReload installs the function used to rebuild the Builder after a config change.
func WithReload(fn ReloadFunc) Option {
	return func(s *Server) { s.reload = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a preview server for builder.
func New(cfg *config.Config, builder Builder, opts ...Option) *Server {
	s := &Server{
		cfg:             cfg,
		builder:         builder,
		logger:          slog.Default(),
		router:          chi.NewRouter(),
		postsDirChanged: make(chan string, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler serving the site and the status endpoints.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/routes", s.handleRoutes)
	if s.registry != nil {
		s.router.Handle("/metrics", metrics.HTTPHandler(s.registry))
	}
	s.router.Handle("/*", http.HandlerFunc(s.handleStatic))
}

// Rebuild runs one build. Calls made while a build is in flight share its result.
func (s *Server) Rebuild(ctx context.Context, trigger string) (*site.Report, error) {
	v, err, shared := s.sf.Do("build", func() (any, error) {
		builder, err := s.currentBuilder()
		if err != nil {
			s.status.record(nil, err)
			return (*site.Report)(nil), err
		}
		report, err := builder.Generate(ctx, trigger)
		if errors.Is(err, context.Canceled) {
			return report, err
		}
		s.status.record(report, err)
		return report, err
	})
	if shared {
		s.logger.Debug("Rebuild joined an in-flight build", logfields.Trigger(trigger))
	}
	report, _ := v.(*site.Report)
	return report, err
}

// RequestReload marks the Builder stale; the next Rebuild reloads it first.
func (s *Server) RequestReload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadNeeded = true
}

func (s *Server) currentBuilder() (Builder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A failed reload keeps the previous Builder; the next config change retries.
	if s.reloadNeeded && s.reload != nil {
		s.reloadNeeded = false
		cfg, b, err := s.reload()
		if err != nil {
			return nil, fmt.Errorf("reload configuration: %w", err)
		}
		if cfg.Posts.Dir != s.cfg.Posts.Dir {
			s.announcePostsDir(cfg.Posts.Dir)
		}
		s.cfg = cfg
		s.builder = b
		s.logger.Info("Configuration reloaded", logfields.Path(b.OutputDir()))
	}
	return s.builder, nil
}

// announcePostsDir replaces any unconsumed value so the watcher only sees the newest dir.
// Callers hold s.mu.
func (s *Server) announcePostsDir(dir string) {
	select {
	case <-s.postsDirChanged:
	default:
	}
	select {
	case s.postsDirChanged <- dir:
	default:
	}
}

func (s *Server) outputDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.builder.OutputDir()
}

func (s *Server) routePrefix() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Routes.Prefix
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status  string `json:"status"`
	BuildID string `json:"build_id,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Error   string `json:"error,omitempty"`
	Builds  int    `json:"builds"`
}

// RoutesResponse is the /routes body. Routes is never null; EnumerationError is set when
// the last listing failed, so an empty blog and an unreadable posts directory differ.
type RoutesResponse struct {
	BuildID          string    `json:"build_id"`
	GeneratedAt      time.Time `json:"generated_at"`
	Prefix           string    `json:"prefix"`
	Routes           []string  `json:"routes"`
	EnumerationError string    `json:"enumeration_error,omitempty"`
	Outcome          string    `json:"outcome"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.status.snapshot()
	resp := HealthResponse{Status: "ok", Builds: snap.Builds}
	if snap.Last != nil {
		resp.BuildID = snap.Last.BuildID
		resp.Outcome = string(snap.Last.Outcome)
	}
	code := http.StatusOK
	switch {
	case snap.Builds == 0:
		resp.Status = "starting"
		code = http.StatusServiceUnavailable
	case snap.LastError != nil && !snap.HasGoodBuild:
		resp.Status = "unavailable"
		resp.Error = snap.LastError.Error()
		code = http.StatusServiceUnavailable
	case snap.LastError != nil:
		resp.Status = "degraded"
		resp.Error = snap.LastError.Error()
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleRoutes(w http.ResponseWriter, _ *http.Request) {
	snap := s.status.snapshot()
	if snap.Last == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no build has completed yet"})
		return
	}
	resp := RoutesResponse{
		BuildID:     snap.Last.BuildID,
		GeneratedAt: snap.Last.End,
		Prefix:      s.routePrefix(),
		Routes:      snap.Last.Routes,
		Outcome:     string(snap.Last.Outcome),
	}
	if resp.Routes == nil {
		resp.Routes = []string{}
	}
	if snap.Last.EnumerationErr != nil {
		resp.EnumerationError = snap.Last.EnumerationErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	snap := s.status.snapshot()
	if !snap.HasGoodBuild && snap.LastError != nil {
		http.Error(w, "build failed: "+snap.LastError.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	http.FileServer(http.Dir(s.outputDir())).ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
