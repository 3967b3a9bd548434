package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-co-op/gocron/v2"

	berrors "git.home.luguber.info/inful/blogbuilder/internal/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/logfields"
	"git.home.luguber.info/inful/blogbuilder/internal/site"
)

const shutdownTimeout = 5 * time.Second

// Run performs the initial build, serves the site on preview.port and rebuilds on changes
// until ctx is canceled. configPath may be empty to disable configuration reloads.
func (s *Server) Run(ctx context.Context, configPath string) error {
	if _, err := s.Rebuild(ctx, site.TriggerCLI); err != nil {
		s.logger.Error("Initial build failed", logfields.Error(err))
	}

	addr := fmt.Sprintf(":%d", s.cfg.Preview.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return berrors.ServerFailed(err).WithContext("addr", addr)
	}
	httpServer := &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	s.logger.Info("Preview server listening",
		logfields.URL(fmt.Sprintf("http://localhost:%d", s.cfg.Preview.Port)))

	w, err := newWatcher(s.cfg.Posts.Dir, configPath, s.logger)
	if err != nil {
		s.shutdown(httpServer, nil)
		return berrors.ServerFailed(err)
	}
	defer func() { _ = w.Close() }()

	deb := newDebouncer(s.cfg.Preview.Debounce)
	defer deb.Stop()
	go s.rebuildWorker(ctx, deb.C)

	sched, err := s.startScheduler(ctx, s.cfg.Preview.RebuildInterval)
	if err != nil {
		s.shutdown(httpServer, nil)
		return berrors.ServerFailed(err)
	}

	for {
		select {
		case <-ctx.Done():
			s.shutdown(httpServer, sched)
			return nil
		case err := <-serveErr:
			s.shutdown(httpServer, sched)
			return berrors.ServerFailed(err)
		case ev, ok := <-w.fs.Events:
			if !ok {
				s.shutdown(httpServer, sched)
				return nil
			}
			switch w.classify(ev) {
			case changeConfig:
				s.logger.Info("Configuration changed", logfields.Path(ev.Name))
				s.RequestReload()
				deb.Trigger()
			case changePosts:
				s.logger.Debug("Post change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
				deb.Trigger()
			case changeNone:
			}
		case dir := <-s.postsDirChanged:
			s.logger.Info("Posts dir changed; updating watch", logfields.Path(dir))
			if err := w.setPostsDir(dir); err != nil {
				s.logger.Warn("Failed to watch new posts dir", logfields.Path(dir), logfields.Error(err))
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				s.shutdown(httpServer, sched)
				return nil
			}
			s.logger.Warn("Watcher error", logfields.Error(err))
		}
	}
}

// rebuildWorker serializes watch-triggered rebuilds. A request arriving mid-build waits in
// the buffered channel and runs once the current build finishes.
func (s *Server) rebuildWorker(ctx context.Context, requests <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-requests:
			s.logger.Info("Change detected; rebuilding site")
			if _, err := s.Rebuild(ctx, site.TriggerWatch); err != nil && ctx.Err() == nil {
				s.logger.Warn("Rebuild failed", logfields.Error(err))
			}
		}
	}
}

// startScheduler registers the periodic rebuild. It returns nil when interval is not positive.
func (s *Server) startScheduler(ctx context.Context, interval time.Duration) (gocron.Scheduler, error) {
	if interval <= 0 {
		return nil, nil
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.scheduledRebuild, ctx),
		gocron.WithName("periodic-rebuild"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule rebuild: %w", err)
	}
	sched.Start()
	s.logger.Info("Scheduled periodic rebuild", slog.Duration("interval", interval))
	return sched, nil
}

func (s *Server) scheduledRebuild(ctx context.Context) {
	if _, err := s.Rebuild(ctx, site.TriggerSchedule); err != nil && ctx.Err() == nil {
		s.logger.Warn("Scheduled rebuild failed", logfields.Error(err))
	}
}

func (s *Server) shutdown(httpServer *http.Server, sched gocron.Scheduler) {
	s.logger.Info("Shutting down preview server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP server shutdown error", logfields.Error(err))
	}
	if sched != nil {
		if err := sched.Shutdown(); err != nil {
			s.logger.Warn("Scheduler shutdown error", logfields.Error(err))
		}
	}
}
