package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/blogbuilder/internal/config"
	"git.home.luguber.info/inful/blogbuilder/internal/eventstore"
	"git.home.luguber.info/inful/blogbuilder/internal/metrics"
	"git.home.luguber.info/inful/blogbuilder/internal/notify"
	"git.home.luguber.info/inful/blogbuilder/internal/site"
)

// Global carries state shared by every command.
type Global struct {
	Logger *slog.Logger
	Out    io.Writer

	logCloser io.Closer
}

// Close releases the log file opened by loadConfig, if any.
func (g *Global) Close() error {
	if g == nil || g.logCloser == nil {
		return nil
	}
	err := g.logCloser.Close()
	g.logCloser = nil
	return err
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

func (g *Global) logger() *slog.Logger {
	if g == nil || g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"blogbuilder.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Routes   RoutesCmd   `cmd:"" help:"Print the route set derived from the posts directory"`
	Generate GenerateCmd `cmd:"" help:"Generate the static blog"`
	Serve    ServeCmd    `cmd:"" help:"Serve the blog locally and rebuild on changes"`
	Init     InitCmd     `cmd:"" help:"Initialize a new configuration file"`
	History  HistoryCmd  `cmd:"" help:"Show recorded builds"`
	New      NewCmd      `cmd:"" help:"Scaffold a new post"`
}

// AfterApply runs after flag parsing and installs a stderr logger until the
// configuration is loaded.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	logger, _ := config.NewLogger(config.LoggingConfig{}, c.Verbose)
	slog.SetDefault(logger)
	return nil
}

// loadConfig reads root.Config and replaces the process logger with one built from the
// logging section.
func loadConfig(g *Global, root *CLI) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	logger, closer := config.NewLogger(cfg.Logging, root.Verbose)
	slog.SetDefault(logger)
	if g != nil {
		_ = g.Close()
		g.Logger = logger
		g.logCloser = closer
	}
	return cfg, nil
}

// services are the collaborators shared by every Generator a command creates.
type services struct {
	store     eventstore.Store
	publisher notify.Publisher
	registry  *prom.Registry
	recorder  metrics.Recorder
}

// openServices opens the event store and the notification publisher configured in cfg.
func openServices(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*services, error) {
	svc := &services{recorder: metrics.NoopRecorder{}}
	if cfg.Metrics.Enabled {
		svc.registry = metrics.NewRegistry()
		svc.recorder = metrics.NewPrometheusRecorder(svc.registry)
	}

	if cfg.Events.Database != "" {
		store, err := eventstore.NewSQLiteStore(cfg.Events.Database)
		if err != nil {
			return nil, err
		}
		svc.store = store
	}

	pub, err := notify.New(ctx, cfg.Events, logger)
	if err != nil {
		svc.Close(logger)
		return nil, err
	}
	svc.publisher = pub
	return svc, nil
}

func (s *services) generator(cfg *config.Config, logger *slog.Logger, opts ...site.Option) (*site.Generator, error) {
	base := []site.Option{
		site.WithPublisher(s.publisher),
		site.WithRecorder(s.recorder),
		site.WithLogger(logger),
	}
	if s.store != nil {
		base = append(base, site.WithEventStore(s.store))
	}
	return site.NewGenerator(cfg, append(base, opts...)...)
}

// Close releases the store and publisher; failures are logged.
func (s *services) Close(logger *slog.Logger) {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			logger.Warn("Failed to close publisher", "error", err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			logger.Warn("Failed to close event store", "error", err)
		}
	}
}
