package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/blogbuilder/internal/config"
	"git.home.luguber.info/inful/blogbuilder/internal/preview"
)

// ServeCmd starts the preview server.
type ServeCmd struct {
	Port int `short:"p" help:"Port to listen on (overrides preview.port)"`
}

func (s *ServeCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	s.apply(cfg)
	logger := g.logger()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc, err := openServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close(logger)

	gen, err := svc.generator(cfg, logger)
	if err != nil {
		return err
	}

	reload := func() (*config.Config, preview.Builder, error) {
		next, err := config.Load(root.Config)
		if err != nil {
			return nil, nil, err
		}
		s.apply(next)
		nextGen, err := svc.generator(next, logger)
		if err != nil {
			return nil, nil, err
		}
		return next, nextGen, nil
	}

	opts := []preview.Option{preview.WithLogger(logger), preview.WithReload(reload)}
	if svc.registry != nil {
		opts = append(opts, preview.WithRegistry(svc.registry))
	}
	return preview.New(cfg, gen, opts...).Run(ctx, root.Config)
}

func (s *ServeCmd) apply(cfg *config.Config) {
	if s.Port > 0 {
		cfg.Preview.Port = s.Port
	}
}
