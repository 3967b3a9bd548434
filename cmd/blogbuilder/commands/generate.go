package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/blogbuilder/internal/site"
)

// GenerateCmd implements the 'generate' command for CI/CD pipelines.
type GenerateCmd struct {
	Output string `short:"o" help:"Output directory for the generated site (overrides output.directory)"`
}

func (c *GenerateCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	logger := g.logger()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc, err := openServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close(logger)

	gen, err := svc.generator(cfg, logger, site.WithOutputDir(c.Output))
	if err != nil {
		return err
	}

	report, err := gen.Generate(ctx, site.TriggerCLI)
	if err != nil {
		return err
	}

	fmt.Fprintf(g.out(), "Generated %d pages (%d routes) into %s in %s\n",
		report.Pages, len(report.Routes), report.OutputDir, report.Duration().Round(time.Millisecond))
	if report.EnumerationErr != nil {
		fmt.Fprintf(g.out(), "Warning: post enumeration failed: %v\n", report.EnumerationErr)
	}
	if report.FailedPages > 0 {
		fmt.Fprintf(g.out(), "Warning: %d posts could not be rendered\n", report.FailedPages)
	}
	for _, bl := range report.BrokenLinks {
		fmt.Fprintf(g.out(), "Warning: %s links to unknown route %s\n", bl.Route, bl.Target)
	}
	return nil
}
