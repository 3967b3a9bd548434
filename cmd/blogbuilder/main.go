package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/blogbuilder/cmd/blogbuilder/commands"
	"git.home.luguber.info/inful/blogbuilder/internal/config"
	berrors "git.home.luguber.info/inful/blogbuilder/internal/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/logfields"
	"git.home.luguber.info/inful/blogbuilder/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("blogbuilder"),
		kong.Description("Build and preview a markdown blog."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	globals := &commands.Global{Logger: slog.Default()}
	err := parser.Run(globals, cli)

	// The error is reported on stderr once the log file is closed.
	logger, _ := config.NewLogger(config.LoggingConfig{}, cli.Verbose)
	if closeErr := globals.Close(); closeErr != nil {
		logger.Warn("Failed to close log file", logfields.Error(closeErr))
	}
	berrors.NewCLIErrorAdapter(cli.Verbose, logger).HandleError(err)
}
