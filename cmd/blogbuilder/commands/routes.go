package commands

import (
	"context"
	"fmt"

	berrors "git.home.luguber.info/inful/blogbuilder/internal/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/posts"
)

// RoutesCmd implements the 'routes' command.
type RoutesCmd struct {
	JSON bool `name:"json" help:"Print the route set as JSON"`
}

// routesOutput is the --json document. Routes is never null.
type routesOutput struct {
	Prefix  string        `json:"prefix"`
	Source  string        `json:"source"`
	Routes  []string      `json:"routes"`
	Entries []posts.Entry `json:"entries"`
	Error   string        `json:"error,omitempty"`
}

// Run prints every route, one per line. A read failure prints whatever was listed and
// returns an enumeration error so the exit code differs from an empty posts directory.
func (r *RoutesCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}

	entries, enumErr := posts.FromConfig(cfg, g.logger()).Enumerate(context.Background())
	if entries == nil {
		entries = []posts.Entry{}
	}

	if r.JSON {
		doc := routesOutput{
			Prefix:  cfg.Routes.Prefix,
			Source:  string(cfg.Posts.Source),
			Routes:  posts.Routes(entries),
			Entries: entries,
		}
		if enumErr != nil {
			doc.Error = enumErr.Error()
		}
		if err := writeIndentedJSON(g.out(), doc); err != nil {
			return err
		}
	} else {
		for _, e := range entries {
			fmt.Fprintln(g.out(), e.Route)
		}
	}

	if enumErr != nil {
		return berrors.EnumerationFailed(cfg.Posts.Dir, enumErr)
	}
	return nil
}
