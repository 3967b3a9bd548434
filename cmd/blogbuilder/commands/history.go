package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	berrors "git.home.luguber.info/inful/blogbuilder/internal/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/eventstore"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Build string `name:"build" help:"Show the events of one build"`
	Limit int    `name:"limit" short:"n" help:"Number of builds to list (0 lists all)" default:"20"`
	JSON  bool   `name:"json" help:"Print JSON instead of a table"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	if cfg.Events.Database == "" {
		return berrors.ValidationFailed("events.database", "build history is disabled; set events.database")
	}

	store, err := eventstore.NewSQLiteStore(cfg.Events.Database)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if h.Build != "" {
		return h.showBuild(ctx, g.out(), store)
	}

	history, err := eventstore.LoadHistory(ctx, store)
	if err != nil {
		return err
	}
	builds := history.List(h.Limit)
	if h.JSON {
		return writeIndentedJSON(g.out(), builds)
	}

	tw := tabwriter.NewWriter(g.out(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BUILD\tSTARTED\tTRIGGER\tSTATUS\tROUTES\tPAGES\tDURATION\tENUMERATION ERROR")
	for _, b := range builds {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			b.BuildID,
			b.StartedAt.Local().Format(time.DateTime),
			b.Trigger,
			b.Status,
			len(b.Routes),
			b.Pages,
			b.Duration.Round(time.Millisecond),
			b.EnumerationError)
	}
	return tw.Flush()
}

// eventView is the printable form of one stored event.
type eventView struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

func (h *HistoryCmd) showBuild(ctx context.Context, out io.Writer, store eventstore.Store) error {
	events, err := store.GetByBuildID(ctx, h.Build)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return berrors.New(berrors.CategoryValidation, berrors.SeverityFatal, "build not found").
			WithContext("build_id", h.Build)
	}

	views := make([]eventView, 0, len(events))
	for _, e := range events {
		views = append(views, eventView{ID: e.ID(), Type: e.Type(), Timestamp: e.Timestamp(), Payload: e.Payload()})
	}
	if h.JSON {
		return writeIndentedJSON(out, views)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tEVENT\tPAYLOAD")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", v.Timestamp.Local().Format(time.DateTime), v.Type, v.Payload)
	}
	return tw.Flush()
}

func writeIndentedJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
