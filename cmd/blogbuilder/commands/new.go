package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	berrors "git.home.luguber.info/inful/blogbuilder/internal/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/frontmatter"
	"git.home.luguber.info/inful/blogbuilder/internal/posts"
)

// NewCmd implements the 'new' command.
type NewCmd struct {
	Title string   `arg:"" help:"Post title"`
	Slug  string   `help:"File stem (derived from the title when empty)"`
	Date  string   `help:"Publication date as YYYY-MM-DD (defaults to today)"`
	Tags  []string `short:"t" help:"Tags for the post"`
	Force bool     `help:"Overwrite an existing post"`

	now func() time.Time `kong:"-"`
}

func (n *NewCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}

	stem := n.Slug
	if stem == "" {
		stem = posts.Slug(n.Title)
	}
	if stem == "" {
		return berrors.ValidationFailed("slug", "title does not contain any letters or digits")
	}

	date, err := n.date()
	if err != nil {
		return err
	}

	fields := map[string]any{
		"title": n.Title,
		"date":  date,
	}
	if len(n.Tags) > 0 {
		fields["tags"] = n.Tags
	}
	content, err := frontmatter.Compose(fields, []byte("\n"))
	if err != nil {
		return berrors.Wrap(err, berrors.CategoryInternal, berrors.SeverityFatal, "compose front matter")
	}

	target := filepath.Join(cfg.Posts.Dir, stem+posts.MarkdownExt)
	if _, err := os.Stat(target); err == nil && !n.Force {
		return berrors.New(berrors.CategoryValidation, berrors.SeverityFatal,
			"post already exists (use --force to overwrite)").WithContext("path", target)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return berrors.OutputError("stat post", err)
	}

	if err := os.MkdirAll(cfg.Posts.Dir, 0o755); err != nil {
		return berrors.OutputError("create posts dir", err)
	}
	if err := os.WriteFile(target, content, 0o644); err != nil {
		return berrors.OutputError("write post", err)
	}

	fmt.Fprintf(g.out(), "Created %s\n", target)
	fmt.Fprintf(g.out(), "Route: %s%s\n", cfg.Routes.Prefix, stem)
	return nil
}

func (n *NewCmd) date() (time.Time, error) {
	if n.Date == "" {
		now := time.Now
		if n.now != nil {
			now = n.now
		}
		y, m, d := now().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(time.DateOnly, n.Date)
	if err != nil {
		return time.Time{}, berrors.ValidationFailed("date", fmt.Sprintf("expected YYYY-MM-DD, got %q", n.Date))
	}
	return t, nil
}
