package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	berrors "git.home.luguber.info/inful/blogbuilder/internal/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their YAML key so messages match the file the user edits.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks struct tags first, then cross-field rules the tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return berrors.ValidationFailed(yamlPath(fe.Namespace()), describe(fe))
		}
		return berrors.Wrap(err, berrors.CategoryValidation, berrors.SeverityFatal, "validation failed")
	}

	// The prefix is concatenated with the stem verbatim.
	if p := cfg.Routes.Prefix; p != "" && (!strings.HasPrefix(p, "/") || !strings.HasSuffix(p, "/")) {
		return berrors.ValidationFailed("routes.prefix", "must be empty or start and end with '/'")
	}
	if cfg.Preview.Debounce < 0 {
		return berrors.ValidationFailed("preview.debounce", "must not be negative")
	}
	if cfg.Preview.RebuildInterval < 0 {
		return berrors.ValidationFailed("preview.rebuild_interval", "must not be negative")
	}
	if err := CheckOutputDir(cfg.Output.Directory, cfg.Posts.Dir, "", cfg.Output.Clean); err != nil {
		return err
	}
	if cfg.Events.NATSURL != "" && cfg.Events.Subject == "" {
		return berrors.ValidationFailed("events.subject", "required when events.nats_url is set")
	}
	return nil
}

// yamlPath drops the root struct name: "Config.posts.dir" -> "posts.dir".
func yamlPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	if fe.Param() != "" {
		return fmt.Sprintf("failed '%s=%s' (got %v)", fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Sprintf("failed '%s' (got %v)", fe.Tag(), fe.Value())
}

// CheckOutputDir rejects an output directory that is posts.dir or one of its parents.
// When clean is set it also rejects one that contains configPath, since every build
// empties the output directory first.
func CheckOutputDir(outputDir, postsDir, configPath string, clean bool) error {
	if Within(outputDir, postsDir) {
		return berrors.ValidationFailed("output.directory", "must not be posts.dir or a parent of it")
	}
	if clean && configPath != "" && Within(outputDir, configPath) {
		return berrors.ValidationFailed("output.directory", "must not contain the config file while output.clean is set")
	}
	return nil
}

// Within reports whether path is dir itself or lies below it.
func Within(dir, path string) bool {
	absDir, errA := filepath.Abs(dir)
	absPath, errB := filepath.Abs(path)
	if errA != nil || errB != nil {
		absDir, absPath = filepath.Clean(dir), filepath.Clean(path)
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
