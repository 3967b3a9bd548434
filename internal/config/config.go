package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	berrors "git.home.luguber.info/inful/blogbuilder/internal/errors"
)

// DescriptionEnv supplies site.description when the config leaves it empty.
const DescriptionEnv = "BLOG_DESCRIPTION"

// DefaultPath is the configuration file looked up when --config is not given.
const DefaultPath = "blogbuilder.yaml"

// Config represents the application configuration
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Posts    PostsConfig    `yaml:"posts"`
	Routes   RoutesConfig   `yaml:"routes"`
	Output   OutputConfig   `yaml:"output"`
	Markdown MarkdownConfig `yaml:"markdown"`
	Preview  PreviewConfig  `yaml:"preview"`
	Events   EventsConfig   `yaml:"events"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SiteConfig holds page metadata rendered into every <head>.
type SiteConfig struct {
	Title        string       `yaml:"title" validate:"required"`
	Description  string       `yaml:"description,omitempty"`
	Lang         string       `yaml:"lang,omitempty"`
	Favicon      string       `yaml:"favicon,omitempty"`
	LoadingColor string       `yaml:"loading_color,omitempty" validate:"omitempty,hexcolor"`
	Stylesheets  []Stylesheet `yaml:"stylesheets,omitempty" validate:"dive"`
	CSS          []string     `yaml:"css,omitempty" validate:"dive,required"`
	Meta         []MetaTag    `yaml:"meta,omitempty" validate:"dive"`
}

// Stylesheet is an external stylesheet link.
type Stylesheet struct {
	Href  string `yaml:"href" validate:"required"`
	Media string `yaml:"media,omitempty"`
	Type  string `yaml:"type,omitempty"`
}

// MetaTag is an extra <meta> element. HID is emitted as data-hid for de-duplication by clients.
type MetaTag struct {
	HID      string `yaml:"hid,omitempty"`
	Name     string `yaml:"name,omitempty" validate:"required_without=Property"`
	Property string `yaml:"property,omitempty"`
	Content  string `yaml:"content"`
}

// PostSource selects the route enumeration strategy.
type PostSource string

const (
	// SourceDirectory lists the posts directory asynchronously at build time.
	SourceDirectory PostSource = "directory"
	// SourceBundled walks a file system snapshot synchronously, one key per matched file.
	SourceBundled PostSource = "bundled"
)

// StemMode selects how a route stem is derived from a file name.
type StemMode string

const (
	// StemLegacy splits on the first dot (multi-dot names are truncated).
	StemLegacy StemMode = "legacy"
	// StemExtension strips only the final extension.
	StemExtension StemMode = "extension"
)

// PostsConfig locates the post files.
type PostsConfig struct {
	Dir             string     `yaml:"dir" validate:"required"`
	Source          PostSource `yaml:"source" validate:"oneof=directory bundled"`
	StemMode        StemMode   `yaml:"stem_mode" validate:"oneof=legacy extension"`
	FilterExtension bool       `yaml:"filter_extension"`
}

// RoutesConfig controls the shape of generated route identifiers.
// An explicit empty prefix yields bare stems.
type RoutesConfig struct {
	Prefix string `yaml:"prefix"`
}

// OutputConfig represents output configuration
type OutputConfig struct {
	Directory string `yaml:"directory" validate:"required"`
	Clean     bool   `yaml:"clean"` // Clean output directory before build
}

// MarkdownConfig tunes the goldmark renderer.
type MarkdownConfig struct {
	GFM        bool `yaml:"gfm"`
	HardWraps  bool `yaml:"hard_wraps"`
	UnsafeHTML bool `yaml:"unsafe_html"`
}

// PreviewConfig configures `serve`.
type PreviewConfig struct {
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	Debounce        time.Duration `yaml:"debounce"`
	RebuildInterval time.Duration `yaml:"rebuild_interval"`
	RenderCacheSize int           `yaml:"render_cache_size" validate:"min=0"`
}

// EventsConfig configures build history and notifications.
type EventsConfig struct {
	Database string      `yaml:"database,omitempty"`
	NATSURL  string      `yaml:"nats_url,omitempty" validate:"omitempty,url"`
	Subject  string      `yaml:"subject,omitempty"`
	Retry    RetryConfig `yaml:"retry"`
}

// RetryBackoffMode selects how delays grow between publish attempts.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

// RetryConfig bounds retries of transient notification failures.
type RetryConfig struct {
	Backoff    RetryBackoffMode `yaml:"backoff" validate:"omitempty,oneof=fixed linear exponential"`
	Initial    time.Duration    `yaml:"initial"`
	Max        time.Duration    `yaml:"max"`
	MaxRetries int              `yaml:"max_retries" validate:"min=0"`
}

// MetricsConfig toggles Prometheus instrumentation.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig configures the slog handler and optional rotating file sink.
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty" validate:"min=0"`
	MaxBackups int    `yaml:"max_backups,omitempty" validate:"min=0"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty" validate:"min=0"`
	Compress   bool   `yaml:"compress,omitempty"`
}

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	if err := loadEnvFile(); err != nil {
		// Don't fail if .env doesn't exist
		fmt.Fprintf(os.Stderr, "Note: .env file not found or couldn't be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, berrors.ConfigNotFound(configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, berrors.ConfigInvalid(configPath, fmt.Errorf("read: %w", err))
	}

	cfg, err := Parse(data, configPath)
	if err != nil {
		return nil, err
	}
	if err := CheckOutputDir(cfg.Output.Directory, cfg.Posts.Dir, configPath, cfg.Output.Clean); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default(), expanding ${VAR} references first.
func Parse(data []byte, source string) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, berrors.ConfigInvalid(source, fmt.Errorf("unmarshal: %w", err))
	}

	normalize(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize folds enum casing and fills environment-derived fields.
func normalize(cfg *Config) {
	cfg.Posts.Source = PostSource(strings.ToLower(strings.TrimSpace(string(cfg.Posts.Source))))
	cfg.Posts.StemMode = StemMode(strings.ToLower(strings.TrimSpace(string(cfg.Posts.StemMode))))
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	cfg.Events.Retry.Backoff = RetryBackoffMode(strings.ToLower(strings.TrimSpace(string(cfg.Events.Retry.Backoff))))
	if cfg.Site.Description == "" {
		cfg.Site.Description = os.Getenv(DescriptionEnv)
	}
}

// Init creates a new configuration file with example content
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return berrors.New(berrors.CategoryValidation, berrors.SeverityFatal,
			"configuration file already exists (use --force to overwrite)").WithContext("path", configPath)
	}

	example := Default()
	example.Site = SiteConfig{
		Title:        "Reyna Neet",
		Description:  "${" + DescriptionEnv + "}",
		Lang:         "en",
		Favicon:      "/favicon.ico",
		LoadingColor: "#fff",
		Stylesheets: []Stylesheet{
			{Href: "https://fontlibrary.org/face/at-night", Media: "screen", Type: "text/css"},
			{Href: "https://fontlibrary.org/face/chicagoflf", Media: "screen", Type: "text/css"},
		},
		CSS: []string{"/assets/style.css"},
	}

	data, err := yaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return berrors.OutputError("write config", err)
	}

	return nil
}
