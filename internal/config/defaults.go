package config

import "time"

// Default values applied before the YAML document is decoded on top.
const (
	DefaultPostsDir        = "./assets/posts"
	DefaultRoutePrefix     = "/blog/"
	DefaultOutputDir       = "./public"
	DefaultPreviewPort     = 3000
	DefaultDebounce        = 300 * time.Millisecond
	DefaultRenderCacheSize = 256
	DefaultEventsSubject   = "blogbuilder.builds"
)

// Default returns a configuration carrying every default. Parse decodes YAML on top
// of it, so keys absent from the file keep these values and explicit zero values win.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			Title: "Blog",
			Lang:  "en",
		},
		Posts: PostsConfig{
			Dir:             DefaultPostsDir,
			Source:          SourceDirectory,
			StemMode:        StemLegacy,
			FilterExtension: true,
		},
		Routes: RoutesConfig{
			Prefix: DefaultRoutePrefix,
		},
		Output: OutputConfig{
			Directory: DefaultOutputDir,
			Clean:     true,
		},
		Markdown: MarkdownConfig{
			GFM: true,
		},
		Preview: PreviewConfig{
			Port:            DefaultPreviewPort,
			Debounce:        DefaultDebounce,
			RenderCacheSize: DefaultRenderCacheSize,
		},
		Events: EventsConfig{
			Subject: DefaultEventsSubject,
			Retry: RetryConfig{
				Backoff:    RetryBackoffExponential,
				Initial:    250 * time.Millisecond,
				Max:        2 * time.Second,
				MaxRetries: 2,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 7,
			MaxAgeDays: 14,
		},
	}
}
