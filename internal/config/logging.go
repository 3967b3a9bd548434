package config

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
)

// LogLevelEnv overrides logging.level when set.
const LogLevelEnv = "BLOGBUILDER_LOG_LEVEL"

// ParseLogLevel maps a textual level to slog; unknown values fall back to info.
func ParseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ResolveLogLevel applies precedence: verbose flag > environment > config.
func ResolveLogLevel(cfg LoggingConfig, verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	if env := os.Getenv(LogLevelEnv); env != "" {
		return ParseLogLevel(env)
	}
	return ParseLogLevel(cfg.Level)
}

// NewLogger builds the process logger. Output always goes to stderr; when logging.file is
// set the same records are also written to a lumberjack-rotated file. The returned closer
// releases that file.
func NewLogger(cfg LoggingConfig, verbose bool) (*slog.Logger, io.Closer) {
	w, closer := LogWriter(cfg, os.Stderr)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ResolveLogLevel(cfg, verbose),
	})), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// LogWriter returns stderr, or stderr tee'd into a rotating file sink, plus the closer
// for the sink.
func LogWriter(cfg LoggingConfig, stderr io.Writer) (io.Writer, io.Closer) {
	if cfg.File == "" {
		return stderr, nopCloser{}
	}
	sink := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return io.MultiWriter(stderr, sink), sink
}
