package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyRoute      = "route"
	KeyPath       = "path"
	KeyFile       = "file"
	KeySource     = "source"
	KeyCount      = "count"
	KeyPrefix     = "prefix"
	KeyTrigger    = "trigger"
	KeyMethod     = "method"
	KeyURL        = "url"
	KeyStatus     = "status"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Route(r string) slog.Attr        { return slog.String(KeyRoute, r) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func File(f string) slog.Attr         { return slog.String(KeyFile, f) }
func Source(s string) slog.Attr       { return slog.String(KeySource, s) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Prefix(p string) slog.Attr       { return slog.String(KeyPrefix, p) }
func Trigger(t string) slog.Attr      { return slog.String(KeyTrigger, t) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
