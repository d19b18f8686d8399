package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyStage      = "stage"
	KeyPost       = "post"
	KeySourceID   = "source_id"
	KeyFilename   = "filename"
	KeyURL        = "url"
	KeyYear       = "year"
	KeyFile       = "file"
	KeyPath       = "path"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
	KeyReason     = "reason"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Post(title string) slog.Attr     { return slog.String(KeyPost, title) }
func SourceID(id string) slog.Attr    { return slog.String(KeySourceID, id) }
func Filename(name string) slog.Attr  { return slog.String(KeyFilename, name) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Year(y string) slog.Attr         { return slog.String(KeyYear, y) }
func File(f string) slog.Attr         { return slog.String(KeyFile, f) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Reason(r string) slog.Attr       { return slog.String(KeyReason, r) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
