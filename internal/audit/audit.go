package audit

import "log/slog"

// Enabled controls whether audit log entries are emitted. Set to false to
// suppress all audit output (useful in tests that don't exercise auditing).
var Enabled = true

// Event represents a structured audit log entry for an artifact mutation.
// Only non-zero fields are included in the log output.
type Event struct {
	RunID    string // Job run that performed the action.
	Tier     string // Retention tier (day, week, month, year).
	Action   string // What was done: "create" or "evict".
	Status   string // Outcome: "succeeded" or "failed".
	Artifact string // Artifact identifier.
	Reason   string // Explanation for a failure.
	Extra    []any  // Additional slog attrs for one-off fields.
}

// Info emits the event as an INFO-level structured audit log entry.
func (e Event) Info(msg string) {
	if !Enabled {
		return
	}
	slog.Info(msg, slog.Group("audit", e.attrs()...))
}

// Warn emits the event as a WARN-level structured audit log entry.
func (e Event) Warn(msg string) {
	if !Enabled {
		return
	}
	slog.Warn(msg, slog.Group("audit", e.attrs()...))
}

// attrs builds the slog attribute list, skipping zero-value fields.
func (e Event) attrs() []any {
	var attrs []any
	if e.RunID != "" {
		attrs = append(attrs, slog.String("run_id", e.RunID))
	}
	if e.Tier != "" {
		attrs = append(attrs, slog.String("tier", e.Tier))
	}
	if e.Action != "" {
		attrs = append(attrs, slog.String("action", e.Action))
	}
	if e.Status != "" {
		attrs = append(attrs, slog.String("status", e.Status))
	}
	if e.Artifact != "" {
		attrs = append(attrs, slog.String("artifact", e.Artifact))
	}
	if e.Reason != "" {
		attrs = append(attrs, slog.String("reason", e.Reason))
	}
	attrs = append(attrs, e.Extra...)
	return attrs
}
