package hooks

import (
	"context"
	"time"
)

// Event defines a hook lifecycle trigger.
type Event string

const (
	EventBeforeCommand  Event = "before_command"
	EventAfterCommand   Event = "after_command"
	EventBeforeGit      Event = "before_git"
	EventAfterGit       Event = "after_git"
	EventBeforeStrategy Event = "before_strategy"
	EventAfterStrategy  Event = "after_strategy"
	EventOnError        Event = "on_error"
)

var knownEvents = []Event{
	EventBeforeCommand,
	EventAfterCommand,
	EventBeforeGit,
	EventAfterGit,
	EventBeforeStrategy,
	EventAfterStrategy,
	EventOnError,
}

func KnownEvents() []Event {
	out := make([]Event, len(knownEvents))
	copy(out, knownEvents)
	return out
}

func IsKnownEvent(ev Event) bool {
	for _, known := range knownEvents {
		if known == ev {
			return true
		}
	}
	return false
}

// Context is an immutable hook event snapshot.
type Context struct {
	Timestamp    time.Time      `json:"timestamp"`
	EventID      string         `json:"event_id"`
	Component    string         `json:"component,omitempty"`
	Operation    string         `json:"operation,omitempty"`
	Command      string         `json:"command,omitempty"`
	WorkingDir   string         `json:"working_dir,omitempty"`
	ExitCode     *int           `json:"exit_code,omitempty"`
	Strategy     string         `json:"strategy,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	DurationMs   int64          `json:"duration_ms,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Result is the hook execution result.
type Result struct {
	Status     string         `json:"status"`
	Message    string         `json:"message,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Err        error          `json:"-"`
	DurationMs int64          `json:"duration_ms"`
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Handler handles hook events.
type Handler interface {
	Name() string
	Handle(ctx context.Context, ev Event, data Context) Result
}

// AuditEntry is persisted for reproducibility and troubleshooting.
type AuditEntry struct {
	EventID    string         `json:"event_id"`
	Event      Event          `json:"event"`
	Handler    string         `json:"handler"`
	Status     string         `json:"status"`
	Message    string         `json:"message,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"duration_ms"`
	Timestamp  time.Time      `json:"timestamp"`
	Component  string         `json:"component,omitempty"`
	Operation  string         `json:"operation,omitempty"`
	Command    string         `json:"command,omitempty"`
	ExitCode   *int           `json:"exit_code,omitempty"`
	Strategy   string         `json:"strategy,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// AuditSink writes hook audit entries.
type AuditSink interface {
	Write(entry AuditEntry) error
}
