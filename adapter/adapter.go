// Package adapter defines the task notification boundary. Notifiers
// publish task completion events to downstream systems, typically a
// fleet dashboard or an operations channel. The CLI owns notifier
// lifecycle; users provide configuration only.
package adapter

import "context"

// SchemaVersion is the event schema version stamped on every
// published event.
const SchemaVersion = "1.0.0"

// EventTypeTaskCompleted is the event_type value for task completion.
const EventTypeTaskCompleted = "task_completed"

// TaskCompletedEvent is the payload published when a task finishes.
// Flat JSON so consumers in any language can decode it without this
// module's types.
type TaskCompletedEvent struct {
	SchemaVersion string `json:"schema_version"`
	EventType     string `json:"event_type"` // always "task_completed"
	RunID         string `json:"run_id"`
	Task          string `json:"task"`
	Outcome       string `json:"outcome"` // success, failed, fatal, canceled
	Error         string `json:"error,omitempty"`
	Timestamp     string `json:"timestamp"` // ISO 8601 finish time
	DurationMs    int64  `json:"duration_ms"`
	Operations    int    `json:"operations"`
	Attempts      int    `json:"attempts"`
}

// Notifier publishes task completion events to a downstream system.
type Notifier interface {
	// Notify sends a task completion event. Must respect context
	// cancellation and deadlines.
	Notify(ctx context.Context, event *TaskCompletedEvent) error

	// Close releases notifier resources.
	Close() error
}
