package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/fazildgr8/stretch-ai/adapter"
)

// Outcome classifies how a task execution ended.
type Outcome string

const (
	// OutcomeSuccess means every step succeeded or was skipped.
	OutcomeSuccess Outcome = "success"
	// OutcomeFailed means a step exhausted its policy without success.
	OutcomeFailed Outcome = "failed"
	// OutcomeFatal means an operation observed an invalid robot
	// configuration and the task aborted.
	OutcomeFatal Outcome = "fatal"
	// OutcomeCanceled means the execution context was canceled.
	OutcomeCanceled Outcome = "canceled"
)

// OperationResult records one step's execution.
type OperationResult struct {
	Name string `json:"name"`
	// Status is the step's terminal status: succeeded, failed, or
	// skipped.
	Status Status `json:"status"`
	// Attempts counts Run invocations.
	Attempts int `json:"attempts"`
	// FallbackRuns counts fallback operation invocations.
	FallbackRuns int `json:"fallback_runs,omitempty"`
	// Error is the terminal error text, empty on success.
	Error string `json:"error,omitempty"`
	// DurationMs is the step's wall time in milliseconds.
	DurationMs int64 `json:"duration_ms"`
}

// Result is the terminal record of one task execution.
type Result struct {
	// RunID uniquely identifies this execution.
	RunID string `json:"run_id"`
	// Task is the executed task's name.
	Task string `json:"task"`
	// Outcome classifies the ending.
	Outcome Outcome `json:"outcome"`
	// Error is the terminal error text for non-success outcomes.
	Error string `json:"error,omitempty"`
	// StartedAt is the execution start time.
	StartedAt time.Time `json:"started_at"`
	// DurationMs is total wall time in milliseconds.
	DurationMs int64 `json:"duration_ms"`
	// Operations holds per-step records in execution order. Steps the
	// task never reached are absent.
	Operations []OperationResult `json:"operations"`
}

// TotalAttempts sums Run invocations across all steps.
func (r *Result) TotalAttempts() int {
	total := 0
	for _, op := range r.Operations {
		total += op.Attempts
	}
	return total
}

// Event converts the result into the published notification payload.
func (r *Result) Event() *adapter.TaskCompletedEvent {
	finished := r.StartedAt.Add(time.Duration(r.DurationMs) * time.Millisecond)
	return &adapter.TaskCompletedEvent{
		SchemaVersion: adapter.SchemaVersion,
		EventType:     adapter.EventTypeTaskCompleted,
		RunID:         r.RunID,
		Task:          r.Task,
		Outcome:       string(r.Outcome),
		Error:         r.Error,
		Timestamp:     finished.UTC().Format(time.RFC3339),
		DurationMs:    r.DurationMs,
		Operations:    len(r.Operations),
		Attempts:      r.TotalAttempts(),
	}
}

// Summary renders a human-readable execution report.
func (r *Result) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "task %s (%s): %s in %s\n",
		r.Task, r.RunID, r.Outcome, time.Duration(r.DurationMs)*time.Millisecond)
	if r.Error != "" {
		fmt.Fprintf(&b, "  error: %s\n", r.Error)
	}
	for _, op := range r.Operations {
		fmt.Fprintf(&b, "  %-28s %-10s attempts=%d", op.Name, op.Status, op.Attempts)
		if op.FallbackRuns > 0 {
			fmt.Fprintf(&b, " fallbacks=%d", op.FallbackRuns)
		}
		fmt.Fprintf(&b, " (%s)", time.Duration(op.DurationMs)*time.Millisecond)
		if op.Error != "" {
			fmt.Fprintf(&b, " error=%s", op.Error)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
