// Package task implements the operation and task engine that drives
// autonomous behaviors on the remote side.
//
// An Operation is one atomic behavior with a read-only precondition,
// an action phase that commands the robot, and a read-only
// postcondition. A Task is an ordered composition of operations with
// a per-step failure policy; the Engine walks the steps on a single
// control goroutine, retrying, falling back, or aborting per policy.
// Shared context between operations lives on the Manager.
package task

import "context"

// Operation is one atomic autonomous behavior.
//
// CanStart and WasSuccessful are read-only with respect to the robot:
// they may query state but never issue commands, and they are
// idempotent. Only Run commands the robot. Transient results computed
// during a check (such as a motion plan) live on the operation
// instance and do not outlive one CanStart/Run/WasSuccessful cycle.
type Operation interface {
	// Name identifies the operation in logs and results.
	Name() string
	// CanStart reports whether the operation's preconditions hold.
	CanStart() bool
	// Run performs the behavior, issuing commands through the manager's
	// robot client. A returned error wrapping
	// ErrInvalidRobotConfiguration aborts the whole task.
	Run(ctx context.Context) error
	// WasSuccessful reports whether the behavior achieved its
	// postcondition.
	WasSuccessful() bool
}

// FaultReporter is implemented by operations whose read-only checks
// can observe an unrecoverable robot condition. The engine consults
// Fault after CanStart returns false; a non-nil error wrapping
// ErrInvalidRobotConfiguration aborts the task instead of applying
// the step policy.
type FaultReporter interface {
	Fault() error
}

// Policy selects how a step reacts to a failed precondition or an
// unsuccessful run.
type Policy string

const (
	// PolicyLinear runs the operation once. A failed precondition or
	// postcondition fails the task.
	PolicyLinear Policy = "linear"

	// PolicyRepeatUntilSuccess retries Run, re-checking the
	// precondition each attempt, until the attempt bound.
	PolicyRepeatUntilSuccess Policy = "repeat-until-success"

	// PolicyRotateThenRetry runs the step's fallback operation after a
	// failed precondition or unsuccessful attempt, then retries.
	PolicyRotateThenRetry Policy = "rotate-then-retry"
)

// Step is one slot in a task's operation sequence.
type Step struct {
	// Op is the operation to execute.
	Op Operation
	// Policy selects the retry behavior. Empty means PolicyLinear.
	Policy Policy
	// Fallback runs between attempts under PolicyRotateThenRetry,
	// typically a rescan behavior such as rotating in place.
	Fallback Operation
	// Optional marks a step that is skipped, not failed, when its
	// precondition does not hold.
	Optional bool
}

// Task is an ordered composition of operations with failure policies.
type Task struct {
	// Name identifies the task in logs, results, and events.
	Name string
	// Steps execute in order, one operation active at a time.
	Steps []Step
}

// Status is a task or operation lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	// StatusSkipped marks an optional step whose precondition did not
	// hold.
	StatusSkipped Status = "skipped"
)
