package types

// TaskState is the lifecycle state of a task execution.
type TaskState string

const (
	// TaskPending means the task has not started executing.
	TaskPending TaskState = "pending"
	// TaskRunning means an operation is currently active.
	TaskRunning TaskState = "running"
	// TaskSucceeded means every operation completed successfully.
	TaskSucceeded TaskState = "succeeded"
	// TaskFailed means the task aborted or exhausted its retries.
	TaskFailed TaskState = "failed"
)

// Terminal reports whether s is a final state.
func (s TaskState) Terminal() bool {
	return s == TaskSucceeded || s == TaskFailed
}
