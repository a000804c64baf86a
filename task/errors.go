package task

import (
	"errors"
	"fmt"
)

// ErrInvalidRobotConfiguration marks an unrecoverable environment
// condition: localization lost, or the robot pose outside the valid
// navigable region. It always aborts the enclosing task regardless of
// retry policy, and is distinct from an ordinary failed precondition
// or a timeout.
var ErrInvalidRobotConfiguration = errors.New("invalid robot configuration")

// invalidConfiguration wraps cause as the task-fatal condition.
func invalidConfiguration(cause error) error {
	if cause == nil {
		return ErrInvalidRobotConfiguration
	}
	return fmt.Errorf("%w: %v", ErrInvalidRobotConfiguration, cause)
}

// IsFatal reports whether err is the task-fatal condition.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvalidRobotConfiguration)
}
