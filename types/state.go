package types

// ControlMode selects which actuator subsystem owns the robot.
type ControlMode string

const (
	// ModeNavigation accepts base navigation goals and velocities.
	ModeNavigation ControlMode = "navigation"
	// ModeManipulation accepts arm, gripper, and head targets.
	ModeManipulation ControlMode = "manipulation"
	// ModeBusy rejects motion targets while a posture change or other
	// exclusive activity is in progress.
	ModeBusy ControlMode = "busy"
)

// Valid reports whether m is a known control mode.
func (m ControlMode) Valid() bool {
	switch m {
	case ModeNavigation, ModeManipulation, ModeBusy:
		return true
	}
	return false
}

// StateFlags is the discrete robot state. Mutated only by the robot
// process in response to applied commands or hardware events; the
// remote side reads the copy carried by the most recent FastState.
type StateFlags struct {
	// Mode is the active control mode.
	Mode ControlMode `msgpack:"control_mode" json:"control_mode"`
	// IsHomed reports whether the robot has completed homing.
	IsHomed bool `msgpack:"is_homed" json:"is_homed"`
	// IsRunstopped reports whether the hardware run-stop is engaged.
	IsRunstopped bool `msgpack:"is_runstopped" json:"is_runstopped"`
	// AtGoal reports whether the base controller reached its goal.
	AtGoal bool `msgpack:"at_goal" json:"at_goal"`
}
