// Package types defines the domain types shared by the robot and
// remote processes: telemetry frames, commands, poses, and task states.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
)

// CommandKind is the wire discriminator for command payloads.
const CommandKind = "command"

// Posture names accepted by the posture intent.
const (
	PostureNavigation   = "navigation"
	PostureManipulation = "manipulation"
)

// Intent classifies which command field class is honored.
type Intent string

// Intent classes in resolution order. When a command carries fields
// from more than one class, only the highest-precedence class is
// honored; both ends of the wire must classify identically.
const (
	IntentNone         Intent = "none"
	IntentPosture      Intent = "posture"
	IntentControlMode  Intent = "control_mode"
	IntentSaveMap      Intent = "save_map"
	IntentLoadMap      Intent = "load_map"
	IntentSay          Intent = "say"
	IntentNavigation   Intent = "navigation"
	IntentManipulation Intent = "manipulation"
	IntentVelocity     Intent = "velocity"
)

// NavGoal is a base navigation target.
type NavGoal struct {
	// Pose is the goal pose: world frame when Relative is false,
	// current-base frame when true.
	Pose Pose `msgpack:"pose" json:"pose"`
	// Relative selects interpretation of Pose.
	Relative bool `msgpack:"relative" json:"relative"`
}

// HeadTarget is a head pan/tilt target in radians.
type HeadTarget struct {
	Pan  float64 `msgpack:"pan" json:"pan"`
	Tilt float64 `msgpack:"tilt" json:"tilt"`
}

// VelocityTarget is a direct base velocity command.
type VelocityTarget struct {
	// V is the linear velocity in m/s.
	V float64 `msgpack:"v" json:"v"`
	// W is the angular velocity in rad/s.
	W float64 `msgpack:"w" json:"w"`
}

// Command is one instruction from the remote process to the robot.
// Fields are grouped into mutually-exclusive intent classes; exactly
// one class is honored per command (see Intent). All intent fields are
// optional on the wire so older robots can ignore classes they do not
// understand.
type Command struct {
	// Kind is always "command".
	Kind string `msgpack:"kind" json:"kind"`
	// Step is the issuer-assigned monotonic sequence number. The robot
	// discards a command whose step does not exceed the last-applied
	// step of its intent class.
	Step int64 `msgpack:"step" json:"step"`

	// Posture requests a named posture change. The robot switches to
	// busy, moves to the posture, then enters the matching mode.
	Posture *string `msgpack:"posture,omitempty" json:"posture,omitempty"`
	// ControlMode requests a control mode switch.
	ControlMode *ControlMode `msgpack:"control_mode,omitempty" json:"control_mode,omitempty"`
	// SaveMap persists the current map under the given name.
	SaveMap *string `msgpack:"save_map,omitempty" json:"save_map,omitempty"`
	// LoadMap replaces the current map with the named one.
	LoadMap *string `msgpack:"load_map,omitempty" json:"load_map,omitempty"`
	// Say speaks the given text on the robot.
	Say *string `msgpack:"say,omitempty" json:"say,omitempty"`
	// NavGoal is a base navigation target.
	NavGoal *NavGoal `msgpack:"nav_goal,omitempty" json:"nav_goal,omitempty"`
	// Joint is an arm target configuration of length ArmConfigCount.
	Joint []float64 `msgpack:"joint,omitempty" json:"joint,omitempty"`
	// Gripper is an absolute gripper position target.
	Gripper *float64 `msgpack:"gripper,omitempty" json:"gripper,omitempty"`
	// Head is a head pan/tilt target.
	Head *HeadTarget `msgpack:"head,omitempty" json:"head,omitempty"`
	// Velocity is a direct base velocity target.
	Velocity *VelocityTarget `msgpack:"velocity,omitempty" json:"velocity,omitempty"`
}

// NewCommand returns an empty command carrying the given step.
func NewCommand(step int64) *Command {
	return &Command{Kind: CommandKind, Step: step}
}

// Intent resolves the honored intent class by field presence, in the
// fixed precedence order. Joint, gripper, and head targets form a
// single manipulation class: they may travel together in one command
// and are applied together.
func (c *Command) Intent() Intent {
	switch {
	case c.Posture != nil:
		return IntentPosture
	case c.ControlMode != nil:
		return IntentControlMode
	case c.SaveMap != nil:
		return IntentSaveMap
	case c.LoadMap != nil:
		return IntentLoadMap
	case c.Say != nil:
		return IntentSay
	case c.NavGoal != nil:
		return IntentNavigation
	case c.Joint != nil || c.Gripper != nil || c.Head != nil:
		return IntentManipulation
	case c.Velocity != nil:
		return IntentVelocity
	}
	return IntentNone
}

// ErrNoIntent marks a command carrying no intent field.
var ErrNoIntent = errors.New("command has no intent field")

// Validate checks that the command is well-formed for its honored
// intent. Robots log and drop invalid commands without failing the
// channel.
func (c *Command) Validate() error {
	switch c.Intent() {
	case IntentNone:
		return ErrNoIntent
	case IntentPosture:
		if p := *c.Posture; p != PostureNavigation && p != PostureManipulation {
			return fmt.Errorf("unknown posture %q", p)
		}
	case IntentControlMode:
		if m := *c.ControlMode; m != ModeNavigation && m != ModeManipulation {
			return fmt.Errorf("cannot request control mode %q", m)
		}
	case IntentSaveMap:
		if *c.SaveMap == "" {
			return errors.New("save_map requires a map name")
		}
	case IntentLoadMap:
		if *c.LoadMap == "" {
			return errors.New("load_map requires a map name")
		}
	case IntentManipulation:
		if c.Joint != nil && len(c.Joint) != ArmConfigCount {
			return fmt.Errorf("joint target has %d values, want %d", len(c.Joint), ArmConfigCount)
		}
	}
	return nil
}
