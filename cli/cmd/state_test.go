package cmd

import (
	"math"
	"testing"
	"time"

	"github.com/fazildgr8/stretch-ai/types"
)

func TestBuildStateResponse(t *testing.T) {
	positions := make([]float64, types.JointCount)
	positions[types.JointLift] = 0.6
	positions[types.JointArm] = 0.25
	positions[types.JointGripper] = 0.04

	capturedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	st := &types.FastState{
		FrameStep:  42,
		CapturedAt: capturedAt.UnixNano(),
		BasePose:   types.Pose{X: 1.5, Y: -0.25, Theta: math.Pi / 2},
		Joints:     types.JointState{Positions: positions},
		Mode:       types.ModeNavigation,
		IsHomed:    true,
		AtGoal:     true,
	}

	resp := buildStateResponse(st)

	if resp.Step != 42 {
		t.Errorf("Step = %d, want 42", resp.Step)
	}
	if resp.Mode != string(types.ModeNavigation) {
		t.Errorf("Mode = %q, want %q", resp.Mode, types.ModeNavigation)
	}
	if !resp.Homed || !resp.AtGoal {
		t.Errorf("Homed = %v, AtGoal = %v, want both true", resp.Homed, resp.AtGoal)
	}
	if resp.Runstopped || resp.MotionFailed {
		t.Errorf("Runstopped = %v, MotionFailed = %v, want both false", resp.Runstopped, resp.MotionFailed)
	}
	if resp.X != 1.5 || resp.Y != -0.25 {
		t.Errorf("position = (%v, %v), want (1.5, -0.25)", resp.X, resp.Y)
	}
	if math.Abs(resp.ThetaDeg-90) > 1e-9 {
		t.Errorf("ThetaDeg = %v, want 90", resp.ThetaDeg)
	}
	if resp.Lift != 0.6 || resp.Arm != 0.25 || resp.Gripper != 0.04 {
		t.Errorf("joints = (%v, %v, %v), want (0.6, 0.25, 0.04)", resp.Lift, resp.Arm, resp.Gripper)
	}
	if resp.CapturedAt == "" {
		t.Error("CapturedAt should be set when the frame carries a timestamp")
	}
}

func TestBuildStateResponse_ShortJointVector(t *testing.T) {
	// A frame with a truncated joint vector must not panic; joint
	// fields stay zero.
	st := &types.FastState{
		FrameStep: 1,
		Joints:    types.JointState{Positions: []float64{0.1, 0.2}},
		Mode:      types.ModeManipulation,
	}

	resp := buildStateResponse(st)

	if resp.Lift != 0 || resp.Arm != 0 || resp.Gripper != 0 {
		t.Errorf("joints = (%v, %v, %v), want all zero", resp.Lift, resp.Arm, resp.Gripper)
	}
	if resp.CapturedAt != "" {
		t.Errorf("CapturedAt = %q, want empty for zero timestamp", resp.CapturedAt)
	}
}
