package types //nolint:revive // types is a valid package name

import (
	"math"
	"testing"
)

func TestNormalizeAngle(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi / 2, math.Pi / 2},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi / 2, -math.Pi / 2},
		{2 * math.Pi, 0},
		{-5 * math.Pi / 2, -math.Pi / 2},
	}

	for _, tt := range tests {
		if got := NormalizeAngle(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("NormalizeAngle(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPose_Compose_RelativeGoal(t *testing.T) {
	// Robot at (1, 1) facing +y; one meter forward lands at (1, 2).
	base := Pose{X: 1, Y: 1, Theta: math.Pi / 2}
	goal := base.Compose(Pose{X: 1})

	if math.Abs(goal.X-1) > 1e-9 || math.Abs(goal.Y-2) > 1e-9 {
		t.Errorf("Compose forward = (%v, %v), want (1, 2)", goal.X, goal.Y)
	}
	if math.Abs(goal.Theta-math.Pi/2) > 1e-9 {
		t.Errorf("Compose changed heading: %v", goal.Theta)
	}
}

func TestPose_Distances(t *testing.T) {
	a := Pose{X: 0, Y: 0, Theta: 0.1}
	b := Pose{X: 3, Y: 4, Theta: -0.1}

	if got := a.DistanceTo(b); math.Abs(got-5) > 1e-9 {
		t.Errorf("DistanceTo = %v, want 5", got)
	}
	if got := a.AngularDistanceTo(b); math.Abs(got-0.2) > 1e-9 {
		t.Errorf("AngularDistanceTo = %v, want 0.2", got)
	}

	// Wraparound: headings just either side of pi are close.
	c := Pose{Theta: math.Pi - 0.05}
	d := Pose{Theta: -math.Pi + 0.05}
	if got := c.AngularDistanceTo(d); math.Abs(got-0.1) > 1e-9 {
		t.Errorf("AngularDistanceTo across wrap = %v, want 0.1", got)
	}
}

func TestJointState_Settled(t *testing.T) {
	moving := JointState{Velocities: []float64{0, 0.01, 0}}
	if moving.Settled(1e-4) {
		t.Error("Settled() = true for moving joints")
	}

	still := JointState{Velocities: []float64{1e-5, -1e-5, 0}}
	if !still.Settled(1e-4) {
		t.Error("Settled() = false for still joints")
	}

	// No velocity data means we cannot claim quiescence.
	unknown := JointState{Positions: []float64{1, 2, 3}}
	if unknown.Settled(1e-4) {
		t.Error("Settled() = true without velocity data")
	}
}

func TestJointState_WithinTolerance(t *testing.T) {
	j := JointState{Positions: []float64{0.1, 0.5, 0.9}}

	if !j.WithinTolerance([]float64{0.1, 0.5, 0.9}, 1e-6) {
		t.Error("exact match rejected")
	}
	if !j.WithinTolerance([]float64{0.12, 0.48, 0.9}, 0.05) {
		t.Error("within-tolerance match rejected")
	}
	if j.WithinTolerance([]float64{0.1, 0.7, 0.9}, 0.05) {
		t.Error("out-of-tolerance match accepted")
	}
	if j.WithinTolerance([]float64{0.1, 0.5}, 1.0) {
		t.Error("length mismatch accepted")
	}
}

func TestCameraIntrinsics_Scaled(t *testing.T) {
	k := CameraIntrinsics{Fx: 600, Fy: 600, Cx: 320, Cy: 240}
	half := k.Scaled(0.5)

	if half.Fx != 300 || half.Fy != 300 || half.Cx != 160 || half.Cy != 120 {
		t.Errorf("Scaled(0.5) = %+v", half)
	}
}
