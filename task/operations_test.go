package task

import (
	"math"
	"testing"

	"github.com/fazildgr8/stretch-ai/motion"
	"github.com/fazildgr8/stretch-ai/perception"
	"github.com/fazildgr8/stretch-ai/types"
)

func TestSwitchToNavigation(t *testing.T) {
	robot := newStubRobot()
	robot.mode = types.ModeManipulation
	m := newTestManager(t, robot, motion.NewStubPlanner(), perception.NewStubPerceptor(nil, nil))

	op := NewSwitchToNavigation(m)
	if !op.CanStart() {
		t.Fatal("homed robot cannot start")
	}
	if op.WasSuccessful() {
		t.Fatal("successful before running")
	}
	if err := op.Run(t.Context()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !op.WasSuccessful() {
		t.Error("not successful after posture change")
	}

	postures := robot.Postures()
	if len(postures) != 1 || postures[0] != types.PostureNavigation {
		t.Errorf("postures = %v, want [navigation]", postures)
	}
}

func TestSwitchToNavigation_Preconditions(t *testing.T) {
	tests := []struct {
		name       string
		homed      bool
		runstopped bool
		want       bool
	}{
		{"ready", true, false, true},
		{"not homed", false, false, false},
		{"runstopped", true, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			robot := newStubRobot()
			robot.homed = tt.homed
			robot.runstopped = tt.runstopped
			m := newTestManager(t, robot, motion.NewStubPlanner(), perception.NewStubPerceptor(nil, nil))

			if got := NewSwitchToNavigation(m).CanStart(); got != tt.want {
				t.Errorf("CanStart = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRotateInPlace(t *testing.T) {
	robot := newStubRobot()
	perceptor := perception.NewStubPerceptor([]types.Instance{{ID: 1, Category: "box"}}, nil)
	m := newTestManager(t, robot, motion.NewStubPlanner(), perceptor)

	op := NewRotateInPlace(m, 4)
	if !op.CanStart() {
		t.Fatal("rotate cannot start")
	}
	if err := op.Run(t.Context()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !op.WasSuccessful() {
		t.Error("completed scan not successful")
	}

	navs := robot.Navigations()
	if len(navs) != 4 {
		t.Fatalf("navigations = %d, want 4", len(navs))
	}
	for i, nav := range navs {
		if !nav.relative || !nav.blocking {
			t.Errorf("step %d: relative=%v blocking=%v, want true/true", i, nav.relative, nav.blocking)
		}
		if math.Abs(nav.goal.Theta-math.Pi/2) > 1e-9 {
			t.Errorf("step %d: theta = %v, want pi/2", i, nav.goal.Theta)
		}
	}

	// A full revolution returns the base to its starting heading.
	pose, _ := robot.BasePose()
	if math.Abs(types.NormalizeAngle(pose.Theta)) > 1e-9 {
		t.Errorf("final heading = %v, want 0", pose.Theta)
	}

	if got := perceptor.DetectCalls(); got != 4 {
		t.Errorf("perception refreshes = %d, want 4", got)
	}
	if len(m.Instances()) != 1 {
		t.Error("scan did not fill instance memory")
	}
}

func TestRotateInPlace_ToleratesMissingObservation(t *testing.T) {
	robot := newStubRobot()
	robot.obs = nil
	m := newTestManager(t, robot, motion.NewStubPlanner(), perception.NewStubPerceptor(nil, nil))

	op := NewRotateInPlace(m, 0)
	if err := op.Run(t.Context()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !op.WasSuccessful() {
		t.Error("scan without perception not successful")
	}
	if got := len(robot.Navigations()); got != DefaultRotationSteps {
		t.Errorf("navigations = %d, want %d", got, DefaultRotationSteps)
	}
}

func TestUpdateView_PicksClosestPlannable(t *testing.T) {
	near := types.Instance{ID: 1, Category: "cup", Pose: types.Pose{X: 1}}
	far := types.Instance{ID: 2, Category: "book", Pose: types.Pose{X: 4}}

	robot := newStubRobot()
	planner := motion.NewStubPlanner()
	planner.ScriptUnreachable(near.Pose)
	planner.ScriptReachable(far.Pose)
	perceptor := perception.NewStubPerceptor([]types.Instance{far, near}, nil)
	m := newTestManager(t, robot, planner, perceptor)

	op := NewUpdateView(m)
	if err := op.Run(t.Context()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !op.WasSuccessful() {
		t.Fatal("view update picked nothing")
	}

	obj, ok := m.CurrentObject()
	if !ok || obj.ID != 2 {
		t.Errorf("current object = %+v, want the plannable instance 2", obj)
	}

	// Closest instance is queried first even though memory lists it
	// second.
	queries := planner.Queries()
	if len(queries) != 2 || queries[0] != near.Pose {
		t.Errorf("queries = %v, want nearest first", queries)
	}

	arms := robot.ArmTargets()
	if len(arms) != 1 || len(arms[0]) != types.ArmConfigCount {
		t.Fatalf("arm targets = %v, want one scan configuration", arms)
	}
	if math.Abs(arms[0][1]-0.4) > 1e-9 {
		t.Errorf("scan lift = %v, want 0.4", arms[0][1])
	}
}

func TestUpdateView_InvalidSpaceIsFatal(t *testing.T) {
	robot := newStubRobot()
	planner := motion.NewStubPlanner()
	planner.Fail = motion.ErrInvalidSpace
	perceptor := perception.NewStubPerceptor([]types.Instance{{ID: 1, Category: "cup", Pose: types.Pose{X: 1}}}, nil)
	m := newTestManager(t, robot, planner, perceptor)

	err := NewUpdateView(m).Run(t.Context())
	if err == nil {
		t.Fatal("Run succeeded with an invalid navigation space")
	}
	if !IsFatal(err) {
		t.Errorf("error = %v, want the fatal configuration condition", err)
	}
}

func TestArmConfigExtraction(t *testing.T) {
	positions := make([]float64, types.JointCount)
	for i := range positions {
		positions[i] = float64(i)
	}

	config, ok := armConfig(types.JointState{Positions: positions})
	if !ok {
		t.Fatal("full joint vector rejected")
	}
	want := []float64{
		float64(types.JointBaseX),
		float64(types.JointLift),
		float64(types.JointArm),
		float64(types.JointWristYaw),
		float64(types.JointWristPitch),
		float64(types.JointWristRoll),
	}
	for i := range want {
		if config[i] != want[i] {
			t.Errorf("config[%d] = %v, want %v", i, config[i], want[i])
		}
	}

	if _, ok := armConfig(types.JointState{Positions: positions[:3]}); ok {
		t.Error("short joint vector accepted")
	}
}
