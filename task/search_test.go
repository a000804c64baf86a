package task

import (
	"math"
	"testing"

	"github.com/fazildgr8/stretch-ai/motion"
	"github.com/fazildgr8/stretch-ai/perception"
	"github.com/fazildgr8/stretch-ai/types"
)

func TestSearchForReceptacle_FindsReachableBox(t *testing.T) {
	box := types.Instance{ID: 5, Category: "cardboard box", Pose: types.Pose{X: 2, Y: 1}}
	chair := types.Instance{ID: 6, Category: "chair", Pose: types.Pose{X: 1}}

	robot := newStubRobot()
	planner := motion.NewStubPlanner()
	planner.ScriptReachable(box.Pose)
	perceptor := perception.NewStubPerceptor([]types.Instance{chair, box}, nil)
	m := newTestManager(t, robot, planner, perceptor)

	op := NewSearchForReceptacle(m)
	if !op.CanStart() {
		t.Fatal("search cannot start")
	}
	if err := op.Run(t.Context()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !op.WasSuccessful() {
		t.Fatal("search with a visible box unsuccessful")
	}

	got, ok := m.CurrentReceptacle()
	if !ok || got.ID != 5 {
		t.Errorf("current receptacle = %+v, want instance 5", got)
	}

	// The chair never reaches the planner: category filtering comes
	// first.
	queries := planner.Queries()
	if len(queries) != 1 || queries[0] != box.Pose {
		t.Errorf("plan queries = %v, want just the box", queries)
	}
}

func TestSearchForReceptacle_SkipsUnreachableBox(t *testing.T) {
	blocked := types.Instance{ID: 1, Category: "box", Pose: types.Pose{X: 5}}
	open := types.Instance{ID: 2, Category: "storage box", Pose: types.Pose{X: 2}}

	planner := motion.NewStubPlanner()
	planner.ScriptUnreachable(blocked.Pose)
	planner.ScriptReachable(open.Pose)
	perceptor := perception.NewStubPerceptor([]types.Instance{blocked, open}, nil)
	m := newTestManager(t, newStubRobot(), planner, perceptor)

	op := NewSearchForReceptacle(m)
	if err := op.Run(t.Context()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, ok := m.CurrentReceptacle()
	if !ok || got.ID != 2 {
		t.Errorf("current receptacle = %+v, want the reachable instance 2", got)
	}
}

func TestSearchForReceptacle_ExploresWhenNothingFound(t *testing.T) {
	robot := newStubRobot()
	m := newTestManager(t, robot, motion.NewStubPlanner(), perception.NewStubPerceptor(nil, nil))

	op := NewSearchForReceptacle(m)
	if err := op.Run(t.Context()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if op.WasSuccessful() {
		t.Error("empty search reported success")
	}

	navs := robot.Navigations()
	if len(navs) != 1 {
		t.Fatalf("navigations = %d, want one exploration goal", len(navs))
	}
	nav := navs[0]
	if !nav.relative || nav.blocking {
		t.Errorf("exploration goal relative=%v blocking=%v, want relative non-blocking", nav.relative, nav.blocking)
	}
	if math.Abs(nav.goal.X-exploreStep) > 1e-9 {
		t.Errorf("exploration step = %v, want %v", nav.goal.X, exploreStep)
	}
}

func TestSearchForReceptacle_InvalidSpaceIsFatal(t *testing.T) {
	planner := motion.NewStubPlanner()
	planner.Fail = motion.ErrInvalidSpace
	perceptor := perception.NewStubPerceptor([]types.Instance{{ID: 1, Category: "box", Pose: types.Pose{X: 2}}}, nil)
	m := newTestManager(t, newStubRobot(), planner, perceptor)

	err := NewSearchForReceptacle(m).Run(t.Context())
	if err == nil {
		t.Fatal("Run succeeded with an invalid navigation space")
	}
	if !IsFatal(err) {
		t.Errorf("error = %v, want the fatal configuration condition", err)
	}
}

func TestSearchForObject_RequiresReceptacle(t *testing.T) {
	m := newTestManager(t, newStubRobot(), motion.NewStubPlanner(), perception.NewStubPerceptor(nil, nil))

	op := NewSearchForObject(m)
	if op.CanStart() {
		t.Error("object search startable without a receptacle")
	}

	m.SetCurrentReceptacle(types.Instance{ID: 1, Category: "box"})
	if !op.CanStart() {
		t.Error("object search blocked with a receptacle set")
	}
}

func TestSearchForObject_MatchesFloorRelation(t *testing.T) {
	shelved := types.Instance{ID: 7, Category: "toy robot", Pose: types.Pose{X: 1}}
	floored := types.Instance{ID: 8, Category: "toy duck", Pose: types.Pose{X: 2}}
	relations := []types.Relation{{Subject: 8, Anchor: "floor", Predicate: "on"}}

	planner := motion.NewStubPlanner()
	planner.DefaultSuccess = true
	perceptor := perception.NewStubPerceptor([]types.Instance{shelved, floored}, relations)
	m := newTestManager(t, newStubRobot(), planner, perceptor)
	m.SetCurrentReceptacle(types.Instance{ID: 1, Category: "box"})

	op := NewSearchForObject(m)
	if err := op.Run(t.Context()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !op.WasSuccessful() {
		t.Fatal("search with a floored toy unsuccessful")
	}

	got, ok := m.CurrentObject()
	if !ok || got.ID != 8 {
		t.Errorf("current object = %+v, want the floored instance 8", got)
	}
}

func TestSearchForObject_ExploresWhenNothingMatches(t *testing.T) {
	// A toy with no floor relation does not count.
	perceptor := perception.NewStubPerceptor(
		[]types.Instance{{ID: 7, Category: "toy robot", Pose: types.Pose{X: 1}}}, nil)
	robot := newStubRobot()
	m := newTestManager(t, robot, motion.NewStubPlanner(), perceptor)
	m.SetCurrentReceptacle(types.Instance{ID: 1, Category: "box"})

	op := NewSearchForObject(m)
	if err := op.Run(t.Context()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if op.WasSuccessful() {
		t.Error("search without a floored toy reported success")
	}
	if len(robot.Navigations()) != 1 {
		t.Error("no exploration goal issued")
	}
}
