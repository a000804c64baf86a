package motion

import (
	"context"
	"sync"

	"github.com/fazildgr8/stretch-ai/types"
)

// StubPlanner is a scripted Planner: exact goal poses map to scripted
// plans, everything else fails or succeeds per DefaultSuccess.
type StubPlanner struct {
	mu      sync.Mutex
	plans   map[types.Pose]types.Plan
	queries []types.Pose

	// DefaultSuccess makes unscripted goals succeed with a two-waypoint
	// straight-line trajectory.
	DefaultSuccess bool

	// Fail makes every query return the given error.
	Fail error
}

// NewStubPlanner creates a planner with no scripted goals.
func NewStubPlanner() *StubPlanner {
	return &StubPlanner{plans: make(map[types.Pose]types.Plan)}
}

// Script sets the plan returned for an exact goal pose.
func (p *StubPlanner) Script(goal types.Pose, plan types.Plan) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plans[goal] = plan
}

// ScriptReachable scripts a successful straight-line plan to goal.
func (p *StubPlanner) ScriptReachable(goal types.Pose) {
	p.Script(goal, types.Plan{Success: true, Trajectory: []types.Pose{goal}})
}

// ScriptUnreachable scripts a planning failure for goal.
func (p *StubPlanner) ScriptUnreachable(goal types.Pose) {
	p.Script(goal, types.Plan{})
}

// PlanTo implements Planner.
func (p *StubPlanner) PlanTo(_ context.Context, start, goal types.Pose) (types.Plan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries = append(p.queries, goal)
	if p.Fail != nil {
		return types.Plan{}, p.Fail
	}
	if plan, ok := p.plans[goal]; ok {
		return plan, nil
	}
	if p.DefaultSuccess {
		mid := types.Pose{X: (start.X + goal.X) / 2, Y: (start.Y + goal.Y) / 2, Theta: goal.Theta}
		return types.Plan{Success: true, Trajectory: []types.Pose{mid, goal}}, nil
	}
	return types.Plan{}, nil
}

// Queries returns the goal poses queried so far, in order.
func (p *StubPlanner) Queries() []types.Pose {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.Pose(nil), p.queries...)
}

// Verify StubPlanner implements Planner.
var _ Planner = (*StubPlanner)(nil)
