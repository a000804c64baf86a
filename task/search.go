package task

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fazildgr8/stretch-ai/motion"
	"github.com/fazildgr8/stretch-ai/types"
)

// Category fragments matched against instance labels while searching.
const (
	receptacleCategory = "box"
	objectCategory     = "toy"
)

// Scene graph terms for objects resting on the floor.
const (
	anchorFloor = "floor"
	predicateOn = "on"
)

// exploreStep is the relative forward motion issued as a frontier
// stand-in when no target is found, nudging the robot toward
// unexplored space before the next scan.
const exploreStep = 0.5

// SearchForReceptacle scans the instance memory for a reachable
// receptacle on the floor and records it as the placement target.
// When nothing matches it issues an exploration goal and reports
// unsuccessful, so a retrying policy rescans from a new pose.
type SearchForReceptacle struct {
	m *Manager
}

// NewSearchForReceptacle creates the receptacle search.
func NewSearchForReceptacle(m *Manager) *SearchForReceptacle {
	return &SearchForReceptacle{m: m}
}

func (o *SearchForReceptacle) Name() string { return "search-for-receptacle" }

func (o *SearchForReceptacle) CanStart() bool { return true }

func (o *SearchForReceptacle) Run(ctx context.Context) error {
	refreshPerception(ctx, o.m)

	start, ok := o.m.Robot().BasePose()
	if !ok {
		return errors.New("no base pose available")
	}

	for _, inst := range o.m.Instances() {
		if !strings.Contains(inst.Category, receptacleCategory) {
			continue
		}
		plan, err := planGate(ctx, o.m, start, inst.Pose)
		if err != nil {
			return err
		}
		if plan.Success {
			o.m.SetCurrentReceptacle(inst)
			o.m.Logger().Info("receptacle found", map[string]any{
				"instance": inst.ID,
				"category": inst.Category,
			})
			return nil
		}
	}

	if _, ok := o.m.CurrentReceptacle(); !ok {
		o.m.Logger().Info("no receptacle found, exploring", nil)
		explore(ctx, o.m)
	}
	return nil
}

func (o *SearchForReceptacle) WasSuccessful() bool {
	_, ok := o.m.CurrentReceptacle()
	return ok
}

// SearchForObject scans the instance memory for a graspable object
// resting on the floor, gated on the scene graph and planner
// reachability. Requires a receptacle target first, so the grasped
// object has somewhere to go.
type SearchForObject struct {
	m *Manager
}

// NewSearchForObject creates the object search.
func NewSearchForObject(m *Manager) *SearchForObject {
	return &SearchForObject{m: m}
}

func (o *SearchForObject) Name() string { return "search-for-object" }

func (o *SearchForObject) CanStart() bool {
	_, ok := o.m.CurrentReceptacle()
	return ok
}

func (o *SearchForObject) Run(ctx context.Context) error {
	refreshPerception(ctx, o.m)

	start, ok := o.m.Robot().BasePose()
	if !ok {
		return errors.New("no base pose available")
	}

	for _, inst := range o.m.Instances() {
		if !strings.Contains(inst.Category, objectCategory) {
			continue
		}
		if !o.m.HasRelation(inst.ID, anchorFloor, predicateOn) {
			continue
		}
		plan, err := planGate(ctx, o.m, start, inst.Pose)
		if err != nil {
			return err
		}
		if plan.Success {
			o.m.SetCurrentObject(inst)
			o.m.Logger().Info("object found on floor", map[string]any{
				"instance": inst.ID,
				"category": inst.Category,
			})
			return nil
		}
	}

	if _, ok := o.m.CurrentObject(); !ok {
		o.m.Logger().Info("no object found, exploring", nil)
		explore(ctx, o.m)
	}
	return nil
}

func (o *SearchForObject) WasSuccessful() bool {
	_, ok := o.m.CurrentObject()
	return ok
}

// refreshPerception updates the instance memory, tolerating failure:
// a scan over stale memory still beats aborting, and early in a run
// the first observation may not have arrived.
func refreshPerception(ctx context.Context, m *Manager) {
	if err := m.RefreshPerception(ctx); err != nil {
		m.Logger().Warn("perception refresh failed", map[string]any{
			"error": err.Error(),
		})
	}
}

// planGate runs a bounded reachability query. An invalid navigation
// space is the task-fatal condition; other planner faults are
// recoverable.
func planGate(ctx context.Context, m *Manager, start, goal types.Pose) (types.Plan, error) {
	planCtx, cancel := context.WithTimeout(ctx, planQueryTimeout)
	defer cancel()

	plan, err := m.Planner().PlanTo(planCtx, start, goal)
	if errors.Is(err, motion.ErrInvalidSpace) {
		return types.Plan{}, invalidConfiguration(err)
	}
	if err != nil {
		return types.Plan{}, fmt.Errorf("plan query: %w", err)
	}
	return plan, nil
}

// explore issues the frontier stand-in goal, fire and forget.
func explore(ctx context.Context, m *Manager) {
	goal := types.Pose{X: exploreStep}
	if err := m.Robot().NavigateTo(ctx, goal, true, false); err != nil {
		m.Logger().Warn("exploration goal failed", map[string]any{
			"error": err.Error(),
		})
	}
}
