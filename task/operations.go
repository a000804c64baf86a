package task

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/fazildgr8/stretch-ai/motion"
	"github.com/fazildgr8/stretch-ai/types"
)

// DefaultRotationSteps is the number of in-place rotation steps for a
// full scan.
const DefaultRotationSteps = 8

// planQueryTimeout bounds read-only planner queries issued from
// precondition checks and scans.
const planQueryTimeout = 5 * time.Second

// scanArmConfig positions the lift and wrist so the end effector
// camera sweeps the workspace during a view update.
var scanArmConfig = []float64{0, 0.4, 0.05, 0, -math.Pi / 4, 0}

// SwitchToNavigation puts the robot into navigation posture.
type SwitchToNavigation struct {
	m *Manager
}

// NewSwitchToNavigation creates the mode-switch operation.
func NewSwitchToNavigation(m *Manager) *SwitchToNavigation {
	return &SwitchToNavigation{m: m}
}

func (o *SwitchToNavigation) Name() string { return "switch-to-navigation" }

// CanStart requires a homed, runnable robot.
func (o *SwitchToNavigation) CanStart() bool {
	r := o.m.Robot()
	return r.IsHomed() && !r.IsRunstopped()
}

func (o *SwitchToNavigation) Run(ctx context.Context) error {
	return o.m.Robot().MoveToPosture(ctx, types.PostureNavigation)
}

func (o *SwitchToNavigation) WasSuccessful() bool {
	return o.m.Robot().InNavigationMode()
}

// RotateInPlace turns the base through a full revolution in fixed
// increments, refreshing perception between steps so the scan fills
// the instance memory.
type RotateInPlace struct {
	m     *Manager
	steps int
	done  bool
}

// NewRotateInPlace creates the scan operation. steps <= 0 selects
// DefaultRotationSteps.
func NewRotateInPlace(m *Manager, steps int) *RotateInPlace {
	if steps <= 0 {
		steps = DefaultRotationSteps
	}
	return &RotateInPlace{m: m, steps: steps}
}

func (o *RotateInPlace) Name() string { return "rotate-in-place" }

func (o *RotateInPlace) CanStart() bool { return true }

func (o *RotateInPlace) Run(ctx context.Context) error {
	o.done = false
	increment := 2 * math.Pi / float64(o.steps)

	for i := 0; i < o.steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		turn := types.Pose{Theta: increment}
		if err := o.m.Robot().NavigateTo(ctx, turn, true, true); err != nil {
			return fmt.Errorf("rotation step %d: %w", i+1, err)
		}
		if err := o.m.RefreshPerception(ctx); err != nil {
			// Early in a run there may be no observation yet; the scan
			// itself still completes.
			o.m.Logger().Warn("perception refresh failed during scan", map[string]any{
				"step":  i + 1,
				"error": err.Error(),
			})
		}
	}
	o.done = true
	return nil
}

func (o *RotateInPlace) WasSuccessful() bool { return o.done }

// UpdateView raises the arm to the scan configuration, refreshes
// perception, and targets the closest instance the planner can
// reach.
type UpdateView struct {
	m      *Manager
	picked bool
}

// NewUpdateView creates the view update operation.
func NewUpdateView(m *Manager) *UpdateView {
	return &UpdateView{m: m}
}

func (o *UpdateView) Name() string { return "update-view" }

func (o *UpdateView) CanStart() bool { return true }

func (o *UpdateView) Run(ctx context.Context) error {
	o.picked = false

	config := append([]float64(nil), scanArmConfig...)
	if err := o.m.Robot().ArmTo(ctx, config, true); err != nil {
		return fmt.Errorf("move to scan configuration: %w", err)
	}
	if err := o.m.RefreshPerception(ctx); err != nil {
		return err
	}

	start, ok := o.m.Robot().BasePose()
	if !ok {
		return errors.New("no base pose available")
	}

	instances := o.m.Instances()
	sort.Slice(instances, func(i, j int) bool {
		return start.DistanceTo(instances[i].Pose) < start.DistanceTo(instances[j].Pose)
	})

	for _, inst := range instances {
		plan, err := o.planTo(ctx, start, inst.Pose)
		if err != nil {
			return err
		}
		if plan.Success {
			o.m.SetCurrentObject(inst)
			o.picked = true
			o.m.Logger().Info("view update targeted instance", map[string]any{
				"instance": inst.ID,
				"category": inst.Category,
			})
			return nil
		}
	}
	return nil
}

func (o *UpdateView) planTo(ctx context.Context, start, goal types.Pose) (types.Plan, error) {
	planCtx, cancel := context.WithTimeout(ctx, planQueryTimeout)
	defer cancel()

	plan, err := o.m.Planner().PlanTo(planCtx, start, goal)
	if errors.Is(err, motion.ErrInvalidSpace) {
		return types.Plan{}, invalidConfiguration(err)
	}
	if err != nil {
		return types.Plan{}, fmt.Errorf("plan query: %w", err)
	}
	return plan, nil
}

func (o *UpdateView) WasSuccessful() bool { return o.picked }
