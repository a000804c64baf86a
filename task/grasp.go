package task

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/fazildgr8/stretch-ai/client"
	"github.com/fazildgr8/stretch-ai/motion"
	"github.com/fazildgr8/stretch-ai/types"
)

// DefaultGraspDistance is how close the base must be to the object
// before the pre-grasp approach starts, in meters.
const DefaultGraspDistance = 0.75

// Arm configuration indices, per the types.ArmConfigJoints order.
const (
	armConfigLift       = 1
	armConfigWristPitch = 4
)

// Head orientation for the manipulation approach: panned to the arm
// side, tilted down at the workspace.
const (
	preGraspHeadPan  = -math.Pi / 2
	preGraspHeadTilt = -math.Pi / 4
)

// arriveTolerance is the positional slack accepted at a navigation
// target, in meters.
const arriveTolerance = 0.25

// graspLiftDelta raises the lift after the gripper closes so the
// object clears the floor.
const graspLiftDelta = 0.2

// gripperClosedThreshold is the gripper position below which the
// gripper counts as holding; a grasped object stops the fingers
// partway.
const gripperClosedThreshold = 0.5

// armReachedTolerance is the per-joint slack accepted when judging a
// commanded arm configuration reached.
const armReachedTolerance = 0.05

// PreGraspApproach switches to manipulation posture and aims the
// head and wrist at the target object, leaving the arm in a
// configuration the grasp can start from.
type PreGraspApproach struct {
	m         *Manager
	threshold float64

	// commanded is the arm configuration issued by the last Run.
	commanded []float64
}

// NewPreGraspApproach creates the approach operation. threshold <= 0
// selects DefaultGraspDistance.
func NewPreGraspApproach(m *Manager, threshold float64) *PreGraspApproach {
	if threshold <= 0 {
		threshold = DefaultGraspDistance
	}
	return &PreGraspApproach{m: m, threshold: threshold}
}

func (o *PreGraspApproach) Name() string { return "pre-grasp-approach" }

// CanStart requires a target object within grasping range.
func (o *PreGraspApproach) CanStart() bool {
	obj, ok := o.m.CurrentObject()
	if !ok {
		return false
	}
	start, ok := o.m.Robot().BasePose()
	if !ok {
		return false
	}
	return start.DistanceTo(obj.Pose) <= o.threshold
}

func (o *PreGraspApproach) Run(ctx context.Context) error {
	o.commanded = nil

	r := o.m.Robot()
	if err := r.MoveToPosture(ctx, types.PostureManipulation); err != nil {
		return fmt.Errorf("manipulation posture: %w", err)
	}
	if err := r.HeadTo(ctx, preGraspHeadPan, preGraspHeadTilt, false); err != nil {
		return fmt.Errorf("aim head: %w", err)
	}

	fast, ok := r.LatestFastState()
	if !ok {
		return errors.New("no joint telemetry available")
	}
	config, ok := armConfig(fast.Joints)
	if !ok {
		return errors.New("joint telemetry incomplete")
	}
	config[armConfigWristPitch] = -math.Pi/2 + pitchFromVertical(o.m)

	o.commanded = config
	return r.ArmTo(ctx, config, true)
}

// WasSuccessful requires manipulation mode and the arm settled at the
// commanded configuration; a blocking ArmTo can return with the arm
// stalled short of its target.
func (o *PreGraspApproach) WasSuccessful() bool {
	if !o.m.Robot().InManipulationMode() {
		return false
	}
	return o.commanded != nil && armReached(o.m.Robot(), o.commanded)
}

// NavigateToTarget plans to the current object or receptacle during
// its precondition check and drives the trajectory during run,
// finishing with a quarter turn so the arm faces the target.
type NavigateToTarget struct {
	m            *Manager
	toReceptacle bool

	// Transient per-cycle state, reset by CanStart.
	plan    types.Plan
	planned bool
	fault   error
}

// NewNavigateToTarget creates the navigation operation. toReceptacle
// selects the placement receptacle as the target instead of the
// object.
func NewNavigateToTarget(m *Manager, toReceptacle bool) *NavigateToTarget {
	return &NavigateToTarget{m: m, toReceptacle: toReceptacle}
}

func (o *NavigateToTarget) Name() string {
	if o.toReceptacle {
		return "navigate-to-receptacle"
	}
	return "navigate-to-object"
}

func (o *NavigateToTarget) target() (types.Instance, bool) {
	if o.toReceptacle {
		return o.m.CurrentReceptacle()
	}
	return o.m.CurrentObject()
}

// CanStart computes a fresh plan to the target. The plan is transient
// and never outlives one check/run cycle.
func (o *NavigateToTarget) CanStart() bool {
	o.plan = types.Plan{}
	o.planned = false
	o.fault = nil

	target, ok := o.target()
	if !ok {
		return false
	}
	start, ok := o.m.Robot().BasePose()
	if !ok {
		return false
	}

	planCtx, cancel := context.WithTimeout(context.Background(), planQueryTimeout)
	defer cancel()

	plan, err := o.m.Planner().PlanTo(planCtx, start, target.Pose)
	if errors.Is(err, motion.ErrInvalidSpace) {
		o.fault = invalidConfiguration(err)
		return false
	}
	if err != nil || !plan.Success {
		return false
	}

	o.plan = plan
	o.planned = true
	return true
}

// Fault implements FaultReporter: an invalid navigation space
// observed while planning aborts the task.
func (o *NavigateToTarget) Fault() error { return o.fault }

func (o *NavigateToTarget) Run(ctx context.Context) error {
	if !o.planned {
		return errors.New("no plan computed")
	}
	r := o.m.Robot()

	if err := r.MoveToPosture(ctx, types.PostureNavigation); err != nil {
		return fmt.Errorf("navigation posture: %w", err)
	}
	if err := r.ExecuteTrajectory(ctx, o.plan.Trajectory, client.TrajectoryParams{}); err != nil {
		return fmt.Errorf("execute trajectory: %w", err)
	}

	// Quarter turn at the goal so the end effector camera faces the
	// target for the approach.
	goal, _ := o.plan.Goal()
	approach := goal
	approach.Theta = types.NormalizeAngle(goal.Theta + math.Pi/2)
	return r.NavigateTo(ctx, approach, false, true)
}

func (o *NavigateToTarget) WasSuccessful() bool {
	goal, ok := o.plan.Goal()
	if !ok {
		return false
	}
	pose, ok := o.m.Robot().BasePose()
	if !ok {
		return false
	}
	return pose.DistanceTo(goal) <= arriveTolerance
}

// GraspObject closes the gripper on the current object: reach with
// the wrist pitched at the object, close, lift.
type GraspObject struct {
	m *Manager
}

// NewGraspObject creates the grasp operation.
func NewGraspObject(m *Manager) *GraspObject {
	return &GraspObject{m: m}
}

func (o *GraspObject) Name() string { return "grasp-object" }

// CanStart requires a target object and manipulation mode; the arm
// cannot reach in navigation mode.
func (o *GraspObject) CanStart() bool {
	if _, ok := o.m.CurrentObject(); !ok {
		return false
	}
	return o.m.Robot().InManipulationMode()
}

func (o *GraspObject) Run(ctx context.Context) error {
	r := o.m.Robot()

	fast, ok := r.LatestFastState()
	if !ok {
		return errors.New("no joint telemetry available")
	}
	pre, ok := armConfig(fast.Joints)
	if !ok {
		return errors.New("joint telemetry incomplete")
	}
	pre[armConfigWristPitch] = -math.Pi/2 + pitchFromVertical(o.m)

	if err := r.ArmTo(ctx, pre, true); err != nil {
		return fmt.Errorf("reach: %w", err)
	}
	if err := r.CloseGripper(ctx, true); err != nil {
		return fmt.Errorf("close gripper: %w", err)
	}

	lift := append([]float64(nil), pre...)
	lift[armConfigLift] += graspLiftDelta
	if err := r.ArmTo(ctx, lift, true); err != nil {
		return fmt.Errorf("lift: %w", err)
	}
	return nil
}

func (o *GraspObject) WasSuccessful() bool {
	fast, ok := o.m.Robot().LatestFastState()
	if !ok {
		return false
	}
	positions := fast.Joints.Positions
	if len(positions) <= types.JointGripper {
		return false
	}
	return positions[types.JointGripper] < gripperClosedThreshold
}

// armConfig extracts the 6-dof arm configuration from full joint
// telemetry.
func armConfig(j types.JointState) ([]float64, bool) {
	if len(j.Positions) < types.JointCount {
		return nil, false
	}
	out := make([]float64, types.ArmConfigCount)
	for i, idx := range types.ArmConfigJoints {
		out[i] = j.Positions[idx]
	}
	return out, true
}

// armReached reports whether the latest telemetry shows the arm
// within tolerance of a commanded configuration.
func armReached(r Robot, target []float64) bool {
	fast, ok := r.LatestFastState()
	if !ok {
		return false
	}
	current, ok := armConfig(fast.Joints)
	if !ok || len(target) != len(current) {
		return false
	}
	for i := range target {
		if math.Abs(current[i]-target[i]) > armReachedTolerance {
			return false
		}
	}
	return true
}

// pitchFromVertical computes the downward wrist pitch that aims the
// gripper at the current object: atan2 of the lateral offset over the
// height offset between the end effector and the object centroid,
// both taken in the base frame. Zero when either side is unknown, so
// the wrist points straight down.
func pitchFromVertical(m *Manager) float64 {
	obj, ok := m.CurrentObject()
	if !ok {
		return 0
	}
	fast, ok := m.Robot().LatestFastState()
	if !ok {
		return 0
	}

	center, ok := obj.Center()
	if !ok {
		center = [3]float64{obj.Pose.X, obj.Pose.Y, 0}
	}
	_, relY := fast.BasePose.ToLocal(center[0], center[1])

	ee := fast.EndEffector.Position
	dy := math.Abs(ee[1] - relY)
	dz := math.Abs(ee[2] - center[2])
	return math.Atan2(dy, dz)
}
