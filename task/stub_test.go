package task

import (
	"context"
	"sync"
	"testing"

	"github.com/fazildgr8/stretch-ai/client"
	"github.com/fazildgr8/stretch-ai/log"
	"github.com/fazildgr8/stretch-ai/motion"
	"github.com/fazildgr8/stretch-ai/perception"
	"github.com/fazildgr8/stretch-ai/types"
)

// navCall records one NavigateTo invocation.
type navCall struct {
	goal     types.Pose
	relative bool
	blocking bool
}

// stubRobot is a scripted Robot with enough kinematics for operations
// to close their check/run/verify loops: posture commands switch the
// mode, navigation moves the pose, arm and gripper commands write
// through to the joint vector.
type stubRobot struct {
	mu sync.Mutex

	homed      bool
	runstopped bool
	mode       types.ControlMode

	pose    types.Pose
	hasPose bool

	joints      []float64
	endEffector types.Transform
	hasFast     bool

	obs *types.FullObservation

	navigations  []navCall
	trajectories [][]types.Pose
	postures     []string
	armTargets   [][]float64
	headTargets  [][2]float64
	gripperOps   []string
	modeSwitches []types.ControlMode

	// gripperJams leaves the gripper joint where it is on close, as
	// when the fingers stall before reaching the target.
	gripperJams bool

	failNavigate   error
	failTrajectory error
	failPosture    error
	failArm        error
	failGripper    error
}

// newStubRobot returns a homed robot in navigation mode at the origin
// with the gripper open.
func newStubRobot() *stubRobot {
	joints := make([]float64, types.JointCount)
	joints[types.JointGripper] = 1
	return &stubRobot{
		homed:   true,
		mode:    types.ModeNavigation,
		hasPose: true,
		joints:  joints,
		hasFast: true,
		obs:     &types.FullObservation{FrameKind: types.FrameKindFullObservation},
	}
}

func (r *stubRobot) NavigateTo(_ context.Context, goal types.Pose, relative, blocking bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.navigations = append(r.navigations, navCall{goal: goal, relative: relative, blocking: blocking})
	if r.failNavigate != nil {
		return r.failNavigate
	}
	if relative {
		r.pose = r.pose.Compose(goal)
	} else {
		r.pose = goal
	}
	r.hasPose = true
	return nil
}

func (r *stubRobot) ExecuteTrajectory(_ context.Context, waypoints []types.Pose, _ client.TrajectoryParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trajectories = append(r.trajectories, append([]types.Pose(nil), waypoints...))
	if r.failTrajectory != nil {
		return r.failTrajectory
	}
	if len(waypoints) > 0 {
		r.pose = waypoints[len(waypoints)-1]
		r.hasPose = true
	}
	return nil
}

func (r *stubRobot) SwitchMode(_ context.Context, target types.ControlMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modeSwitches = append(r.modeSwitches, target)
	r.mode = target
	return nil
}

func (r *stubRobot) MoveToPosture(_ context.Context, posture string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.postures = append(r.postures, posture)
	if r.failPosture != nil {
		return r.failPosture
	}
	switch posture {
	case types.PostureNavigation:
		r.mode = types.ModeNavigation
	case types.PostureManipulation:
		r.mode = types.ModeManipulation
	}
	return nil
}

func (r *stubRobot) ArmTo(_ context.Context, config []float64, _ bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armTargets = append(r.armTargets, append([]float64(nil), config...))
	if r.failArm != nil {
		return r.failArm
	}
	if len(config) == types.ArmConfigCount && len(r.joints) == types.JointCount {
		for i, idx := range types.ArmConfigJoints {
			r.joints[idx] = config[i]
		}
	}
	return nil
}

func (r *stubRobot) OpenGripper(_ context.Context, _ bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gripperOps = append(r.gripperOps, "open")
	if r.failGripper != nil {
		return r.failGripper
	}
	r.joints[types.JointGripper] = 1
	return nil
}

func (r *stubRobot) CloseGripper(_ context.Context, _ bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gripperOps = append(r.gripperOps, "close")
	if r.failGripper != nil {
		return r.failGripper
	}
	if !r.gripperJams {
		r.joints[types.JointGripper] = 0
	}
	return nil
}

func (r *stubRobot) HeadTo(_ context.Context, pan, tilt float64, _ bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.headTargets = append(r.headTargets, [2]float64{pan, tilt})
	return nil
}

func (r *stubRobot) InNavigationMode() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode == types.ModeNavigation
}

func (r *stubRobot) InManipulationMode() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode == types.ModeManipulation
}

func (r *stubRobot) IsHomed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.homed
}

func (r *stubRobot) IsRunstopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runstopped
}

func (r *stubRobot) BasePose() (types.Pose, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pose, r.hasPose
}

func (r *stubRobot) LatestFastState() (*types.FastState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.hasFast {
		return nil, false
	}
	return &types.FastState{
		FrameKind:    types.FrameKindFastState,
		BasePose:     r.pose,
		EndEffector:  r.endEffector,
		Joints:       types.JointState{Positions: append([]float64(nil), r.joints...)},
		Mode:         r.mode,
		IsHomed:      r.homed,
		IsRunstopped: r.runstopped,
	}, true
}

func (r *stubRobot) LatestObservation() (*types.FullObservation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.obs, r.obs != nil
}

func (r *stubRobot) setPose(p types.Pose) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pose = p
	r.hasPose = true
}

func (r *stubRobot) setJoint(idx int, position float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joints[idx] = position
}

func (r *stubRobot) Navigations() []navCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]navCall(nil), r.navigations...)
}

func (r *stubRobot) Trajectories() [][]types.Pose {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]types.Pose(nil), r.trajectories...)
}

func (r *stubRobot) Postures() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.postures...)
}

func (r *stubRobot) ArmTargets() [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]float64(nil), r.armTargets...)
}

func (r *stubRobot) HeadTargets() [][2]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][2]float64(nil), r.headTargets...)
}

func (r *stubRobot) GripperOps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.gripperOps...)
}

func (r *stubRobot) ModeSwitches() []types.ControlMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.ControlMode(nil), r.modeSwitches...)
}

func (r *stubRobot) GripperPosition() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.joints[types.JointGripper]
}

func (r *stubRobot) Joint(idx int) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.joints[idx]
}

var _ Robot = (*stubRobot)(nil)

// newTestManager wires a Manager over test collaborators.
func newTestManager(t *testing.T, r Robot, planner motion.Planner, perceptor perception.Perceptor) *Manager {
	t.Helper()
	m, err := NewManager(ManagerConfig{
		Robot:     r,
		Planner:   planner,
		Perceptor: perceptor,
		Logger:    log.NewLogger("task-test"),
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}
