// Package server implements the robot-side daemon: three telemetry
// loops, a command consumer, and the hardware driver abstraction they
// share.
package server

import (
	"context"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/fazildgr8/stretch-ai/types"
)

// DriverState is one coherent snapshot of the robot's internal state
// source. Loops read it concurrently; the driver owns consistency.
type DriverState struct {
	BasePose         types.Pose
	EndEffector      types.Transform
	Joints           types.JointState
	Mode             types.ControlMode
	AtGoal           bool
	IsHomed          bool
	IsRunstopped     bool
	LastMotionFailed bool
	GPS              [2]float64
	Compass          float64
}

// Capture is one camera frame straight off the sensor: color pixels,
// row-major depth in meters, and the calibration that goes with them.
type Capture struct {
	Color      image.Image
	Depth      []float32
	Width      int
	Height     int
	Intrinsics types.CameraIntrinsics
	Pose       types.Transform
}

// Driver abstracts the robot hardware and SLAM stack. The daemon is
// the only writer: telemetry loops read snapshots and captures, the
// command consumer applies actuation. Implementations must be safe for
// that mix of callers.
type Driver interface {
	// State returns the current state snapshot.
	State() DriverState
	// CaptureHead returns the head camera's current frame.
	CaptureHead() (Capture, error)
	// CaptureEndEffector returns the wrist camera's current frame.
	CaptureEndEffector() (Capture, error)

	// SetMode switches the control mode, including busy.
	SetMode(mode types.ControlMode) error
	// MoveToPosture drives the body to a named posture configuration.
	MoveToPosture(posture string) error
	// NavigateTo starts base motion toward a goal pose.
	NavigateTo(goal types.Pose, relative bool) error
	// SetVelocity applies a direct base velocity (m/s, rad/s).
	SetVelocity(v, w float64) error
	// ArmTo drives the arm toward a 6-dof configuration.
	ArmTo(joints []float64) error
	// Gripper drives the gripper toward a target aperture.
	Gripper(target float64) error
	// HeadTo drives the head pan/tilt.
	HeadTo(pan, tilt float64) error
	// Say speaks text on the robot.
	Say(text string) error

	// SerializeMap exports the current SLAM map.
	SerializeMap(ctx context.Context) ([]byte, error)
	// RestoreMap replaces the current SLAM map.
	RestoreMap(ctx context.Context, data []byte) error

	// Close releases camera and actuator handles.
	Close() error
}

// Stub capture dimensions. Small enough that tests stay fast, big
// enough that compression round-trips are meaningful.
const (
	stubHeadWidth  = 64
	stubHeadHeight = 48
	stubEEWidth    = 32
	stubEEHeight   = 24
)

// Recording is the stub driver's actuation log, in application order.
type Recording struct {
	Modes      []types.ControlMode
	Postures   []string
	NavGoals   []types.Pose
	Velocities [][2]float64
	ArmTargets [][]float64
	Grippers   []float64
	HeadPans   []float64
	HeadTilts  []float64
	Spoken     []string
	MapsSaved  int
	MapsLoaded int
}

// StubDriver is a deterministic in-memory Driver. Actions apply
// instantly: navigation teleports the base and arrives at the goal,
// joint targets snap into place, velocities settle to zero. Every
// actuation is recorded; read the log through Recorded.
//
// Use for daemon tests and for running the full stack without
// hardware.
type StubDriver struct {
	mu sync.Mutex

	pose             types.Pose
	ee               types.Transform
	joints           types.JointState
	mode             types.ControlMode
	atGoal           bool
	homed            bool
	runstopped       bool
	lastMotionFailed bool
	mapData          []byte
	closed           bool

	rec Recording

	// HoldAtGoal keeps at_goal false after NavigateTo, for exercising
	// wait timeouts.
	HoldAtGoal bool
}

// NewStubDriver creates a stub robot: homed, not runstopped, in
// navigation mode at the origin with a zeroed arm.
func NewStubDriver() *StubDriver {
	joints := types.JointState{
		Positions:  make([]float64, types.JointCount),
		Velocities: make([]float64, types.JointCount),
		Efforts:    make([]float64, types.JointCount),
	}
	return &StubDriver{
		joints:  joints,
		mode:    types.ModeNavigation,
		atGoal:  true,
		homed:   true,
		mapData: []byte("stub-map-v1"),
		ee: types.Transform{
			Position:    [3]float64{0.2, 0, 0.8},
			Orientation: [4]float64{0, 0, 0, 1},
		},
	}
}

// State implements Driver.
func (d *StubDriver) State() DriverState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DriverState{
		BasePose:         d.pose,
		EndEffector:      d.ee,
		Joints:           cloneJointState(d.joints),
		Mode:             d.mode,
		AtGoal:           d.atGoal,
		IsHomed:          d.homed,
		IsRunstopped:     d.runstopped,
		LastMotionFailed: d.lastMotionFailed,
		GPS:              [2]float64{d.pose.X, d.pose.Y},
		Compass:          d.pose.Theta,
	}
}

// CaptureHead implements Driver with a deterministic gradient frame.
func (d *StubDriver) CaptureHead() (Capture, error) {
	return syntheticCapture(stubHeadWidth, stubHeadHeight, 1.5), nil
}

// CaptureEndEffector implements Driver with a deterministic gradient frame.
func (d *StubDriver) CaptureEndEffector() (Capture, error) {
	return syntheticCapture(stubEEWidth, stubEEHeight, 0.4), nil
}

// SetMode implements Driver.
func (d *StubDriver) SetMode(mode types.ControlMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode = mode
	d.rec.Modes = append(d.rec.Modes, mode)
	return nil
}

// MoveToPosture implements Driver.
func (d *StubDriver) MoveToPosture(posture string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rec.Postures = append(d.rec.Postures, posture)
	return nil
}

// NavigateTo implements Driver. The stub arrives instantly unless
// HoldAtGoal is set.
func (d *StubDriver) NavigateTo(goal types.Pose, relative bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if relative {
		d.pose = d.pose.Compose(goal)
	} else {
		d.pose = goal
	}
	d.atGoal = !d.HoldAtGoal
	d.rec.NavGoals = append(d.rec.NavGoals, goal)
	return nil
}

// SetVelocity implements Driver.
func (d *StubDriver) SetVelocity(v, w float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.joints.Velocities[types.JointBaseX] = v
	d.rec.Velocities = append(d.rec.Velocities, [2]float64{v, w})
	return nil
}

// ArmTo implements Driver. Joint targets snap into the arm slots.
func (d *StubDriver) ArmTo(joints []float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, q := range joints {
		if i < len(types.ArmConfigJoints) {
			d.joints.Positions[types.ArmConfigJoints[i]] = q
		}
	}
	target := make([]float64, len(joints))
	copy(target, joints)
	d.rec.ArmTargets = append(d.rec.ArmTargets, target)
	return nil
}

// Gripper implements Driver.
func (d *StubDriver) Gripper(target float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.joints.Positions[types.JointGripper] = target
	d.rec.Grippers = append(d.rec.Grippers, target)
	return nil
}

// HeadTo implements Driver.
func (d *StubDriver) HeadTo(pan, tilt float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.joints.Positions[types.JointHeadPan] = pan
	d.joints.Positions[types.JointHeadTilt] = tilt
	d.rec.HeadPans = append(d.rec.HeadPans, pan)
	d.rec.HeadTilts = append(d.rec.HeadTilts, tilt)
	return nil
}

// Say implements Driver.
func (d *StubDriver) Say(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rec.Spoken = append(d.rec.Spoken, text)
	return nil
}

// SerializeMap implements Driver.
func (d *StubDriver) SerializeMap(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rec.MapsSaved++
	out := make([]byte, len(d.mapData))
	copy(out, d.mapData)
	return out, nil
}

// RestoreMap implements Driver.
func (d *StubDriver) RestoreMap(ctx context.Context, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rec.MapsLoaded++
	d.mapData = make([]byte, len(data))
	copy(d.mapData, data)
	return nil
}

// Close implements Driver.
func (d *StubDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (d *StubDriver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Recorded returns a copy of the actuation log. Safe to call while the
// daemon is still applying commands.
func (d *StubDriver) Recorded() Recording {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.rec
	out.Modes = append([]types.ControlMode(nil), d.rec.Modes...)
	out.Postures = append([]string(nil), d.rec.Postures...)
	out.NavGoals = append([]types.Pose(nil), d.rec.NavGoals...)
	out.Velocities = append([][2]float64(nil), d.rec.Velocities...)
	out.ArmTargets = append([][]float64(nil), d.rec.ArmTargets...)
	out.Grippers = append([]float64(nil), d.rec.Grippers...)
	out.HeadPans = append([]float64(nil), d.rec.HeadPans...)
	out.HeadTilts = append([]float64(nil), d.rec.HeadTilts...)
	out.Spoken = append([]string(nil), d.rec.Spoken...)
	return out
}

// SetRunstopped toggles the runstop flag, for exercising preconditions.
func (d *StubDriver) SetRunstopped(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.runstopped = v
}

// SetHomed toggles the homed flag, for exercising preconditions.
func (d *StubDriver) SetHomed(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.homed = v
}

func cloneJointState(js types.JointState) types.JointState {
	out := types.JointState{
		Positions:  make([]float64, len(js.Positions)),
		Velocities: make([]float64, len(js.Velocities)),
		Efforts:    make([]float64, len(js.Efforts)),
	}
	copy(out.Positions, js.Positions)
	copy(out.Velocities, js.Velocities)
	copy(out.Efforts, js.Efforts)
	return out
}

// syntheticCapture builds a deterministic gradient image with a depth
// ramp centered on midDepth meters.
func syntheticCapture(w, h int, midDepth float32) Capture {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	depth := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(255 * x / w),
				G: uint8(255 * y / h),
				B: uint8((x + y) % 256),
				A: 255,
			})
			depth[y*w+x] = midDepth + 0.5*float32(math.Sin(float64(x+y)/8))
		}
	}
	return Capture{
		Color:  img,
		Depth:  depth,
		Width:  w,
		Height: h,
		Intrinsics: types.CameraIntrinsics{
			Fx: float64(w), Fy: float64(w),
			Cx: float64(w) / 2, Cy: float64(h) / 2,
		},
		Pose: types.Transform{Orientation: [4]float64{0, 0, 0, 1}},
	}
}

// Verify StubDriver implements Driver.
var _ Driver = (*StubDriver)(nil)
