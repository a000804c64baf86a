package types

// FrameKind discriminates telemetry frame payloads on the wire.
type FrameKind string

// Frame kind constants. Each kind is published on its own channel at
// its own rate; the kind field travels in the payload so decoders can
// dispatch on field presence rather than channel identity.
const (
	FrameKindFastState       FrameKind = "fast_state"
	FrameKindFullObservation FrameKind = "full_observation"
	FrameKindServo           FrameKind = "servo"
)

// Valid reports whether k is a known frame kind.
func (k FrameKind) Valid() bool {
	switch k {
	case FrameKindFastState, FrameKindFullObservation, FrameKindServo:
		return true
	}
	return false
}

// Frame is one timestamped telemetry payload. Frames are produced only
// by the robot process; consumers read the latest frame per kind and
// treat older frames of the same kind as superseded.
type Frame interface {
	// Kind returns the frame kind discriminator.
	Kind() FrameKind
	// Step returns the index of the last command applied when the
	// frame was produced. Within one kind, frames are totally ordered
	// by step.
	Step() int64
}

// FastState is the high-rate, image-free telemetry frame. It is the
// authoritative source of the robot state flags on the remote side.
type FastState struct {
	// FrameKind is always "fast_state".
	FrameKind FrameKind `msgpack:"kind" json:"kind"`
	// FrameStep is the last-applied command step.
	FrameStep int64 `msgpack:"step" json:"step"`
	// CapturedAt is the capture time in nanoseconds since the epoch.
	CapturedAt int64 `msgpack:"captured_at" json:"captured_at"`
	// BasePose is the planar base pose in the world frame.
	BasePose Pose `msgpack:"base_pose" json:"base_pose"`
	// EndEffector is the end-effector pose in the base frame.
	EndEffector Transform `msgpack:"ee_pose" json:"ee_pose"`
	// Joints is the full joint-space state including velocities.
	Joints JointState `msgpack:"joints" json:"joints"`
	// Mode is the active control mode.
	Mode ControlMode `msgpack:"control_mode" json:"control_mode"`
	// AtGoal reports whether the base controller reached its goal.
	AtGoal bool `msgpack:"at_goal" json:"at_goal"`
	// IsHomed reports whether the robot has completed homing.
	IsHomed bool `msgpack:"is_homed" json:"is_homed"`
	// IsRunstopped reports whether the hardware run-stop is engaged.
	IsRunstopped bool `msgpack:"is_runstopped" json:"is_runstopped"`
	// LastMotionFailed reports whether the most recent motion aborted.
	LastMotionFailed bool `msgpack:"last_motion_failed" json:"last_motion_failed"`
}

// Kind implements Frame.
func (f *FastState) Kind() FrameKind { return FrameKindFastState }

// Step implements Frame.
func (f *FastState) Step() int64 { return f.FrameStep }

// Flags returns the discrete robot state flags carried by the frame.
func (f *FastState) Flags() StateFlags {
	return StateFlags{
		Mode:         f.Mode,
		IsHomed:      f.IsHomed,
		IsRunstopped: f.IsRunstopped,
		AtGoal:       f.AtGoal,
	}
}

// FullObservation is the complete sensor snapshot: head camera imagery
// plus pose and joint state. Bandwidth-bound, so imagery travels
// compressed and depth is quantized to millimeters.
type FullObservation struct {
	// FrameKind is always "full_observation".
	FrameKind FrameKind `msgpack:"kind" json:"kind"`
	// FrameStep is the last-applied command step.
	FrameStep int64 `msgpack:"step" json:"step"`
	// CapturedAt is the capture time in nanoseconds since the epoch.
	CapturedAt int64 `msgpack:"captured_at" json:"captured_at"`
	// RGB is the JPEG-compressed color image.
	RGB []byte `msgpack:"rgb" json:"rgb"`
	// Depth is the PNG-compressed 16-bit depth image in millimeters.
	Depth []byte `msgpack:"depth" json:"depth"`
	// Width and Height are the dimensions of the transmitted images.
	Width  int `msgpack:"rgb_width" json:"rgb_width"`
	Height int `msgpack:"rgb_height" json:"rgb_height"`
	// Intrinsics is the camera matrix matching the transmitted size.
	Intrinsics CameraIntrinsics `msgpack:"camera_k" json:"camera_k"`
	// CameraPose is the head camera pose in the world frame.
	CameraPose Transform `msgpack:"camera_pose" json:"camera_pose"`
	// EndEffector is the end-effector pose in the base frame.
	EndEffector Transform `msgpack:"ee_pose" json:"ee_pose"`
	// JointPositions is the full joint position vector.
	JointPositions []float64 `msgpack:"joint" json:"joint"`
	// GPS is the planar base position [x y] in the world frame.
	GPS [2]float64 `msgpack:"gps" json:"gps"`
	// Compass is the base heading in radians.
	Compass float64 `msgpack:"compass" json:"compass"`
	// Mode is the active control mode.
	Mode ControlMode `msgpack:"control_mode" json:"control_mode"`
	// AtGoal reports whether the base controller reached its goal.
	AtGoal bool `msgpack:"at_goal" json:"at_goal"`
	// LastMotionFailed reports whether the most recent motion aborted.
	LastMotionFailed bool `msgpack:"last_motion_failed" json:"last_motion_failed"`
}

// Kind implements Frame.
func (f *FullObservation) Kind() FrameKind { return FrameKindFullObservation }

// Step implements Frame.
func (f *FullObservation) Step() int64 { return f.FrameStep }

// BasePose reconstructs the planar base pose from GPS and compass.
func (f *FullObservation) BasePose() Pose {
	return Pose{X: f.GPS[0], Y: f.GPS[1], Theta: f.Compass}
}

// CameraBlock is one camera's contribution to a servo frame.
type CameraBlock struct {
	// Color is the JPEG-compressed color image.
	Color []byte `msgpack:"color_image" json:"color_image"`
	// Depth is the PNG-compressed 16-bit depth image in millimeters.
	Depth []byte `msgpack:"depth_image" json:"depth_image"`
	// Intrinsics is the camera matrix scaled to the transmitted size.
	Intrinsics CameraIntrinsics `msgpack:"camera_k" json:"camera_k"`
	// ImageScaling is the resize factor applied before compression.
	ImageScaling float64 `msgpack:"image_scaling" json:"image_scaling"`
	// DepthScaling converts transmitted depth units back to meters.
	DepthScaling float64 `msgpack:"depth_scaling" json:"depth_scaling"`
	// Pose is the camera pose in the base frame.
	Pose Transform `msgpack:"pose" json:"pose"`
}

// ServoFrame is the dual-camera frame for closed-loop visual control.
// Imagery is aggressively downscaled; the scaled intrinsics travel with
// each block so servoing code can back-project at the reduced size.
type ServoFrame struct {
	// FrameKind is always "servo".
	FrameKind FrameKind `msgpack:"kind" json:"kind"`
	// FrameStep is the last-applied command step.
	FrameStep int64 `msgpack:"step" json:"step"`
	// CapturedAt is the capture time in nanoseconds since the epoch.
	CapturedAt int64 `msgpack:"captured_at" json:"captured_at"`
	// EndEffectorCamera is the wrist-mounted camera block.
	EndEffectorCamera CameraBlock `msgpack:"ee_cam" json:"ee_cam"`
	// HeadCamera is the head camera block.
	HeadCamera CameraBlock `msgpack:"head_cam" json:"head_cam"`
	// JointPositions is the full joint position vector at capture.
	JointPositions []float64 `msgpack:"joint" json:"joint"`
}

// Kind implements Frame.
func (f *ServoFrame) Kind() FrameKind { return FrameKindServo }

// Step implements Frame.
func (f *ServoFrame) Step() int64 { return f.FrameStep }
