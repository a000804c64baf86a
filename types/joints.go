package types

// Joint vector layout. All joint-space telemetry uses this fixed
// indexing; the vector length is always JointCount.
const (
	JointBaseX = iota
	JointBaseY
	JointBaseTheta
	JointLift
	JointArm
	JointGripper
	JointWristRoll
	JointWristPitch
	JointWristYaw
	JointHeadPan
	JointHeadTilt

	// JointCount is the length of a full joint vector.
	JointCount = 11
)

// ArmConfigCount is the length of an arm target configuration:
// [base_x, lift, arm, wrist_yaw, wrist_pitch, wrist_roll].
const ArmConfigCount = 6

// ArmConfigJoints maps arm configuration indices to full joint vector
// indices, in the order documented on ArmConfigCount.
var ArmConfigJoints = [ArmConfigCount]int{
	JointBaseX, JointLift, JointArm,
	JointWristYaw, JointWristPitch, JointWristRoll,
}

// JointState carries joint-space telemetry. Velocities and efforts are
// omitted from frames that do not measure them.
type JointState struct {
	// Positions holds joint positions indexed by the Joint* constants.
	Positions []float64 `msgpack:"positions" json:"positions"`
	// Velocities holds joint velocities, same indexing as Positions.
	Velocities []float64 `msgpack:"velocities,omitempty" json:"velocities,omitempty"`
	// Efforts holds joint efforts, same indexing as Positions.
	Efforts []float64 `msgpack:"efforts,omitempty" json:"efforts,omitempty"`
}

// Settled reports whether every joint velocity magnitude is below
// threshold. A frame with no velocity data is not settled; callers
// poll until the robot publishes measurable quiescence.
func (j JointState) Settled(threshold float64) bool {
	if len(j.Velocities) == 0 {
		return false
	}
	for _, v := range j.Velocities {
		if v > threshold || v < -threshold {
			return false
		}
	}
	return true
}

// WithinTolerance reports whether the positions of j match target
// index-for-index within tol. Vectors of different lengths never match.
func (j JointState) WithinTolerance(target []float64, tol float64) bool {
	if len(j.Positions) != len(target) {
		return false
	}
	for i, p := range j.Positions {
		d := p - target[i]
		if d > tol || d < -tol {
			return false
		}
	}
	return true
}
