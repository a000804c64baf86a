package types

import "math"

// Pose is a planar base pose in the world frame.
type Pose struct {
	// X is the position along the world x axis in meters.
	X float64 `msgpack:"x" json:"x"`
	// Y is the position along the world y axis in meters.
	Y float64 `msgpack:"y" json:"y"`
	// Theta is the heading in radians.
	Theta float64 `msgpack:"theta" json:"theta"`
}

// Compose applies delta in the frame of p and returns the resulting
// world pose. Used to resolve relative navigation goals against the
// current base pose.
func (p Pose) Compose(delta Pose) Pose {
	sin, cos := math.Sincos(p.Theta)
	return Pose{
		X:     p.X + delta.X*cos - delta.Y*sin,
		Y:     p.Y + delta.X*sin + delta.Y*cos,
		Theta: NormalizeAngle(p.Theta + delta.Theta),
	}
}

// ToLocal transforms the world-frame point (x, y) into the frame of
// p. Inverse of Compose for positions.
func (p Pose) ToLocal(x, y float64) (float64, float64) {
	sin, cos := math.Sincos(p.Theta)
	dx, dy := x-p.X, y-p.Y
	return dx*cos + dy*sin, -dx*sin + dy*cos
}

// DistanceTo returns the Euclidean distance between the positions of
// p and o, ignoring heading.
func (p Pose) DistanceTo(o Pose) float64 {
	return math.Hypot(o.X-p.X, o.Y-p.Y)
}

// AngularDistanceTo returns the absolute heading difference between
// p and o, normalized to [0, pi].
func (p Pose) AngularDistanceTo(o Pose) float64 {
	return math.Abs(NormalizeAngle(o.Theta - p.Theta))
}

// NormalizeAngle wraps theta into (-pi, pi].
func NormalizeAngle(theta float64) float64 {
	for theta > math.Pi {
		theta -= 2 * math.Pi
	}
	for theta <= -math.Pi {
		theta += 2 * math.Pi
	}
	return theta
}

// Transform is a rigid 3D pose, used for end-effector and camera poses.
type Transform struct {
	// Position is the xyz translation in meters.
	Position [3]float64 `msgpack:"position" json:"position"`
	// Orientation is the rotation quaternion in xyzw order.
	Orientation [4]float64 `msgpack:"orientation" json:"orientation"`
}

// CameraIntrinsics is a pinhole camera matrix in compact form.
type CameraIntrinsics struct {
	Fx float64 `msgpack:"fx" json:"fx"`
	Fy float64 `msgpack:"fy" json:"fy"`
	Cx float64 `msgpack:"cx" json:"cx"`
	Cy float64 `msgpack:"cy" json:"cy"`
}

// Scaled returns the intrinsics adjusted for an image resized by
// factor f. Published alongside downscaled imagery so consumers can
// back-project without knowing the original resolution.
func (k CameraIntrinsics) Scaled(f float64) CameraIntrinsics {
	return CameraIntrinsics{
		Fx: k.Fx * f,
		Fy: k.Fy * f,
		Cx: k.Cx * f,
		Cy: k.Cy * f,
	}
}
