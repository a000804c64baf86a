package types

// Instance is one detected object instance reported by the perception
// collaborator. Detection internals are out of scope; operations
// match categories, plan against poses, and aim at point clouds.
type Instance struct {
	// ID identifies the instance within the current semantic memory.
	ID int `msgpack:"id" json:"id"`
	// Category is the detector's class label.
	Category string `msgpack:"category" json:"category"`
	// Pose is a planar pose at the instance, suitable as a base goal.
	Pose Pose `msgpack:"pose" json:"pose"`
	// Score is the detector confidence in [0, 1].
	Score float64 `msgpack:"score" json:"score"`
	// Points is the instance point cloud in world coordinates,
	// possibly downsampled. May be empty for pose-only detections.
	Points [][3]float64 `msgpack:"points,omitempty" json:"points,omitempty"`
	// View is a compressed crop of the instance's best camera view.
	View []byte `msgpack:"view,omitempty" json:"view,omitempty"`
}

// Center returns the point cloud centroid. False when the instance
// carries no points; callers fall back to the planar pose.
func (i Instance) Center() ([3]float64, bool) {
	if len(i.Points) == 0 {
		return [3]float64{}, false
	}
	var c [3]float64
	for _, p := range i.Points {
		c[0] += p[0]
		c[1] += p[1]
		c[2] += p[2]
	}
	n := float64(len(i.Points))
	c[0] /= n
	c[1] /= n
	c[2] /= n
	return c, true
}

// Relation is one scene-graph edge between an instance and a named
// anchor, e.g. (id=3, "floor", "on").
type Relation struct {
	// Subject is the instance ID the relation describes.
	Subject int `msgpack:"subject" json:"subject"`
	// Anchor is the related entity name.
	Anchor string `msgpack:"anchor" json:"anchor"`
	// Predicate is the relation kind.
	Predicate string `msgpack:"predicate" json:"predicate"`
}

// Plan is the planner collaborator's answer to a point-to-point query.
type Plan struct {
	// Success reports whether a collision-free trajectory was found.
	Success bool `msgpack:"success" json:"success"`
	// Trajectory is the ordered waypoint sequence, start excluded,
	// goal included. Empty when Success is false.
	Trajectory []Pose `msgpack:"trajectory" json:"trajectory"`
}

// Goal returns the final waypoint of a successful plan.
func (p Plan) Goal() (Pose, bool) {
	if !p.Success || len(p.Trajectory) == 0 {
		return Pose{}, false
	}
	return p.Trajectory[len(p.Trajectory)-1], true
}
