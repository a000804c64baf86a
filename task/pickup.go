package task

// PickupConfig parameterizes the pickup task builder.
type PickupConfig struct {
	// AddRotate prepends a full in-place scan before the search
	// operations. Off by default: the searches carry their own
	// rotate-then-retry fallback.
	AddRotate bool

	// RotationSteps is the number of relative rotations in one full
	// scan. Zero selects DefaultRotationSteps.
	RotationSteps int

	// GraspDistanceThreshold is how close the base must be to the
	// object before the grasp approach starts, in meters. Zero
	// selects DefaultGraspDistance.
	GraspDistanceThreshold float64
}

// NewPickupTask assembles the pickup flow: enter navigation mode,
// find a receptacle and an object on the floor, drive to the object,
// approach, grasp. Search operations fall back to an in-place rotation
// between attempts when nothing plannable is in view.
func NewPickupTask(m *Manager, cfg PickupConfig) *Task {
	rotate := NewRotateInPlace(m, cfg.RotationSteps)

	steps := []Step{
		{Op: NewSwitchToNavigation(m)},
	}
	if cfg.AddRotate {
		steps = append(steps, Step{Op: rotate})
	}
	steps = append(steps,
		Step{Op: NewSearchForReceptacle(m), Policy: PolicyRotateThenRetry, Fallback: rotate},
		Step{Op: NewSearchForObject(m), Policy: PolicyRotateThenRetry, Fallback: rotate},
		Step{Op: NewNavigateToTarget(m, false), Policy: PolicyRepeatUntilSuccess},
		Step{Op: NewPreGraspApproach(m, cfg.GraspDistanceThreshold), Policy: PolicyRepeatUntilSuccess},
		Step{Op: NewGraspObject(m), Policy: PolicyRepeatUntilSuccess},
	)

	return &Task{Name: "pickup", Steps: steps}
}
