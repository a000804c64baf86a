// Package motion defines the navigation planner collaborator consumed
// by the task engine.
package motion

import (
	"context"
	"errors"

	"github.com/fazildgr8/stretch-ai/types"
)

// ErrInvalidSpace marks a query from an invalid navigation space: the
// start pose lies outside the mapped region or localization has been
// lost. Task engines treat it as fatal rather than as an ordinary
// planning failure.
var ErrInvalidSpace = errors.New("invalid navigation space")

// Planner answers point-to-point planning queries over the current map.
type Planner interface {
	// PlanTo plans a collision-free trajectory from start to goal. A
	// planning failure is reported through Plan.Success; a non-nil error
	// means the query itself could not be run.
	PlanTo(ctx context.Context, start, goal types.Pose) (types.Plan, error)
}
