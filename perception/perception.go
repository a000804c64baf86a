// Package perception defines the detector collaborator consumed by the
// task engine. Detection itself runs elsewhere, typically a learned
// model off-robot; operations only match instance categories and plan
// against instance poses.
package perception

import (
	"context"

	"github.com/fazildgr8/stretch-ai/types"
)

// Perceptor produces object instances and scene-graph relations from
// observations.
type Perceptor interface {
	// DetectInstances feeds an observation to the detector and returns
	// the instances currently held in semantic memory.
	DetectInstances(ctx context.Context, obs *types.FullObservation) ([]types.Instance, error)

	// SceneGraph returns the relations over the current instances.
	SceneGraph(ctx context.Context) ([]types.Relation, error)
}
