package perception

import (
	"context"
	"sync"

	"github.com/fazildgr8/stretch-ai/types"
)

// StubPerceptor is a scripted Perceptor that records calls. Inject
// errors through the Fail* fields before handing it to the engine.
type StubPerceptor struct {
	mu        sync.Mutex
	instances []types.Instance
	relations []types.Relation

	// FailDetect and FailGraph make the corresponding call return the
	// given error.
	FailDetect error
	FailGraph  error

	detects int
	graphs  int
}

// NewStubPerceptor creates a perceptor that reports the given scene on
// every call.
func NewStubPerceptor(instances []types.Instance, relations []types.Relation) *StubPerceptor {
	return &StubPerceptor{instances: instances, relations: relations}
}

// SetScene replaces the scripted scene. Safe to call while the engine
// is running, so tests can reveal instances mid-task.
func (p *StubPerceptor) SetScene(instances []types.Instance, relations []types.Relation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.instances = instances
	p.relations = relations
}

// DetectInstances implements Perceptor.
func (p *StubPerceptor) DetectInstances(_ context.Context, _ *types.FullObservation) ([]types.Instance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.detects++
	if p.FailDetect != nil {
		return nil, p.FailDetect
	}
	return append([]types.Instance(nil), p.instances...), nil
}

// SceneGraph implements Perceptor.
func (p *StubPerceptor) SceneGraph(_ context.Context) ([]types.Relation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.graphs++
	if p.FailGraph != nil {
		return nil, p.FailGraph
	}
	return append([]types.Relation(nil), p.relations...), nil
}

// DetectCalls returns how many times DetectInstances has run.
func (p *StubPerceptor) DetectCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.detects
}

// GraphCalls returns how many times SceneGraph has run.
func (p *StubPerceptor) GraphCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.graphs
}

// Verify StubPerceptor implements Perceptor.
var _ Perceptor = (*StubPerceptor)(nil)
