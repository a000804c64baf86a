package task

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fazildgr8/stretch-ai/client"
	"github.com/fazildgr8/stretch-ai/log"
	"github.com/fazildgr8/stretch-ai/motion"
	"github.com/fazildgr8/stretch-ai/perception"
	"github.com/fazildgr8/stretch-ai/types"
)

// Robot is the slice of the robot state client that operations
// command and query.
type Robot interface {
	NavigateTo(ctx context.Context, goal types.Pose, relative, blocking bool) error
	ExecuteTrajectory(ctx context.Context, waypoints []types.Pose, p client.TrajectoryParams) error
	SwitchMode(ctx context.Context, target types.ControlMode) error
	MoveToPosture(ctx context.Context, posture string) error
	ArmTo(ctx context.Context, config []float64, blocking bool) error
	OpenGripper(ctx context.Context, blocking bool) error
	CloseGripper(ctx context.Context, blocking bool) error
	HeadTo(ctx context.Context, pan, tilt float64, blocking bool) error

	InNavigationMode() bool
	InManipulationMode() bool
	IsHomed() bool
	IsRunstopped() bool
	BasePose() (types.Pose, bool)
	LatestFastState() (*types.FastState, bool)
	LatestObservation() (*types.FullObservation, bool)
}

// Verify the state client satisfies Robot.
var _ Robot = (*client.Client)(nil)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Robot is the robot state client (required).
	Robot Robot
	// Planner is the navigation planner collaborator (required).
	Planner motion.Planner
	// Perceptor is the perception collaborator (required).
	Perceptor perception.Perceptor
	// Logger receives manager and operation logs. Defaults to a
	// task-named logger.
	Logger *log.Logger
}

// Manager is the shared context passed into every operation: the
// robot client, the planner and perceptor collaborators, and the
// mutable task references (current object, current receptacle,
// instance memory). Mutation happens only on the engine goroutine;
// accessors make reads safe from anywhere.
type Manager struct {
	robot     Robot
	planner   motion.Planner
	perceptor perception.Perceptor
	logger    *log.Logger

	mu                sync.Mutex
	currentObject     *types.Instance
	currentReceptacle *types.Instance
	instances         []types.Instance
	relations         []types.Relation
}

// NewManager validates the collaborators and creates a Manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Robot == nil {
		return nil, errors.New("task manager requires a robot client")
	}
	if cfg.Planner == nil {
		return nil, errors.New("task manager requires a planner")
	}
	if cfg.Perceptor == nil {
		return nil, errors.New("task manager requires a perceptor")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewLogger("task")
	}
	return &Manager{
		robot:     cfg.Robot,
		planner:   cfg.Planner,
		perceptor: cfg.Perceptor,
		logger:    cfg.Logger,
	}, nil
}

// Robot returns the robot client.
func (m *Manager) Robot() Robot { return m.robot }

// Planner returns the navigation planner.
func (m *Manager) Planner() motion.Planner { return m.planner }

// Perceptor returns the perception collaborator.
func (m *Manager) Perceptor() perception.Perceptor { return m.perceptor }

// Logger returns the manager logger.
func (m *Manager) Logger() *log.Logger { return m.logger }

// CurrentObject returns the object targeted for manipulation.
func (m *Manager) CurrentObject() (types.Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentObject == nil {
		return types.Instance{}, false
	}
	return *m.currentObject, true
}

// SetCurrentObject records the object targeted for manipulation.
func (m *Manager) SetCurrentObject(inst types.Instance) {
	m.mu.Lock()
	m.currentObject = &inst
	m.mu.Unlock()
}

// CurrentReceptacle returns the receptacle targeted for placement.
func (m *Manager) CurrentReceptacle() (types.Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentReceptacle == nil {
		return types.Instance{}, false
	}
	return *m.currentReceptacle, true
}

// SetCurrentReceptacle records the receptacle targeted for placement.
func (m *Manager) SetCurrentReceptacle(inst types.Instance) {
	m.mu.Lock()
	m.currentReceptacle = &inst
	m.mu.Unlock()
}

// Reset clears the task references and instance memory, so one task's
// targets never leak into the next.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.currentObject = nil
	m.currentReceptacle = nil
	m.instances = nil
	m.relations = nil
	m.mu.Unlock()
}

// Instances returns the instance memory from the last perception
// refresh.
func (m *Manager) Instances() []types.Instance {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Instance, len(m.instances))
	copy(out, m.instances)
	return out
}

// Relations returns the scene graph from the last perception refresh.
func (m *Manager) Relations() []types.Relation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Relation, len(m.relations))
	copy(out, m.relations)
	return out
}

// HasRelation reports whether the scene graph relates subject to
// anchor with predicate, e.g. (id, "floor", "on").
func (m *Manager) HasRelation(subject int, anchor, predicate string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.relations {
		if r.Subject == subject && r.Anchor == anchor && r.Predicate == predicate {
			return true
		}
	}
	return false
}

// RefreshPerception runs detection on the latest full observation and
// replaces the instance memory and scene graph. Returns an error when
// no observation has arrived yet or the perceptor fails; the previous
// memory is kept in that case.
func (m *Manager) RefreshPerception(ctx context.Context) error {
	obs, ok := m.robot.LatestObservation()
	if !ok {
		return errors.New("no observation available yet")
	}

	instances, err := m.perceptor.DetectInstances(ctx, obs)
	if err != nil {
		return fmt.Errorf("detect instances: %w", err)
	}
	relations, err := m.perceptor.SceneGraph(ctx)
	if err != nil {
		return fmt.Errorf("scene graph: %w", err)
	}

	m.mu.Lock()
	m.instances = instances
	m.relations = relations
	m.mu.Unlock()

	m.logger.Debug("perception refreshed", map[string]any{
		"instances": len(instances),
		"relations": len(relations),
	})
	return nil
}
