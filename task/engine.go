package task

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fazildgr8/stretch-ai/log"
	"github.com/fazildgr8/stretch-ai/types"
)

// DefaultMaxAttempts bounds Run retries per operation for retrying
// policies.
const DefaultMaxAttempts = 3

// safeModeTimeout bounds the best-effort mode restore on abort.
const safeModeTimeout = 10 * time.Second

// EngineConfig configures an Engine.
type EngineConfig struct {
	// Manager is the shared operation context (required).
	Manager *Manager
	// MaxAttempts bounds scheduling attempts per step under retrying
	// policies (default 3). Linear steps always get one attempt.
	MaxAttempts int
	// Logger receives engine logs. Defaults to the manager's logger.
	Logger *log.Logger
}

// Engine drives tasks on a single control goroutine: one operation
// active at a time, precondition checked before every run, policy
// applied on failure, fatal conditions aborting immediately.
type Engine struct {
	manager     *Manager
	maxAttempts int
	logger      *log.Logger
	state       atomic.Value
}

// NewEngine validates the config and creates an Engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Manager == nil {
		return nil, errors.New("task engine requires a manager")
	}
	if cfg.MaxAttempts < 0 {
		return nil, fmt.Errorf("max attempts must be >= 0, got %d", cfg.MaxAttempts)
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Logger == nil {
		cfg.Logger = cfg.Manager.Logger()
	}
	e := &Engine{
		manager:     cfg.Manager,
		maxAttempts: cfg.MaxAttempts,
		logger:      cfg.Logger,
	}
	e.state.Store(types.TaskPending)
	return e, nil
}

// State reports the lifecycle state of the most recent execution.
// Safe to read from any goroutine while Execute runs on another.
func (e *Engine) State() types.TaskState {
	return e.state.Load().(types.TaskState)
}

// Execute runs the task to a terminal outcome. The returned error
// covers invalid input only; operational failures land in the Result.
// On any non-success outcome the engine restores the robot to
// navigation mode, best effort.
func (e *Engine) Execute(ctx context.Context, t *Task) (*Result, error) {
	if t == nil || len(t.Steps) == 0 {
		return nil, errors.New("task has no operations")
	}
	for i, step := range t.Steps {
		if step.Op == nil {
			return nil, fmt.Errorf("task step %d has no operation", i)
		}
	}

	result := &Result{
		RunID:     uuid.NewString(),
		Task:      t.Name,
		StartedAt: time.Now(),
	}
	e.state.Store(types.TaskRunning)
	e.logger.Info("task started", map[string]any{
		"run_id": result.RunID,
		"task":   t.Name,
		"steps":  len(t.Steps),
	})

	outcome := OutcomeSuccess
	for _, step := range t.Steps {
		opRes, abort := e.runStep(ctx, step)
		result.Operations = append(result.Operations, opRes)

		if opRes.Status == StatusSucceeded || opRes.Status == StatusSkipped {
			continue
		}

		result.Error = opRes.Error
		switch {
		case abort != nil && IsFatal(abort):
			outcome = OutcomeFatal
		case abort != nil && ctx.Err() != nil:
			outcome = OutcomeCanceled
		default:
			outcome = OutcomeFailed
		}
		break
	}

	result.Outcome = outcome
	result.DurationMs = time.Since(result.StartedAt).Milliseconds()
	if outcome == OutcomeSuccess {
		e.state.Store(types.TaskSucceeded)
	} else {
		e.state.Store(types.TaskFailed)
	}

	if outcome != OutcomeSuccess {
		e.restoreSafeMode()
	}

	e.logger.Info("task finished", map[string]any{
		"run_id":      result.RunID,
		"task":        t.Name,
		"outcome":     string(outcome),
		"duration_ms": result.DurationMs,
		"attempts":    result.TotalAttempts(),
	})
	return result, nil
}

// runStep executes one step to its terminal status. A non-nil abort
// error means the step ended the task outside its own policy: a fatal
// robot condition or engine cancellation.
func (e *Engine) runStep(ctx context.Context, step Step) (OperationResult, error) {
	op := step.Op
	res := OperationResult{Name: op.Name()}
	started := time.Now()
	finish := func(status Status, abort error) (OperationResult, error) {
		res.Status = status
		res.DurationMs = time.Since(started).Milliseconds()
		return res, abort
	}

	policy := step.Policy
	if policy == "" {
		policy = PolicyLinear
	}
	bound := 1
	if policy != PolicyLinear {
		bound = e.maxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= bound; attempt++ {
		if err := ctx.Err(); err != nil {
			res.Error = err.Error()
			return finish(StatusFailed, err)
		}

		if !op.CanStart() {
			if f, ok := op.(FaultReporter); ok {
				if ferr := f.Fault(); ferr != nil && IsFatal(ferr) {
					res.Error = ferr.Error()
					return finish(StatusFailed, ferr)
				}
			}
			if step.Optional {
				e.logger.Info("optional operation skipped", map[string]any{
					"operation": op.Name(),
				})
				return finish(StatusSkipped, nil)
			}
			lastErr = fmt.Errorf("operation %s: precondition not met", op.Name())
			e.logger.Warn("operation cannot start", map[string]any{
				"operation": op.Name(),
				"attempt":   attempt,
				"policy":    string(policy),
			})
			if abort := e.maybeFallback(ctx, step, policy, attempt, bound, &res); abort != nil {
				res.Error = abort.Error()
				return finish(StatusFailed, abort)
			}
			continue
		}

		res.Attempts++
		runErr := op.Run(ctx)
		switch {
		case runErr != nil && IsFatal(runErr):
			res.Error = runErr.Error()
			return finish(StatusFailed, runErr)
		case runErr != nil && ctx.Err() != nil:
			res.Error = runErr.Error()
			return finish(StatusFailed, ctx.Err())
		case runErr != nil:
			lastErr = runErr
			e.logger.Warn("operation run failed", map[string]any{
				"operation": op.Name(),
				"attempt":   attempt,
				"error":     runErr.Error(),
			})
		case op.WasSuccessful():
			return finish(StatusSucceeded, nil)
		default:
			lastErr = fmt.Errorf("operation %s: unsuccessful", op.Name())
			e.logger.Warn("operation unsuccessful", map[string]any{
				"operation": op.Name(),
				"attempt":   attempt,
			})
		}

		if abort := e.maybeFallback(ctx, step, policy, attempt, bound, &res); abort != nil {
			res.Error = abort.Error()
			return finish(StatusFailed, abort)
		}
	}

	if lastErr != nil {
		res.Error = lastErr.Error()
	}
	return finish(StatusFailed, nil)
}

// maybeFallback runs the step's fallback operation between attempts
// under PolicyRotateThenRetry. Fallback failures are tolerated;
// fatal conditions and cancellation abort.
func (e *Engine) maybeFallback(ctx context.Context, step Step, policy Policy, attempt, bound int, res *OperationResult) error {
	if policy != PolicyRotateThenRetry || step.Fallback == nil || attempt >= bound {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	fb := step.Fallback
	if !fb.CanStart() {
		e.logger.Warn("fallback cannot start", map[string]any{
			"operation": step.Op.Name(),
			"fallback":  fb.Name(),
		})
		return nil
	}

	e.logger.Info("running fallback", map[string]any{
		"operation": step.Op.Name(),
		"fallback":  fb.Name(),
	})
	res.FallbackRuns++
	if err := fb.Run(ctx); err != nil {
		if IsFatal(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.logger.Warn("fallback failed", map[string]any{
			"fallback": fb.Name(),
			"error":    err.Error(),
		})
	}
	return nil
}

// restoreSafeMode leaves the robot in navigation mode after an
// aborted task, best effort.
func (e *Engine) restoreSafeMode() {
	ctx, cancel := context.WithTimeout(context.Background(), safeModeTimeout)
	defer cancel()

	if err := e.manager.Robot().SwitchMode(ctx, types.ModeNavigation); err != nil {
		e.logger.Warn("safe mode restore failed", map[string]any{
			"error": err.Error(),
		})
		return
	}
	e.logger.Info("robot restored to navigation mode", nil)
}
