package client

import (
	"context"
	"fmt"
	"time"

	"github.com/fazildgr8/stretch-ai/types"
)

// Gripper apertures for the convenience helpers, as normalized
// fractions of the gripper travel.
const (
	GripperOpen   = 1.0
	GripperClosed = 0.0
)

// NavigateTo issues a base navigation goal. With blocking set it polls
// the fast state until the robot reports the goal reached and has
// stopped moving, bounded by the configured action timeout.
func (c *Client) NavigateTo(ctx context.Context, goal types.Pose, relative, blocking bool) error {
	cmd := types.NewCommand(0)
	cmd.NavGoal = &types.NavGoal{Pose: goal, Relative: relative}
	step, err := c.Issue(cmd)
	if err != nil {
		return err
	}
	if !blocking {
		return nil
	}
	return c.waitForAction(ctx, step)
}

// SetVelocity issues a direct base velocity target. Fire-and-forget.
func (c *Client) SetVelocity(v, w float64) error {
	cmd := types.NewCommand(0)
	cmd.Velocity = &types.VelocityTarget{V: v, W: w}
	_, err := c.Issue(cmd)
	return err
}

// SwitchMode issues a control mode switch and waits until the fast
// state reflects the target mode, bounded by the mode timeout.
func (c *Client) SwitchMode(ctx context.Context, target types.ControlMode) error {
	cmd := types.NewCommand(0)
	cmd.ControlMode = &target
	if _, err := c.Issue(cmd); err != nil {
		return err
	}
	return c.waitForMode(ctx, target)
}

// MoveToPosture issues a posture change and waits for the mode the
// posture lands in.
func (c *Client) MoveToPosture(ctx context.Context, posture string) error {
	cmd := types.NewCommand(0)
	cmd.Posture = &posture
	if _, err := c.Issue(cmd); err != nil {
		return err
	}
	target := types.ModeNavigation
	if posture == types.PostureManipulation {
		target = types.ModeManipulation
	}
	return c.waitForMode(ctx, target)
}

// ArmTo issues an arm configuration target of length
// types.ArmConfigCount.
func (c *Client) ArmTo(ctx context.Context, config []float64, blocking bool) error {
	cmd := types.NewCommand(0)
	cmd.Joint = config
	step, err := c.Issue(cmd)
	if err != nil {
		return err
	}
	if !blocking {
		return nil
	}
	return c.waitForAction(ctx, step)
}

// Gripper issues an absolute gripper target.
func (c *Client) Gripper(ctx context.Context, target float64, blocking bool) error {
	cmd := types.NewCommand(0)
	cmd.Gripper = &target
	step, err := c.Issue(cmd)
	if err != nil {
		return err
	}
	if !blocking {
		return nil
	}
	return c.waitForAction(ctx, step)
}

// CloseGripper closes the gripper fully.
func (c *Client) CloseGripper(ctx context.Context, blocking bool) error {
	return c.Gripper(ctx, GripperClosed, blocking)
}

// OpenGripper opens the gripper fully.
func (c *Client) OpenGripper(ctx context.Context, blocking bool) error {
	return c.Gripper(ctx, GripperOpen, blocking)
}

// HeadTo issues a head pan/tilt target in radians.
func (c *Client) HeadTo(ctx context.Context, pan, tilt float64, blocking bool) error {
	cmd := types.NewCommand(0)
	cmd.Head = &types.HeadTarget{Pan: pan, Tilt: tilt}
	step, err := c.Issue(cmd)
	if err != nil {
		return err
	}
	if !blocking {
		return nil
	}
	return c.waitForAction(ctx, step)
}

// Say speaks text on the robot. Fire-and-forget.
func (c *Client) Say(text string) error {
	cmd := types.NewCommand(0)
	cmd.Say = &text
	_, err := c.Issue(cmd)
	return err
}

// SaveMap persists the robot's current map under the given name.
func (c *Client) SaveMap(name string) error {
	cmd := types.NewCommand(0)
	cmd.SaveMap = &name
	_, err := c.Issue(cmd)
	return err
}

// LoadMap replaces the robot's current map with the named one.
func (c *Client) LoadMap(name string) error {
	cmd := types.NewCommand(0)
	cmd.LoadMap = &name
	_, err := c.Issue(cmd)
	return err
}

func (c *Client) flags() (types.StateFlags, bool) {
	fast, ok := c.LatestFastState()
	if !ok {
		return types.StateFlags{}, false
	}
	return fast.Flags(), true
}

// InNavigationMode reports whether the latest fast state shows
// navigation mode. False when no telemetry has arrived.
func (c *Client) InNavigationMode() bool {
	f, ok := c.flags()
	return ok && f.Mode == types.ModeNavigation
}

// InManipulationMode reports whether the latest fast state shows
// manipulation mode.
func (c *Client) InManipulationMode() bool {
	f, ok := c.flags()
	return ok && f.Mode == types.ModeManipulation
}

// IsHomed reports whether the robot has completed homing.
func (c *Client) IsHomed() bool {
	f, ok := c.flags()
	return ok && f.IsHomed
}

// IsRunstopped reports whether the hardware run-stop is engaged.
func (c *Client) IsRunstopped() bool {
	f, ok := c.flags()
	return ok && f.IsRunstopped
}

// AtGoal reports whether the base controller reached its goal.
func (c *Client) AtGoal() bool {
	f, ok := c.flags()
	return ok && f.AtGoal
}

// LastMotionFailed reports whether the most recent motion aborted.
func (c *Client) LastMotionFailed() bool {
	fast, ok := c.LatestFastState()
	return ok && fast.LastMotionFailed
}

// BasePose returns the base pose from the latest fast state.
func (c *Client) BasePose() (types.Pose, bool) {
	fast, ok := c.LatestFastState()
	if !ok {
		return types.Pose{}, false
	}
	return fast.BasePose, true
}

// waitForMode polls the fast state until it reflects the target mode.
func (c *Client) waitForMode(ctx context.Context, target types.ControlMode) error {
	if _, ok := c.streams[types.FrameKindFastState]; !ok {
		return ErrNoTelemetry
	}
	w := c.cfg.Wait
	deadline := time.Now().Add(w.ModeTimeout)
	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	for {
		if err := c.StreamErr(types.FrameKindFastState); err != nil {
			return err
		}
		if fast, ok := c.LatestFastState(); ok && fast.Mode == target {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("mode %s not reached: %w", target, ErrTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// waitForAction polls the fast state until the issued step has been
// applied, the base reports at goal, and the robot has been stationary
// for more than MinStepsNotMoving consecutive fresh frames. Each frame
// is counted once: a poll that sees the same capture again neither
// advances nor resets the settle count.
func (c *Client) waitForAction(ctx context.Context, issued int64) error {
	if _, ok := c.streams[types.FrameKindFastState]; !ok {
		return ErrNoTelemetry
	}
	w := c.cfg.Wait
	deadline := time.Now().Add(w.ActionTimeout)
	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	var (
		lastCaptured int64
		prev         types.Pose
		havePrev     bool
		settled      int
	)
	for {
		if err := c.StreamErr(types.FrameKindFastState); err != nil {
			return err
		}
		if fast, ok := c.LatestFastState(); ok && fast.CapturedAt != lastCaptured {
			lastCaptured = fast.CapturedAt
			pose := fast.BasePose
			if havePrev &&
				prev.DistanceTo(pose) < w.MovingThreshold &&
				prev.AngularDistanceTo(pose) < w.AngleThreshold {
				settled++
			} else {
				settled = 0
			}
			prev = pose
			havePrev = true

			if fast.FrameStep >= issued && fast.AtGoal && settled > w.MinStepsNotMoving {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("action step %d not settled: %w", issued, ErrTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
