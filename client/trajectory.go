package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fazildgr8/stretch-ai/types"
)

// TrajectoryParams tunes waypoint-following execution.
type TrajectoryParams struct {
	// PosErrThreshold is how close the base must get to an intermediate
	// waypoint, in meters. Defaults to 0.2.
	PosErrThreshold float64

	// RotErrThreshold is the acceptable heading error at an intermediate
	// waypoint, in radians. Defaults to 0.75.
	RotErrThreshold float64

	// PollInterval is the arrival check cadence. Defaults to 100ms.
	PollInterval time.Duration

	// PerWaypointTimeout bounds the wait at each intermediate waypoint.
	// A waypoint that times out is logged and skipped rather than
	// failing the whole trajectory. Defaults to 10s.
	PerWaypointTimeout time.Duration
}

func (p TrajectoryParams) withDefaults() TrajectoryParams {
	if p.PosErrThreshold <= 0 {
		p.PosErrThreshold = 0.2
	}
	if p.RotErrThreshold <= 0 {
		p.RotErrThreshold = 0.75
	}
	if p.PollInterval <= 0 {
		p.PollInterval = 100 * time.Millisecond
	}
	if p.PerWaypointTimeout <= 0 {
		p.PerWaypointTimeout = 10 * time.Second
	}
	return p
}

// ExecuteTrajectory drives the base through waypoints in order. Each
// intermediate waypoint is a non-blocking navigate followed by a coarse
// arrival wait, so the base keeps rolling without settling at every
// pose. The final waypoint is navigated blocking, returning only once
// the robot is settled at the goal. Waypoints are world-frame poses.
func (c *Client) ExecuteTrajectory(ctx context.Context, waypoints []types.Pose, p TrajectoryParams) error {
	if len(waypoints) == 0 {
		return nil
	}
	p = p.withDefaults()
	for _, wp := range waypoints {
		if err := c.NavigateTo(ctx, wp, false, false); err != nil {
			return err
		}
		if err := c.waitForWaypoint(ctx, wp, p); err != nil {
			if errors.Is(err, ErrTimeout) {
				c.logger.Warn("waypoint not reached in time, continuing", map[string]any{
					"x":     wp.X,
					"y":     wp.Y,
					"theta": wp.Theta,
				})
				continue
			}
			return err
		}
	}
	return c.NavigateTo(ctx, waypoints[len(waypoints)-1], false, true)
}

// waitForWaypoint polls the base pose until it is roughly at the goal.
// Looser than waitForAction: the base only has to pass near the
// waypoint, not stop there.
func (c *Client) waitForWaypoint(ctx context.Context, goal types.Pose, p TrajectoryParams) error {
	if _, ok := c.streams[types.FrameKindFastState]; !ok {
		return ErrNoTelemetry
	}
	deadline := time.Now().Add(p.PerWaypointTimeout)
	ticker := time.NewTicker(p.PollInterval)
	defer ticker.Stop()

	for {
		if err := c.StreamErr(types.FrameKindFastState); err != nil {
			return err
		}
		if pose, ok := c.BasePose(); ok {
			if pose.DistanceTo(goal) < p.PosErrThreshold &&
				pose.AngularDistanceTo(goal) < p.RotErrThreshold {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("waypoint (%.2f, %.2f): %w", goal.X, goal.Y, ErrTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
