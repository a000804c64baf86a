package cmd

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/fazildgr8/stretch-ai/cli/render"
	"github.com/fazildgr8/stretch-ai/client"
	"github.com/fazildgr8/stretch-ai/types"
)

// StateResponse is the flattened fast-state view rendered by the
// state and watch commands.
type StateResponse struct {
	Step         int64   `json:"step"`
	Mode         string  `json:"mode"`
	Homed        bool    `json:"homed"`
	Runstopped   bool    `json:"runstopped"`
	AtGoal       bool    `json:"at_goal"`
	MotionFailed bool    `json:"motion_failed"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	ThetaDeg     float64 `json:"theta_deg"`
	Lift         float64 `json:"lift"`
	Arm          float64 `json:"arm"`
	Gripper      float64 `json:"gripper"`
	CapturedAt   string  `json:"captured_at"`
}

// StateCommand returns the state command, which prints a one-shot
// snapshot of the robot's fast state.
func StateCommand() *cli.Command {
	return &cli.Command{
		Name:  "state",
		Usage: "Print the current robot state",
		Flags: append(ReadOnlyFlags(),
			&cli.DurationFlag{
				Name:  "wait",
				Usage: "How long to wait for the first telemetry frame",
				Value: 5 * time.Second,
			},
		),
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return err
			}

			if c.Bool("tui") {
				return cli.Exit("TUI mode is not supported for state; use watch --tui", 1)
			}

			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(c.Context, c.Duration("wait")+cfg.Client.Dial.Timeout.Duration)
			defer cancel()

			cl, err := dialClient(ctx, c, cfg, dialStreams{fastState: true})
			if err != nil {
				return fmt.Errorf("dialing robot: %w", err)
			}
			defer cl.Close()

			st, err := waitForFastState(ctx, cl, c.Duration("wait"))
			if err != nil {
				return err
			}

			return r.Render(buildStateResponse(st))
		},
	}
}

// waitForFastState polls until the client has received at least one
// fast-state frame or the wait budget is spent.
func waitForFastState(ctx context.Context, cl *client.Client, wait time.Duration) (*types.FastState, error) {
	deadline := time.Now().Add(wait)
	for {
		if st, ok := cl.LatestFastState(); ok {
			return st, nil
		}
		if err := cl.StreamErr(types.FrameKindFastState); err != nil {
			return nil, fmt.Errorf("fast-state stream: %w", err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("no telemetry received within %s; is stretchd running?", wait)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// buildStateResponse flattens a fast-state frame for rendering.
func buildStateResponse(st *types.FastState) StateResponse {
	resp := StateResponse{
		Step:         st.FrameStep,
		Mode:         string(st.Mode),
		Homed:        st.IsHomed,
		Runstopped:   st.IsRunstopped,
		AtGoal:       st.AtGoal,
		MotionFailed: st.LastMotionFailed,
		X:            st.BasePose.X,
		Y:            st.BasePose.Y,
		ThetaDeg:     st.BasePose.Theta * 180 / math.Pi,
	}
	if len(st.Joints.Positions) > types.JointGripper {
		resp.Lift = st.Joints.Positions[types.JointLift]
		resp.Arm = st.Joints.Positions[types.JointArm]
		resp.Gripper = st.Joints.Positions[types.JointGripper]
	}
	if st.CapturedAt > 0 {
		resp.CapturedAt = time.Unix(0, st.CapturedAt).Format(time.RFC3339Nano)
	}
	return resp
}
