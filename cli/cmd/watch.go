package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/fazildgr8/stretch-ai/cli/render"
	"github.com/fazildgr8/stretch-ai/cli/tui"
	"github.com/fazildgr8/stretch-ai/types"
)

// WatchCommand returns the watch command, which renders the robot's
// fast state continuously until interrupted.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Continuously display robot state",
		Flags: append(ReadOnlyFlags(),
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Refresh interval",
				Value: tui.DefaultRefreshInterval,
			},
		),
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				cancel()
			}()

			cl, err := dialClient(ctx, c, cfg, dialStreams{fastState: true})
			if err != nil {
				return fmt.Errorf("dialing robot: %w", err)
			}
			defer cl.Close()

			if c.Bool("tui") {
				return tui.RunWatchTUI(cl, c.Duration("interval"))
			}

			return watchLoop(ctx, cl, r, c.Duration("interval"))
		},
	}
}

// watchLoop renders one state snapshot per tick. Each snapshot is a
// complete rendered document so the output stays greppable when piped.
func watchLoop(ctx context.Context, cl stateClient, r *render.Renderer, interval time.Duration) error {
	if interval <= 0 {
		interval = tui.DefaultRefreshInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			st, ok := cl.LatestFastState()
			if !ok {
				continue
			}
			if err := r.Render(buildStateResponse(st)); err != nil {
				return err
			}
		}
	}
}

// stateClient is the slice of the client watchLoop reads.
type stateClient interface {
	LatestFastState() (*types.FastState, bool)
}
