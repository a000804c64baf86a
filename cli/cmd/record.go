package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/fazildgr8/stretch-ai/channel"
	"github.com/fazildgr8/stretch-ai/cli/render"
	"github.com/fazildgr8/stretch-ai/config"
	"github.com/fazildgr8/stretch-ai/record"
	"github.com/fazildgr8/stretch-ai/types"
	"github.com/fazildgr8/stretch-ai/wire"
)

// recordQueueDepth bounds the subscriber queue while frames are being
// written to disk. Deeper than a live consumer's queue: losing frames
// to a slow disk defeats the point of recording.
const recordQueueDepth = 256

// RecordResponse summarizes a finished recording.
type RecordResponse struct {
	Output  string `json:"output"`
	Kind    string `json:"kind"`
	Frames  int64  `json:"frames"`
	Skipped int64  `json:"skipped"`
}

// RecordCommand returns the record command, which captures a telemetry
// stream to a replayable log file.
func RecordCommand() *cli.Command {
	return &cli.Command{
		Name:  "record",
		Usage: "Record a telemetry stream to a file",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{
				Name:     "output",
				Aliases:  []string{"o"},
				Usage:    "Output file path",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "kind",
				Usage: "Stream to record (fast_state, full_observation, servo)",
				Value: "fast_state",
			},
			&cli.DurationFlag{
				Name:  "duration",
				Usage: "Stop after this long (0 = until interrupted)",
			},
		),
		Action: runRecord,
	}
}

func runRecord(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return cli.Exit("TUI mode is not supported for record", 1)
	}

	kind, err := kindByName(c.String("kind"))
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	codec, err := wire.ByName(cfg.Codec)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	if d := c.Duration("duration"); d > 0 {
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	sub, err := channel.Dial(ctx, channel.SubscriberConfig{
		Addr:        telemetryAddr(cfg, robotHost(c, cfg), kind),
		Policy:      channel.Bounded(recordQueueDepth),
		DialTimeout: cfg.Client.Dial.Timeout.Duration,
		DialRetries: cfg.Client.Dial.MaxRetries,
	})
	if err != nil {
		return fmt.Errorf("dialing %s channel: %w", kind, err)
	}
	defer sub.Close()

	sink, err := record.NewFileSink(c.String("output"), codec)
	if err != nil {
		return err
	}

	if isStderrTTY() {
		fmt.Fprintf(os.Stderr, "Recording %s to %s (Ctrl+C to stop)...\n", kind, c.String("output"))
	}

	var skipped int64
	for {
		payload, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return fmt.Errorf("receiving frame: %w", err)
		}
		frame, err := wire.DecodeTelemetry(codec, payload)
		if err != nil {
			skipped++
			continue
		}
		if frame.Kind() != kind {
			skipped++
			continue
		}
		if err := sink.Append(ctx, frame); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			return fmt.Errorf("writing frame: %w", err)
		}
	}

	// The run context is spent; flushing gets its own budget.
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := sink.Flush(flushCtx); err != nil {
		return fmt.Errorf("flushing recording: %w", err)
	}
	frames := sink.Frames()
	if err := sink.Close(); err != nil {
		return fmt.Errorf("closing recording: %w", err)
	}

	return r.Render(RecordResponse{
		Output:  c.String("output"),
		Kind:    string(kind),
		Frames:  frames,
		Skipped: skipped,
	})
}

// kindByName maps a --kind value to its frame kind.
func kindByName(name string) (types.FrameKind, error) {
	switch name {
	case "fast_state":
		return types.FrameKindFastState, nil
	case "full_observation":
		return types.FrameKindFullObservation, nil
	case "servo":
		return types.FrameKindServo, nil
	default:
		return "", fmt.Errorf("unknown stream kind %q (must be fast_state, full_observation, or servo)", name)
	}
}

// telemetryAddr resolves the channel endpoint for a frame kind.
func telemetryAddr(cfg *config.Config, host string, kind types.FrameKind) string {
	switch kind {
	case types.FrameKindFullObservation:
		return cfg.Channels.Observation.Endpoint(host)
	case types.FrameKindServo:
		return cfg.Channels.Servo.Endpoint(host)
	default:
		return cfg.Channels.FastState.Endpoint(host)
	}
}
