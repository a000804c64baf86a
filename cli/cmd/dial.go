package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	adapterredis "github.com/fazildgr8/stretch-ai/adapter/redis"
	adapters3 "github.com/fazildgr8/stretch-ai/adapter/s3"
	"github.com/fazildgr8/stretch-ai/client"
	"github.com/fazildgr8/stretch-ai/config"
	"github.com/fazildgr8/stretch-ai/log"
	"github.com/fazildgr8/stretch-ai/mapstore"
	"github.com/fazildgr8/stretch-ai/wire"
)

// loadConfig reads --config when set, otherwise returns the built-in
// defaults.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// robotHost resolves the daemon host: flag first, then config.
func robotHost(c *cli.Context, cfg *config.Config) string {
	if host := c.String("robot-host"); host != "" {
		return host
	}
	return cfg.Client.RobotHost
}

// dialStreams selects which channels a command connects. Commands
// subscribe only to what they read so a state query does not pull
// full-resolution imagery.
type dialStreams struct {
	fastState   bool
	observation bool
	servo       bool
	command     bool
}

// dialClient connects the state client to the selected channels.
func dialClient(ctx context.Context, c *cli.Context, cfg *config.Config, streams dialStreams) (*client.Client, error) {
	codec, err := wire.ByName(cfg.Codec)
	if err != nil {
		return nil, err
	}

	host := robotHost(c, cfg)
	clientCfg := client.Config{
		DialTimeout: cfg.Client.Dial.Timeout.Duration,
		DialRetries: cfg.Client.Dial.MaxRetries,
		Codec:       codec,
		Wait: client.WaitParams{
			PollInterval:      cfg.Client.Wait.PollInterval.Duration,
			ModeTimeout:       cfg.Client.Wait.ModeTimeout.Duration,
			ActionTimeout:     cfg.Client.Wait.ActionTimeout.Duration,
			MovingThreshold:   cfg.Client.Wait.MovingThreshold,
			AngleThreshold:    cfg.Client.Wait.AngleThreshold,
			MinStepsNotMoving: cfg.Client.Wait.MinStepsNotMoving,
		},
		Logger: log.NewLoggerAt("stretch", cfg.Log.Level),
	}
	if streams.fastState {
		clientCfg.FastStateAddr = cfg.Channels.FastState.Endpoint(host)
	}
	if streams.observation {
		clientCfg.ObservationAddr = cfg.Channels.Observation.Endpoint(host)
	}
	if streams.servo {
		clientCfg.ServoAddr = cfg.Channels.Servo.Endpoint(host)
	}
	if streams.command {
		clientCfg.CommandAddr = cfg.Channels.Command.Endpoint(host)
	}

	return client.Dial(ctx, clientCfg)
}

// buildMapStore constructs the configured map persistence backend.
func buildMapStore(ctx context.Context, cfg *config.Config) (mapstore.Store, error) {
	switch cfg.Maps.Backend {
	case "file", "":
		return mapstore.NewFileStore(cfg.Maps.Path)
	case "redis":
		return adapterredis.New(adapterredis.Config{
			URL:       cfg.Maps.URL,
			Prefix:    cfg.Maps.Prefix,
			Timeout:   cfg.Maps.OpTimeout.Duration,
			ChunkSize: cfg.Maps.ChunkSize,
		})
	case "s3":
		return adapters3.New(ctx, adapters3.Config{
			Bucket:       cfg.Maps.Bucket,
			Prefix:       cfg.Maps.Prefix,
			Region:       cfg.Maps.Region,
			Endpoint:     cfg.Maps.Endpoint,
			UsePathStyle: cfg.Maps.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown maps backend: %q (must be file, redis, or s3)", cfg.Maps.Backend)
	}
}

// isStderrTTY returns true if stderr is a TTY.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
