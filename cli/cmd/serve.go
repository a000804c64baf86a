package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/fazildgr8/stretch-ai/channel"
	"github.com/fazildgr8/stretch-ai/config"
	"github.com/fazildgr8/stretch-ai/log"
	"github.com/fazildgr8/stretch-ai/metrics"
	"github.com/fazildgr8/stretch-ai/server"
	"github.com/fazildgr8/stretch-ai/wire"
)

// ServeCommand returns the serve command run by stretchd: bind the
// four channels, start the telemetry loops, consume commands until
// interrupted.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the robot daemon",
		Flags: []cli.Flag{
			ConfigFlag,
			&cli.StringFlag{
				Name:    "host",
				Usage:   "Bind host (overrides config)",
				EnvVars: []string{"STRETCHD_HOST"},
			},
			&cli.StringFlag{
				Name:  "driver",
				Usage: "Hardware driver (stub)",
				Value: "stub",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := log.NewLoggerAt("stretchd", cfg.Log.Level)
	if cfg.Log.File != "" {
		logger = logger.WithRotatingFile(cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, cfg.Log.MaxAgeDays)
	}
	defer logger.Sync()

	driver, err := buildDriver(c.String("driver"))
	if err != nil {
		return err
	}

	store, err := buildMapStore(c.Context, cfg)
	if err != nil {
		return fmt.Errorf("opening map store: %w", err)
	}
	defer store.Close()

	srvCfg, err := serverConfig(cfg, c.String("host"))
	if err != nil {
		return err
	}
	srvCfg.Driver = driver
	srvCfg.Maps = store
	srvCfg.Logger = logger
	srvCfg.Collector = metrics.NewCollector("stretchd", cfg.Codec, cfg.Maps.Backend)

	srv, err := server.New(srvCfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutdown signal received", map[string]any{"signal": sig.String()})
		cancel()
	}()

	return srv.Run(ctx)
}

// buildDriver constructs the named hardware driver. Only the stub
// driver ships today; the real Stretch body driver binds through the
// same interface.
func buildDriver(name string) (server.Driver, error) {
	switch name {
	case "stub", "":
		return server.NewStubDriver(), nil
	default:
		return nil, fmt.Errorf("unknown driver %q (must be stub)", name)
	}
}

// serverConfig maps the file config onto the server's config.
func serverConfig(cfg *config.Config, hostOverride string) (server.Config, error) {
	host := cfg.Robot.Host
	if hostOverride != "" {
		host = hostOverride
	}

	codec, err := wire.ByName(cfg.Codec)
	if err != nil {
		return server.Config{}, err
	}

	policies := make(map[string]channel.Policy, 4)
	for name, raw := range map[string]string{
		"observation": cfg.Channels.Observation.Policy,
		"fast_state":  cfg.Channels.FastState.Policy,
		"servo":       cfg.Channels.Servo.Policy,
		"command":     cfg.Channels.Command.Policy,
	} {
		p, err := channel.ParsePolicy(raw)
		if err != nil {
			return server.Config{}, fmt.Errorf("channel %s: %w", name, err)
		}
		policies[name] = p
	}

	return server.Config{
		ObservationAddr:     cfg.Channels.Observation.Endpoint(host),
		FastStateAddr:       cfg.Channels.FastState.Endpoint(host),
		ServoAddr:           cfg.Channels.Servo.Endpoint(host),
		CommandAddr:         cfg.Channels.Command.Endpoint(host),
		ObservationPolicy:   policies["observation"],
		FastStatePolicy:     policies["fast_state"],
		ServoPolicy:         policies["servo"],
		CommandPolicy:       policies["command"],
		ObservationInterval: config.Interval(cfg.Robot.Rates.ObservationHz),
		FastStateInterval:   config.Interval(cfg.Robot.Rates.FastStateHz),
		ServoInterval:       config.Interval(cfg.Robot.Rates.ServoHz),
		Image: server.ImageParams{
			Scaling:      cfg.Robot.Image.Scaling,
			EEScaling:    cfg.Robot.Image.EEScaling,
			DepthScaling: cfg.Robot.Image.DepthScaling,
			JPEGQuality:  cfg.Robot.Image.JPEGQuality,
		},
		WriteTimeout: cfg.Robot.WriteTimeout.Duration,
		Codec:        codec,
		MapTimeout:   cfg.Maps.OpTimeout.Duration,
	}, nil
}
