package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/fazildgr8/stretch-ai/channel"
	"github.com/fazildgr8/stretch-ai/log"
	"github.com/fazildgr8/stretch-ai/mapstore"
	"github.com/fazildgr8/stretch-ai/metrics"
	"github.com/fazildgr8/stretch-ai/types"
	"github.com/fazildgr8/stretch-ai/wire"
)

// Config configures the daemon.
type Config struct {
	// ObservationAddr, FastStateAddr, and ServoAddr are the telemetry
	// bind addresses, one listen socket per frame kind.
	ObservationAddr string
	FastStateAddr   string
	ServoAddr       string
	// CommandAddr is the command bind address.
	CommandAddr string

	// ObservationPolicy, FastStatePolicy, and ServoPolicy are the
	// per-subscriber queue policies. Zero values default to conflated:
	// fresher state always beats a slow consumer.
	ObservationPolicy channel.Policy
	FastStatePolicy   channel.Policy
	ServoPolicy       channel.Policy
	// CommandPolicy is the inbound command queue policy. The zero
	// value defaults to bounded(32).
	CommandPolicy channel.Policy

	// ObservationInterval, FastStateInterval, and ServoInterval set
	// the publish period of each telemetry loop.
	ObservationInterval time.Duration
	FastStateInterval   time.Duration
	ServoInterval       time.Duration

	// Image controls the servo-frame imagery transforms. The zero
	// value defaults to DefaultImageParams.
	Image ImageParams

	// WriteTimeout bounds one telemetry frame write per subscriber.
	WriteTimeout time.Duration

	// Codec encodes outbound frames and decodes commands. Nil uses
	// the default codec.
	Codec wire.Codec

	// Driver is the hardware abstraction. Required. The server does
	// not close it; the caller owns its lifecycle.
	Driver Driver

	// Maps persists serialized maps for save_map/load_map commands.
	// When nil, map commands are rejected.
	Maps mapstore.Store

	// MapTimeout bounds one map serialize/persist round trip.
	// Zero defaults to 10s.
	MapTimeout time.Duration

	// Logger receives daemon logs. Nil uses a stderr logger.
	Logger *log.Logger

	// Collector receives daemon metrics. May be nil; all collector
	// methods are nil-safe.
	Collector *metrics.Collector
}

func (cfg Config) withDefaults() Config {
	if cfg.Codec == nil {
		cfg.Codec = wire.Default()
	}
	zero := channel.Policy{}
	if cfg.ObservationPolicy == zero {
		cfg.ObservationPolicy = channel.Conflated()
	}
	if cfg.FastStatePolicy == zero {
		cfg.FastStatePolicy = channel.Conflated()
	}
	if cfg.ServoPolicy == zero {
		cfg.ServoPolicy = channel.Conflated()
	}
	if cfg.CommandPolicy == zero {
		cfg.CommandPolicy = channel.Bounded(32)
	}
	if cfg.Image == (ImageParams{}) {
		cfg.Image = DefaultImageParams()
	}
	if cfg.MapTimeout <= 0 {
		cfg.MapTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewLogger("stretchd")
	}
	return cfg
}

func (cfg Config) validate() error {
	if cfg.Driver == nil {
		return errors.New("driver is required")
	}
	if cfg.ObservationAddr == "" || cfg.FastStateAddr == "" || cfg.ServoAddr == "" || cfg.CommandAddr == "" {
		return errors.New("all four channel addresses are required")
	}
	if cfg.ObservationInterval <= 0 || cfg.FastStateInterval <= 0 || cfg.ServoInterval <= 0 {
		return errors.New("telemetry intervals must be positive")
	}
	return cfg.Image.validate()
}

// Server is the robot daemon: three telemetry loops publishing at
// independent rates plus one command consumer, all sharing the Driver.
type Server struct {
	cfg    Config
	codec  wire.Codec
	driver Driver
	maps   mapstore.Store

	logger    *log.Logger
	collector *metrics.Collector

	obs   *channel.Publisher
	fast  *channel.Publisher
	servo *channel.Publisher
	cmds  *channel.Receiver

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// lastStep is the highest applied command step, stamped onto every
	// outgoing frame. Written by the consumer, read by the loops.
	lastStep atomic.Int64

	mu      sync.Mutex
	started bool
	stopped bool
}

// New validates the config and binds all four channel endpoints, so a
// port conflict fails here rather than mid-flight. Loops do not run
// until Start.
func New(cfg Config) (*Server, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	var opened []io.Closer
	fail := func(err error) (*Server, error) {
		for _, c := range opened {
			_ = c.Close()
		}
		return nil, err
	}

	obs, err := channel.NewPublisher(channel.PublisherConfig{
		Addr: cfg.ObservationAddr, Policy: cfg.ObservationPolicy, WriteTimeout: cfg.WriteTimeout,
	})
	if err != nil {
		return fail(fmt.Errorf("bind observation channel: %w", err))
	}
	opened = append(opened, obs)

	fast, err := channel.NewPublisher(channel.PublisherConfig{
		Addr: cfg.FastStateAddr, Policy: cfg.FastStatePolicy, WriteTimeout: cfg.WriteTimeout,
	})
	if err != nil {
		return fail(fmt.Errorf("bind fast state channel: %w", err))
	}
	opened = append(opened, fast)

	servo, err := channel.NewPublisher(channel.PublisherConfig{
		Addr: cfg.ServoAddr, Policy: cfg.ServoPolicy, WriteTimeout: cfg.WriteTimeout,
	})
	if err != nil {
		return fail(fmt.Errorf("bind servo channel: %w", err))
	}
	opened = append(opened, servo)

	cmds, err := channel.NewReceiver(channel.ReceiverConfig{
		Addr: cfg.CommandAddr, Policy: cfg.CommandPolicy,
	})
	if err != nil {
		return fail(fmt.Errorf("bind command channel: %w", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:       cfg,
		codec:     cfg.Codec,
		driver:    cfg.Driver,
		maps:      cfg.Maps,
		logger:    cfg.Logger,
		collector: cfg.Collector,
		obs:       obs,
		fast:      fast,
		servo:     servo,
		cmds:      cmds,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// ObservationAddr returns the bound observation address.
func (s *Server) ObservationAddr() string { return s.obs.Addr() }

// FastStateAddr returns the bound fast-state address.
func (s *Server) FastStateAddr() string { return s.fast.Addr() }

// ServoAddr returns the bound servo address.
func (s *Server) ServoAddr() string { return s.servo.Addr() }

// CommandAddr returns the bound command address.
func (s *Server) CommandAddr() string { return s.cmds.Addr() }

// LastStep returns the highest applied command step.
func (s *Server) LastStep() int64 { return s.lastStep.Load() }

// Start launches the telemetry loops and the command consumer.
// Calling Start more than once is a no-op.
func (s *Server) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true

	s.wg.Add(4)
	go s.telemetryLoop(types.FrameKindFullObservation, s.cfg.ObservationInterval, s.obs, s.buildObservation)
	go s.telemetryLoop(types.FrameKindFastState, s.cfg.FastStateInterval, s.fast, s.buildFastState)
	go s.telemetryLoop(types.FrameKindServo, s.cfg.ServoInterval, s.servo, s.buildServo)
	go s.consumeCommands()

	s.logger.Info("daemon started", map[string]any{
		"observation": s.ObservationAddr(),
		"fast_state":  s.FastStateAddr(),
		"servo":       s.ServoAddr(),
		"command":     s.CommandAddr(),
		"codec":       s.codec.Name(),
	})
}

// Stop cancels the loops, waits for them to drain, and closes every
// channel endpoint. Safe to call more than once.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	s.absorbChannelStats()

	var err error
	err = multierr.Append(err, s.obs.Close())
	err = multierr.Append(err, s.fast.Close())
	err = multierr.Append(err, s.servo.Close())
	err = multierr.Append(err, s.cmds.Close())

	snap := s.collector.Snapshot()
	s.logger.Info("daemon stopped", map[string]any{
		"last_step":          s.lastStep.Load(),
		"commands_applied":   snap.CommandsApplied,
		"commands_stale":     snap.CommandsStale,
		"commands_rejected":  snap.CommandsRejected,
		"commands_malformed": snap.CommandsMalformed,
	})
	return err
}

// Run starts the daemon and blocks until ctx is canceled or Stop is
// called, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	s.Start()
	select {
	case <-ctx.Done():
	case <-s.ctx.Done():
	}
	return s.Stop()
}

// absorbChannelStats folds final endpoint counters into the collector.
func (s *Server) absorbChannelStats() {
	for kind, pub := range map[types.FrameKind]*channel.Publisher{
		types.FrameKindFullObservation: s.obs,
		types.FrameKindFastState:       s.fast,
		types.FrameKindServo:           s.servo,
	} {
		st := pub.Stats()
		s.collector.AbsorbChannelStats(string(kind), st.Published, st.Delivered, st.Dropped, st.Conflated)
	}
	st := s.cmds.Stats()
	s.collector.AbsorbChannelStats("command", st.Received, st.Delivered, st.Dropped, st.Conflated)
}

// rateWindow is how many loop iterations pass between achieved-rate
// samples.
const rateWindow = 50

// telemetryLoop drives one frame kind at its own cadence. Build or
// encode failures are logged and the tick skipped; the loop only exits
// on shutdown.
func (s *Server) telemetryLoop(kind types.FrameKind, interval time.Duration, pub *channel.Publisher, build func(step int64, now time.Time) (types.Frame, error)) {
	defer s.wg.Done()
	logger := s.logger.Named(string(kind))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var iters int64
	windowStart := time.Now()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}

		now := time.Now()
		frame, err := build(s.lastStep.Load(), now)
		if err != nil {
			logger.Warn("frame build failed", map[string]any{"error": err.Error()})
			continue
		}
		payload, err := wire.EncodeFrame(s.codec, frame)
		if err != nil {
			logger.Error("frame encode failed", map[string]any{"error": err.Error()})
			continue
		}
		if err := pub.Publish(payload); err != nil {
			return
		}
		s.collector.IncLoopIteration(string(kind))

		iters++
		if iters%rateWindow == 0 {
			elapsed := time.Since(windowStart)
			if elapsed > 0 {
				hz := float64(rateWindow) / elapsed.Seconds()
				s.collector.RecordLoopRate(string(kind), hz)
				logger.Debug("loop rate", map[string]any{
					"hz":      hz,
					"step":    s.lastStep.Load(),
					"payload": len(payload),
				})
			}
			windowStart = time.Now()
		}
	}
}

func (s *Server) buildFastState(step int64, now time.Time) (types.Frame, error) {
	return fastStateFrame(s.driver.State(), step, now), nil
}

func (s *Server) buildObservation(step int64, now time.Time) (types.Frame, error) {
	head, err := s.driver.CaptureHead()
	if err != nil {
		return nil, fmt.Errorf("head capture: %w", err)
	}
	return observationFrame(s.driver.State(), head, step, now, s.cfg.Image.JPEGQuality)
}

func (s *Server) buildServo(step int64, now time.Time) (types.Frame, error) {
	head, err := s.driver.CaptureHead()
	if err != nil {
		return nil, fmt.Errorf("head capture: %w", err)
	}
	ee, err := s.driver.CaptureEndEffector()
	if err != nil {
		return nil, fmt.Errorf("ee capture: %w", err)
	}
	return servoFrame(s.driver.State(), head, ee, step, now, s.cfg.Image)
}

// advanceStep raises lastStep to step if it is higher. Commands of
// different intent classes may legally apply out of step order, but
// frame stamps must never regress.
func (s *Server) advanceStep(step int64) {
	for {
		cur := s.lastStep.Load()
		if step <= cur || s.lastStep.CompareAndSwap(cur, step) {
			return
		}
	}
}
