// Package client implements the remote-side robot state client: it
// ingests telemetry streams into a latest-frame cache, issues
// step-stamped commands, and offers bounded blocking waits over the
// cached state. One client talks to one robot daemon.
package client

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
	"github.com/fazildgr8/stretch-ai/metrics"
	"github.com/fazildgr8/stretch-ai/types"
	"github.com/fazildgr8/stretch-ai/wire"
)

// WaitParams tunes the bounded polling of the blocking helpers.
type WaitParams struct {
	// PollInterval is the cadence of state polls. Defaults to 100ms.
	PollInterval time.Duration
	// ModeTimeout bounds a mode or posture wait. Defaults to 5s.
	ModeTimeout time.Duration
	// ActionTimeout bounds a blocking action wait. Defaults to 15s.
	ActionTimeout time.Duration
	// MovingThreshold is the base translation per poll below which the
	// robot counts as stationary, in meters. Defaults to 1e-4.
	MovingThreshold float64
	// AngleThreshold is the heading change per poll below which the
	// robot counts as stationary, in radians. Defaults to 1e-4.
	AngleThreshold float64
	// MinStepsNotMoving is how many consecutive stationary polls must
	// be exceeded before an action counts as settled. Defaults to 1.
	MinStepsNotMoving int
}

func (w WaitParams) withDefaults() WaitParams {
	if w.PollInterval <= 0 {
		w.PollInterval = 100 * time.Millisecond
	}
	if w.ModeTimeout <= 0 {
		w.ModeTimeout = 5 * time.Second
	}
	if w.ActionTimeout <= 0 {
		w.ActionTimeout = 15 * time.Second
	}
	if w.MovingThreshold <= 0 {
		w.MovingThreshold = 1e-4
	}
	if w.AngleThreshold <= 0 {
		w.AngleThreshold = 1e-4
	}
	if w.MinStepsNotMoving <= 0 {
		w.MinStepsNotMoving = 1
	}
	return w
}

// Config configures the client.
type Config struct {
	// ObservationAddr, FastStateAddr, and ServoAddr are the daemon's
	// telemetry addresses. An empty address skips that stream; the
	// blocking helpers require FastStateAddr.
	ObservationAddr string
	FastStateAddr   string
	ServoAddr       string
	// CommandAddr is the daemon's command address. Empty disables
	// command issuing.
	CommandAddr string

	// Policy is the telemetry subscriber policy. The zero value
	// defaults to conflated.
	Policy channel.Policy

	// DialTimeout and DialRetries follow the channel defaults.
	DialTimeout time.Duration
	DialRetries int

	// Codec decodes inbound frames and encodes commands. Nil uses the
	// default codec.
	Codec wire.Codec

	// Wait tunes the blocking helpers.
	Wait WaitParams

	// Logger receives client logs. Nil uses a stderr logger.
	Logger *log.Logger

	// Collector receives client metrics. May be nil; all collector
	// methods are nil-safe.
	Collector *metrics.Collector
}

func (cfg Config) withDefaults() Config {
	if cfg.Policy == (channel.Policy{}) {
		cfg.Policy = channel.Conflated()
	}
	if cfg.Codec == nil {
		cfg.Codec = wire.Default()
	}
	cfg.Wait = cfg.Wait.withDefaults()
	if cfg.Logger == nil {
		cfg.Logger = log.NewLogger("stretch")
	}
	return cfg
}

func (cfg Config) validate() error {
	if cfg.ObservationAddr == "" && cfg.FastStateAddr == "" && cfg.ServoAddr == "" && cfg.CommandAddr == "" {
		return errors.New("at least one channel address is required")
	}
	return nil
}

// stream is one subscribed telemetry kind and its ingest bookkeeping.
type stream struct {
	kind     types.FrameKind
	sub      *channel.Subscriber
	ingested atomic.Int64

	mu  sync.Mutex
	err *IngestError
}

func (st *stream) fail(e *IngestError) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.err == nil {
		st.err = e
	}
}

func (st *stream) failure() *IngestError {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.err
}

// Client is the remote process's connection to the robot daemon.
type Client struct {
	cfg       Config
	codec     wire.Codec
	logger    *log.Logger
	collector *metrics.Collector

	sender  *channel.Sender
	streams map[types.FrameKind]*stream
	cache   *frameCache

	// step is the highest step observed or issued. Issue increments it;
	// ingest raises it so a restarted client never reuses steps the
	// robot has already applied.
	step atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// Dial connects to the daemon's configured endpoints and starts one
// ingest loop per telemetry stream.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("client config: %w", err)
	}

	var opened []io.Closer
	fail := func(err error) (*Client, error) {
		for _, cl := range opened {
			_ = cl.Close()
		}
		return nil, err
	}

	c := &Client{
		cfg:       cfg,
		codec:     cfg.Codec,
		logger:    cfg.Logger,
		collector: cfg.Collector,
		streams:   make(map[types.FrameKind]*stream),
		cache:     newFrameCache(),
	}

	if cfg.CommandAddr != "" {
		snd, err := channel.DialSender(ctx, channel.SenderConfig{
			Addr:        cfg.CommandAddr,
			DialTimeout: cfg.DialTimeout,
			DialRetries: cfg.DialRetries,
		})
		if err != nil {
			return fail(fmt.Errorf("dial command channel: %w", err))
		}
		opened = append(opened, snd)
		c.sender = snd
	}

	for kind, addr := range map[types.FrameKind]string{
		types.FrameKindFullObservation: cfg.ObservationAddr,
		types.FrameKindFastState:       cfg.FastStateAddr,
		types.FrameKindServo:           cfg.ServoAddr,
	} {
		if addr == "" {
			continue
		}
		sub, err := channel.Dial(ctx, channel.SubscriberConfig{
			Addr:        addr,
			Policy:      cfg.Policy,
			DialTimeout: cfg.DialTimeout,
			DialRetries: cfg.DialRetries,
		})
		if err != nil {
			return fail(fmt.Errorf("dial %s channel: %w", kind, err))
		}
		opened = append(opened, sub)
		c.streams[kind] = &stream{kind: kind, sub: sub}
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())
	for _, st := range c.streams {
		c.wg.Add(1)
		go c.ingest(st)
	}

	c.logger.Info("client connected", map[string]any{
		"command": cfg.CommandAddr,
		"streams": len(c.streams),
		"codec":   cfg.Codec.Name(),
	})
	return c, nil
}

// ingest drains one telemetry stream into the cache. Decode failures
// and stale frames are counted and skipped; the loop exits only when
// the stream dies or the client closes.
func (c *Client) ingest(st *stream) {
	defer c.wg.Done()
	logger := c.logger.Named(string(st.kind))

	for {
		payload, err := st.sub.Next(c.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, channel.ErrClosed) {
				st.fail(&IngestError{Kind: IngestCanceled, FrameKind: st.kind, Err: err})
				return
			}
			st.fail(&IngestError{Kind: IngestStream, FrameKind: st.kind, Err: err})
			logger.Error("telemetry stream failed", map[string]any{"error": err.Error()})
			return
		}

		frame, err := wire.DecodeTelemetry(c.codec, payload)
		if err != nil {
			c.collector.IncDecodeError()
			logger.Warn("frame decode failed", map[string]any{"error": err.Error()})
			continue
		}
		if frame.Kind() != st.kind {
			logger.Warn("frame kind does not match stream", map[string]any{"kind": string(frame.Kind())})
			continue
		}

		if !c.cache.put(frame) {
			c.collector.IncStaleSkipped(string(st.kind))
			stale := &IngestError{Kind: IngestStale, FrameKind: st.kind}
			logger.Debug("skipping stale frame", map[string]any{
				"step": frame.Step(), "reason": stale.Error(),
			})
			continue
		}

		st.ingested.Add(1)
		c.collector.IncFrameIngested(string(st.kind))
		c.raiseStep(frame.Step())
	}
}

// raiseStep lifts the local step counter to at least step.
func (c *Client) raiseStep(step int64) {
	for {
		cur := c.step.Load()
		if step <= cur || c.step.CompareAndSwap(cur, step) {
			return
		}
	}
}

// GetLatest returns the most recent cached frame of the kind, or false
// if none has arrived. Never blocks; never returns a frame with a
// smaller step than an earlier return of the same kind.
func (c *Client) GetLatest(kind types.FrameKind) (types.Frame, bool) {
	return c.cache.get(kind)
}

// LatestFastState returns the most recent fast state frame, if any.
func (c *Client) LatestFastState() (*types.FastState, bool) {
	f, ok := c.cache.get(types.FrameKindFastState)
	if !ok {
		return nil, false
	}
	fast, ok := f.(*types.FastState)
	return fast, ok
}

// LatestObservation returns the most recent full observation, if any.
func (c *Client) LatestObservation() (*types.FullObservation, bool) {
	f, ok := c.cache.get(types.FrameKindFullObservation)
	if !ok {
		return nil, false
	}
	obs, ok := f.(*types.FullObservation)
	return obs, ok
}

// LatestServo returns the most recent servo frame, if any.
func (c *Client) LatestServo() (*types.ServoFrame, bool) {
	f, ok := c.cache.get(types.FrameKindServo)
	if !ok {
		return nil, false
	}
	servo, ok := f.(*types.ServoFrame)
	return servo, ok
}

// StreamErr returns the terminal error of a subscribed stream, nil
// while the stream is healthy. A stream error is fatal for waits on
// that kind; timeouts are reported separately as ErrTimeout.
func (c *Client) StreamErr(kind types.FrameKind) error {
	st, ok := c.streams[kind]
	if !ok {
		return nil
	}
	if e := st.failure(); e != nil {
		return e
	}
	return nil
}

// LastStep returns the highest command step observed or issued.
func (c *Client) LastStep() int64 { return c.step.Load() }

// Issue assigns the next step to cmd and sends it. Fire-and-forget:
// there is no acknowledgment; callers that need completion use the
// blocking helpers. Returns the assigned step.
func (c *Client) Issue(cmd *types.Command) (int64, error) {
	if c.sender == nil {
		return 0, ErrNoCommandChannel
	}
	if cmd.Kind == "" {
		cmd.Kind = types.CommandKind
	}
	if err := cmd.Validate(); err != nil {
		return 0, fmt.Errorf("refusing to issue: %w", err)
	}

	step := c.step.Add(1)
	cmd.Step = step
	payload, err := wire.EncodeCommand(c.codec, cmd)
	if err != nil {
		return 0, err
	}
	if err := c.sender.Send(payload); err != nil {
		return 0, err
	}
	c.logger.Debug("issued command", map[string]any{
		"intent": string(cmd.Intent()), "step": step,
	})
	return step, nil
}

// Stats is a snapshot of the client's endpoint counters.
type Stats struct {
	// LastStep is the highest command step observed or issued.
	LastStep int64
	// Sent counts commands framed onto the wire.
	Sent int64
	// Streams holds per-kind subscriber counters.
	Streams map[types.FrameKind]channel.SubStats
}

// Stats returns a snapshot of the client's counters.
func (c *Client) Stats() Stats {
	out := Stats{
		LastStep: c.step.Load(),
		Streams:  make(map[types.FrameKind]channel.SubStats, len(c.streams)),
	}
	if c.sender != nil {
		out.Sent = c.sender.Stats().Sent
	}
	for kind, st := range c.streams {
		out.Streams[kind] = st.sub.Stats()
	}
	return out
}

// Close stops the ingest loops and releases every endpoint. Safe to
// call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()

	var err error
	for kind, st := range c.streams {
		s := st.sub.Stats()
		c.collector.AbsorbChannelStats(string(kind), s.Received, st.ingested.Load(), s.Dropped, s.Conflated)
		err = multierr.Append(err, st.sub.Close())
	}
	if c.sender != nil {
		err = multierr.Append(err, c.sender.Close())
	}

	c.logger.Info("client closed", map[string]any{"last_step": c.step.Load()})
	return err
}
