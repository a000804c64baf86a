package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config represents a stretch.yaml configuration file shared by the
// robot daemon (stretchd) and the remote client (stretch). All values
// have working defaults; CLI flags always override config values.
type Config struct {
	Codec    string         `yaml:"codec"`
	Log      LogConfig      `yaml:"log"`
	Channels ChannelsConfig `yaml:"channels"`
	Robot    RobotConfig    `yaml:"robot"`
	Client   ClientConfig   `yaml:"client"`
	Task     TaskConfig     `yaml:"task"`
	Maps     MapsConfig     `yaml:"maps"`
}

// LogConfig holds logging defaults. File enables rotated file output
// in addition to stderr; only the daemon uses it.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
}

// ChannelConfig is one channel's contract: the port it binds on and
// the queue policy applied per subscriber.
type ChannelConfig struct {
	Port   int    `yaml:"port"`
	Policy string `yaml:"policy"`
}

// Endpoint joins a host with the channel's port into a dial/bind address.
func (c ChannelConfig) Endpoint(host string) string {
	return net.JoinHostPort(host, strconv.Itoa(c.Port))
}

// ChannelsConfig names the four channels both processes agree on.
// Telemetry channels default to conflated; the command channel keeps
// a bounded FIFO so bursts of distinct intents are not lost.
type ChannelsConfig struct {
	Observation ChannelConfig `yaml:"observation"`
	FastState   ChannelConfig `yaml:"fast_state"`
	Servo       ChannelConfig `yaml:"servo"`
	Command     ChannelConfig `yaml:"command"`
}

// RobotConfig holds daemon-side settings: bind host, loop rates, and
// image transform parameters.
type RobotConfig struct {
	Host         string      `yaml:"host"`
	Rates        RatesConfig `yaml:"rates"`
	Image        ImageConfig `yaml:"image"`
	WriteTimeout Duration    `yaml:"write_timeout,omitempty"`
}

// RatesConfig sets target frequencies for the three telemetry loops.
type RatesConfig struct {
	ObservationHz float64 `yaml:"observation_hz"`
	FastStateHz   float64 `yaml:"fast_state_hz"`
	ServoHz       float64 `yaml:"servo_hz"`
}

// Interval converts a rate in Hz to a ticker interval.
func Interval(hz float64) time.Duration {
	if hz <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / hz)
}

// ImageConfig holds bandwidth-bounding transform parameters. Scaling
// factors shrink camera images before compression; intrinsics are
// rescaled by the same factor. DepthScaling converts encoded uint16
// depth back to meters.
type ImageConfig struct {
	Scaling      float64 `yaml:"scaling"`
	EEScaling    float64 `yaml:"ee_scaling"`
	DepthScaling float64 `yaml:"depth_scaling"`
	JPEGQuality  int     `yaml:"jpeg_quality"`
}

// ClientConfig holds remote-side settings: where the robot is, how to
// dial, and the blocking-wait parameters.
type ClientConfig struct {
	RobotHost  string           `yaml:"robot_host"`
	Dial       DialConfig       `yaml:"dial"`
	Wait       WaitConfig       `yaml:"wait"`
	Trajectory TrajectoryConfig `yaml:"trajectory"`
}

// DialConfig bounds connection establishment.
type DialConfig struct {
	Timeout     Duration `yaml:"timeout"`
	MaxRetries  int      `yaml:"max_retries"`
	BackoffUnit Duration `yaml:"backoff_unit"`
}

// WaitConfig parameterizes the blocking helpers. A motion is settled
// when every velocity stays below MovingThreshold (AngleThreshold for
// the base heading) for MinStepsNotMoving consecutive polls.
type WaitConfig struct {
	ModeTimeout       Duration `yaml:"mode_timeout"`
	ActionTimeout     Duration `yaml:"action_timeout"`
	PollInterval      Duration `yaml:"poll_interval"`
	SettleTime        Duration `yaml:"settle_time"`
	MovingThreshold   float64  `yaml:"moving_threshold"`
	AngleThreshold    float64  `yaml:"angle_threshold"`
	MinStepsNotMoving int      `yaml:"min_steps_not_moving"`
}

// TrajectoryConfig parameterizes per-waypoint trajectory execution.
type TrajectoryConfig struct {
	PosErr          float64  `yaml:"pos_err"`
	RotErr          float64  `yaml:"rot_err"`
	PollInterval    Duration `yaml:"poll_interval"`
	WaypointTimeout Duration `yaml:"waypoint_timeout"`
}

// TaskConfig holds task-engine policy knobs.
type TaskConfig struct {
	MaxAttempts            int     `yaml:"max_attempts"`
	InPlaceRotationSteps   int     `yaml:"in_place_rotation_steps"`
	GraspDistanceThreshold float64 `yaml:"grasp_distance_threshold"`
}

// MapsConfig selects and parameterizes the map persistence backend.
type MapsConfig struct {
	Backend     string   `yaml:"backend"`
	Path        string   `yaml:"path,omitempty"`
	URL         string   `yaml:"url,omitempty"`
	Bucket      string   `yaml:"bucket,omitempty"`
	Prefix      string   `yaml:"prefix,omitempty"`
	Region      string   `yaml:"region,omitempty"`
	Endpoint    string   `yaml:"endpoint,omitempty"`
	S3PathStyle bool     `yaml:"s3_path_style,omitempty"`
	ChunkSize   int      `yaml:"chunk_size,omitempty"`
	OpTimeout   Duration `yaml:"op_timeout,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration as a string so round-trips parse.
func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// Default returns the built-in configuration. Wait and trajectory
// thresholds match the robot's stock tuning; channels use the
// conventional 4401-4404 port block.
func Default() *Config {
	return &Config{
		Codec: "msgpack",
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		Channels: ChannelsConfig{
			Observation: ChannelConfig{Port: 4401, Policy: "conflated"},
			Command:     ChannelConfig{Port: 4402, Policy: "bounded(32)"},
			FastState:   ChannelConfig{Port: 4403, Policy: "conflated"},
			Servo:       ChannelConfig{Port: 4404, Policy: "conflated"},
		},
		Robot: RobotConfig{
			Host: "0.0.0.0",
			Rates: RatesConfig{
				ObservationHz: 10,
				FastStateHz:   50,
				ServoHz:       15,
			},
			Image: ImageConfig{
				Scaling:      0.5,
				EEScaling:    0.5,
				DepthScaling: 0.001,
				JPEGQuality:  90,
			},
			WriteTimeout: Duration{2 * time.Second},
		},
		Client: ClientConfig{
			RobotHost: "127.0.0.1",
			Dial: DialConfig{
				Timeout:     Duration{5 * time.Second},
				MaxRetries:  3,
				BackoffUnit: Duration{500 * time.Millisecond},
			},
			Wait: WaitConfig{
				ModeTimeout:       Duration{5 * time.Second},
				ActionTimeout:     Duration{15 * time.Second},
				PollInterval:      Duration{100 * time.Millisecond},
				SettleTime:        Duration{200 * time.Millisecond},
				MovingThreshold:   1e-4,
				AngleThreshold:    1e-4,
				MinStepsNotMoving: 1,
			},
			Trajectory: TrajectoryConfig{
				PosErr:          0.2,
				RotErr:          0.75,
				PollInterval:    Duration{100 * time.Millisecond},
				WaypointTimeout: Duration{10 * time.Second},
			},
		},
		Task: TaskConfig{
			MaxAttempts:            3,
			InPlaceRotationSteps:   8,
			GraspDistanceThreshold: 0.75,
		},
		Maps: MapsConfig{
			Backend:   "file",
			Path:      "./maps",
			ChunkSize: 1 << 20,
			OpTimeout: Duration{10 * time.Second},
		},
	}
}

// Validate checks cross-field consistency. Policies and codec names
// are validated by their owning packages at construction time; this
// catches the rest before either process starts.
func (c *Config) Validate() error {
	switch c.Codec {
	case "msgpack", "cbor", "json":
	default:
		return fmt.Errorf("unknown codec %q", c.Codec)
	}

	for _, ch := range []struct {
		name string
		cfg  ChannelConfig
	}{
		{"observation", c.Channels.Observation},
		{"fast_state", c.Channels.FastState},
		{"servo", c.Channels.Servo},
		{"command", c.Channels.Command},
	} {
		if ch.cfg.Port < 1 || ch.cfg.Port > 65535 {
			return fmt.Errorf("channel %s: port %d out of range", ch.name, ch.cfg.Port)
		}
		if ch.cfg.Policy == "" {
			return fmt.Errorf("channel %s: policy required", ch.name)
		}
	}

	r := c.Robot.Rates
	if r.ObservationHz <= 0 || r.FastStateHz <= 0 || r.ServoHz <= 0 {
		return fmt.Errorf("robot rates must be positive, got obs=%.1f fast=%.1f servo=%.1f",
			r.ObservationHz, r.FastStateHz, r.ServoHz)
	}
	img := c.Robot.Image
	if img.Scaling <= 0 || img.Scaling > 1 || img.EEScaling <= 0 || img.EEScaling > 1 {
		return fmt.Errorf("image scaling factors must be in (0, 1]")
	}
	if img.JPEGQuality < 1 || img.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be in [1, 100], got %d", img.JPEGQuality)
	}

	w := c.Client.Wait
	if w.ModeTimeout.Duration <= 0 || w.ActionTimeout.Duration <= 0 || w.PollInterval.Duration <= 0 {
		return fmt.Errorf("client wait timeouts must be positive")
	}
	if w.MinStepsNotMoving < 1 {
		return fmt.Errorf("min_steps_not_moving must be >= 1, got %d", w.MinStepsNotMoving)
	}

	if c.Task.MaxAttempts < 1 {
		return fmt.Errorf("task max_attempts must be >= 1, got %d", c.Task.MaxAttempts)
	}
	if c.Task.InPlaceRotationSteps < 1 {
		return fmt.Errorf("task in_place_rotation_steps must be >= 1, got %d", c.Task.InPlaceRotationSteps)
	}

	switch c.Maps.Backend {
	case "file", "redis", "s3", "":
	default:
		return fmt.Errorf("unknown maps backend %q", c.Maps.Backend)
	}
	if c.Maps.ChunkSize < 0 {
		return fmt.Errorf("maps chunk_size must be >= 0, got %d", c.Maps.ChunkSize)
	}

	return nil
}
