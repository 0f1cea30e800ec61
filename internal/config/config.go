package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBackend       = "joydev"
	DefaultDevice        = "/dev/input/js0"
	DefaultRetryInterval = 100 * time.Millisecond
	DefaultThrottleAxis  = 1
	DefaultSteerAxis     = 3
	DefaultSlowButton    = 4
	DefaultTurboButton   = 5
	DefaultFreewheel     = 9
	DefaultQuitButton    = 10
	DefaultSlowFactor    = 0.5
	DefaultDeadband      = 0.05
	DefaultThrottleSign  = -1.0
	DefaultInterval      = 100 * time.Millisecond
	DefaultTimeout       = time.Second
	DefaultVoltageIn     = 24.0
	DefaultVoltageOut    = 24.0 * 0.95
	DefaultBaud          = 9600
	DefaultProduct       = "sabertooth"
	DefaultTopic         = "robomower/drive"
	DefaultClientID      = "robomower"

	// MaxAxis and MaxButton bound the indices a Linux joystick can report.
	MaxAxis   = 63
	MaxButton = 767
)

var ErrInvalid = errors.New("invalid configuration")

// ValidationError names the offending setting.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

type Config struct {
	Input     InputConfig     `yaml:"input"`
	Axes      AxesConfig      `yaml:"axes"`
	Buttons   ButtonsConfig   `yaml:"buttons"`
	Drive     DriveConfig     `yaml:"drive"`
	Loop      LoopConfig      `yaml:"loop"`
	Power     PowerConfig     `yaml:"power"`
	Serial    SerialConfig    `yaml:"serial"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type InputConfig struct {
	Backend       string        `yaml:"backend"`
	Device        string        `yaml:"device"`
	Index         int           `yaml:"index"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

type AxesConfig struct {
	Throttle         int  `yaml:"throttle"`
	ThrottleInverted bool `yaml:"throttle_inverted"`
	Steer            int  `yaml:"steer"`
	SteerInverted    bool `yaml:"steer_inverted"`
}

type ButtonsConfig struct {
	Slow      int `yaml:"slow"`
	Turbo     int `yaml:"turbo"`
	Freewheel int `yaml:"freewheel"`
	Quit      int `yaml:"quit"`
}

type DriveConfig struct {
	SlowFactor   float64 `yaml:"slow_factor"`
	Deadband     float64 `yaml:"deadband"`
	ThrottleSign float64 `yaml:"throttle_sign"`
}

type LoopConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

type PowerConfig struct {
	VoltageIn  float64 `yaml:"voltage_in"`
	VoltageOut float64 `yaml:"voltage_out"`
}

type SerialConfig struct {
	Port    string `yaml:"port"`
	Baud    int    `yaml:"baud"`
	Product string `yaml:"product"`
}

type TelemetryConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

func DefaultConfig() *Config {
	return &Config{
		Input: InputConfig{
			Backend:       DefaultBackend,
			Device:        DefaultDevice,
			RetryInterval: DefaultRetryInterval,
		},
		Axes: AxesConfig{
			Throttle: DefaultThrottleAxis,
			Steer:    DefaultSteerAxis,
		},
		Buttons: ButtonsConfig{
			Slow:      DefaultSlowButton,
			Turbo:     DefaultTurboButton,
			Freewheel: DefaultFreewheel,
			Quit:      DefaultQuitButton,
		},
		Drive: DriveConfig{
			SlowFactor:   DefaultSlowFactor,
			Deadband:     DefaultDeadband,
			ThrottleSign: DefaultThrottleSign,
		},
		Loop: LoopConfig{
			Interval: DefaultInterval,
			Timeout:  DefaultTimeout,
		},
		Power: PowerConfig{
			VoltageIn:  DefaultVoltageIn,
			VoltageOut: DefaultVoltageOut,
		},
		Serial: SerialConfig{
			Baud:    DefaultBaud,
			Product: DefaultProduct,
		},
		Telemetry: TelemetryConfig{
			Topic:    DefaultTopic,
			ClientID: DefaultClientID,
		},
	}
}

// Load reads a YAML file over the defaults. Fields missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// MaxPower is the fraction of battery voltage the motors may see.
func (c *Config) MaxPower() float64 {
	if c.Power.VoltageIn <= 0 {
		return 0
	}
	return min(1.0, c.Power.VoltageOut/c.Power.VoltageIn)
}

// ControlButtons is the set of buttons whose transitions count as operator
// activity.
func (c *Config) ControlButtons() []int {
	return []int{c.Buttons.Slow, c.Buttons.Turbo, c.Buttons.Freewheel, c.Buttons.Quit}
}

func (c *Config) Validate() error {
	switch c.Input.Backend {
	case "joydev":
		if c.Input.Device == "" {
			return &ValidationError{"input.device", "required for joydev backend"}
		}
	case "sdl":
		if c.Input.Index < 0 {
			return &ValidationError{"input.index", "must not be negative"}
		}
	default:
		return &ValidationError{"input.backend", fmt.Sprintf("unknown backend %q", c.Input.Backend)}
	}
	if c.Input.RetryInterval <= 0 {
		return &ValidationError{"input.retry_interval", "must be positive"}
	}

	axes := map[string]int{"axes.throttle": c.Axes.Throttle, "axes.steer": c.Axes.Steer}
	for field, idx := range axes {
		if idx < 0 || idx > MaxAxis {
			return &ValidationError{field, fmt.Sprintf("axis index %d out of range [0, %d]", idx, MaxAxis)}
		}
	}
	if c.Axes.Throttle == c.Axes.Steer {
		return &ValidationError{"axes.steer", "must differ from axes.throttle"}
	}

	buttons := []struct {
		field string
		idx   int
	}{
		{"buttons.slow", c.Buttons.Slow},
		{"buttons.turbo", c.Buttons.Turbo},
		{"buttons.freewheel", c.Buttons.Freewheel},
		{"buttons.quit", c.Buttons.Quit},
	}
	seen := make(map[int]string)
	for _, b := range buttons {
		if b.idx < 0 || b.idx > MaxButton {
			return &ValidationError{b.field, fmt.Sprintf("button index %d out of range [0, %d]", b.idx, MaxButton)}
		}
		if other, dup := seen[b.idx]; dup {
			return &ValidationError{b.field, fmt.Sprintf("button %d already assigned to %s", b.idx, other)}
		}
		seen[b.idx] = b.field
	}

	if c.Drive.SlowFactor < 0 || c.Drive.SlowFactor > 1 {
		return &ValidationError{"drive.slow_factor", "must be within [0, 1]"}
	}
	if c.Drive.Deadband < 0 || c.Drive.Deadband >= 1 {
		return &ValidationError{"drive.deadband", "must be within [0, 1)"}
	}
	if c.Drive.ThrottleSign != -1 && c.Drive.ThrottleSign != 1 {
		return &ValidationError{"drive.throttle_sign", "must be -1 or 1"}
	}

	if c.Loop.Interval <= 0 {
		return &ValidationError{"loop.interval", "must be positive"}
	}
	if c.Loop.Timeout < c.Loop.Interval {
		return &ValidationError{"loop.timeout", "must be at least one loop interval"}
	}

	if c.Power.VoltageIn <= 0 {
		return &ValidationError{"power.voltage_in", "must be positive"}
	}
	if c.Power.VoltageOut <= 0 {
		return &ValidationError{"power.voltage_out", "must be positive"}
	}

	if c.Serial.Baud <= 0 {
		return &ValidationError{"serial.baud", "must be positive"}
	}
	if c.Telemetry.Broker != "" && c.Telemetry.Topic == "" {
		return &ValidationError{"telemetry.topic", "required when a broker is set"}
	}
	return nil
}

// CheckDevice validates the configured indices against what the opened
// device reports.
func (c *Config) CheckDevice(axes, buttons int) error {
	if c.Axes.Throttle >= axes {
		return &ValidationError{"axes.throttle", fmt.Sprintf("device has %d axes", axes)}
	}
	if c.Axes.Steer >= axes {
		return &ValidationError{"axes.steer", fmt.Sprintf("device has %d axes", axes)}
	}
	for i, idx := range c.ControlButtons() {
		if idx >= buttons {
			field := [...]string{"buttons.slow", "buttons.turbo", "buttons.freewheel", "buttons.quit"}[i]
			return &ValidationError{field, fmt.Sprintf("device has %d buttons", buttons)}
		}
	}
	return nil
}
