package config

import "sort"

// Layout is a gamepad's axis and button numbering under the Linux joystick
// driver.
type Layout struct {
	Description string
	Axes        AxesConfig
	Buttons     ButtonsConfig
}

var Presets = map[string]Layout{
	"ps3": {
		Description: "DualShock 3 (hid-sony): left stick drives, right stick steers, L1 slow, R1 turbo, PS quits",
		Axes:        AxesConfig{Throttle: 1, Steer: 3},
		Buttons:     ButtonsConfig{Slow: 4, Turbo: 5, Freewheel: 9, Quit: 10},
	},
	"ps4": {
		Description: "DualShock 4 (hid-sony): L2 slow, R2 turbo, options freewheels, PS quits",
		Axes:        AxesConfig{Throttle: 1, Steer: 3},
		Buttons:     ButtonsConfig{Slow: 6, Turbo: 7, Freewheel: 9, Quit: 10},
	},
	"xbox": {
		Description: "Xbox 360/One (xpad): LB slow, RB turbo, start freewheels, guide quits",
		Axes:        AxesConfig{Throttle: 1, Steer: 3},
		Buttons:     ButtonsConfig{Slow: 4, Turbo: 5, Freewheel: 7, Quit: 8},
	},
}

// GetPreset returns the default configuration with the named layout
// applied, or nil when no such preset exists.
func GetPreset(name string) *Config {
	layout, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	layout.Apply(cfg)
	return cfg
}

// Apply overwrites the axis and button indices, keeping inversion flags.
func (l Layout) Apply(cfg *Config) {
	cfg.Axes.Throttle = l.Axes.Throttle
	cfg.Axes.Steer = l.Axes.Steer
	cfg.Buttons = l.Buttons
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
