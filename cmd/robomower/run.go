package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/san-kum/robomower/internal/actuator"
	"github.com/san-kum/robomower/internal/config"
	"github.com/san-kum/robomower/internal/input"
	"github.com/san-kum/robomower/internal/input/joydev"
	"github.com/san-kum/robomower/internal/input/sdlpad"
	"github.com/san-kum/robomower/internal/loop"
	"github.com/san-kum/robomower/internal/sabertooth"
	"github.com/san-kum/robomower/internal/telemetry"
	"github.com/san-kum/robomower/internal/tui"
	"github.com/spf13/cobra"
)

func runDrive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(dashboard)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver, err := openController(cfg, logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	src := newSource(cfg)
	defer src.Close()

	l, err := loop.New(cfg, src, driver, loop.WithLogger(logger))
	if err != nil {
		return err
	}
	logger.Info("starting", "backend", cfg.Input.Backend, "interval", cfg.Loop.Interval,
		"timeout", cfg.Loop.Timeout, "max_power", l.MaxPower())

	if cfg.Telemetry.Broker != "" {
		pub, err := telemetry.Dial(cfg.Telemetry, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		l.AddObserver(pub)
	}

	// nothing after this point may fail before Run takes over the stop
	if err := arm(driver); err != nil {
		return err
	}

	if !dashboard {
		return l.Run(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	dash := tui.New("r o b o m o w e r", cancel, tea.WithAltScreen())
	l.AddObserver(dash)

	errc := make(chan error, 1)
	go func() {
		errc <- l.Run(ctx)
		dash.Quit()
	}()
	if err := dash.Run(); err != nil {
		cancel()
		return errors.Join(err, <-errc)
	}
	cancel()
	return <-errc
}

type controller interface {
	actuator.Actuator
	Startup() error
}

// arm re-enables the motor outputs. A startup that fails part way is
// followed by a stop so no channel is left enabled.
func arm(c controller) error {
	if err := c.Startup(); err != nil {
		return errors.Join(err, c.StopAll())
	}
	return nil
}

func openController(cfg *config.Config, logger *log.Logger) (*sabertooth.Driver, error) {
	name := cfg.Serial.Port
	if name == "" {
		found, err := sabertooth.Discover(cfg.Serial.Product)
		if err != nil {
			return nil, err
		}
		logger.Info("found motor controller", "port", found)
		name = found
	}
	return sabertooth.Open(name, cfg.Serial.Baud, sabertooth.WithLogger(logger))
}

func newSource(cfg *config.Config) input.Source {
	if cfg.Input.Backend == "sdl" {
		return sdlpad.New(cfg.Input.Index)
	}
	return &checkedDevice{Device: joydev.New(cfg.Input.Device), cfg: cfg}
}

// checkedDevice refuses a joystick that lacks the configured axes or
// buttons.
type checkedDevice struct {
	*joydev.Device
	cfg *config.Config
}

func (d *checkedDevice) Open() error {
	if err := d.Device.Open(); err != nil {
		return err
	}
	info, err := d.Info()
	if err != nil {
		// no joystick ioctls on this node; nothing to check against
		return nil
	}
	if err := d.cfg.CheckDevice(info.Axes, info.Buttons); err != nil {
		d.Close()
		return fmt.Errorf("%s (%s): %w", d.Path(), info.Name, err)
	}
	return nil
}

func probe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(false)
	if err != nil {
		return err
	}
	defer closeLog()

	driver, err := openController(cfg, logger)
	if err != nil {
		return err
	}
	defer driver.Close()
	if err := driver.Startup(); err != nil {
		return err
	}

	temp, err := driver.Temperature(actuator.Right)
	if err != nil {
		return fmt.Errorf("temperature: %w", err)
	}
	batt, err := driver.Battery(actuator.Right)
	if err != nil {
		return fmt.Errorf("battery: %w", err)
	}
	fmt.Printf("temperature  %d\n", temp)
	fmt.Printf("battery      %d\n", batt)
	return nil
}
