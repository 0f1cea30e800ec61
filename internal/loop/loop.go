package loop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/san-kum/robomower/internal/actuator"
	"github.com/san-kum/robomower/internal/config"
	"github.com/san-kum/robomower/internal/drive"
	"github.com/san-kum/robomower/internal/input"
	"github.com/san-kum/robomower/internal/watchdog"
)

const haltAttempts = 3

type Loop struct {
	cfg      *config.Config
	src      input.Source
	act      actuator.Actuator
	mapper   drive.Mapper
	dog      *watchdog.Watchdog
	clock    Clock
	log      *log.Logger
	maxPower float64
	control  map[int]bool

	observers []Observer

	connected   bool
	halted      bool
	haltErr     error
	stopPending bool
	seedPrev    bool
	freewheel   bool
	last        [2]int
	prev        map[int]bool
	tick        int
}

type Option func(*Loop)

func WithClock(c Clock) Option { return func(l *Loop) { l.clock = c } }

func WithLogger(lg *log.Logger) Option { return func(l *Loop) { l.log = lg } }

func WithMapper(m drive.Mapper) Option { return func(l *Loop) { l.mapper = m } }

// New builds a loop around owned handles. The configuration must already be
// valid; New reports an error otherwise so nothing starts half-configured.
func New(cfg *config.Config, src input.Source, act actuator.Actuator, opts ...Option) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil || act == nil {
		return nil, errors.New("loop: input source and actuator are required")
	}

	l := &Loop{
		cfg: cfg,
		src: src,
		act: act,
		mapper: drive.Mapper{
			SlowFactor:   cfg.Drive.SlowFactor,
			Deadband:     cfg.Drive.Deadband,
			TurboSteer:   drive.DefaultTurboSteer,
			ThrottleSign: cfg.Drive.ThrottleSign,
		},
		dog:      watchdog.New(cfg.Loop.Timeout),
		clock:    wallClock{},
		log:      log.New(io.Discard),
		maxPower: cfg.MaxPower(),
		control:  make(map[int]bool),
		prev:     make(map[int]bool),
	}
	for _, b := range cfg.ControlButtons() {
		l.control[b] = true
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *Loop) AddObserver(o Observer) { l.observers = append(l.observers, o) }

func (l *Loop) Watchdog() watchdog.State { return l.dog.State() }
func (l *Loop) Freewheel() bool          { return l.freewheel }
func (l *Loop) Values() [2]int           { return l.last }
func (l *Loop) Connected() bool          { return l.connected }
func (l *Loop) Halted() bool             { return l.halted }
func (l *Loop) MaxPower() float64        { return l.maxPower }

// Run ticks until the operator quits or ctx is cancelled. Cancellation is
// the operator-abort path and is not reported as an error. The motors are
// stopped before Run returns on every path, including a panic; a stop that
// never lands is returned as an error.
func (l *Loop) Run(ctx context.Context) (err error) {
	defer func() {
		if !l.halted {
			l.halt("shutdown")
		}
		if l.haltErr != nil {
			err = errors.Join(err, l.haltErr)
		}
	}()

	interval := l.cfg.Loop.Interval
	for {
		if !l.connected {
			if err := l.Acquire(ctx); err != nil {
				return exitErr(err)
			}
		}

		next := l.clock.Now()
		for l.connected {
			if l.Tick(l.clock.Now()) {
				return nil
			}

			next = next.Add(interval)
			now := l.clock.Now()
			if now.After(next) {
				l.log.Debug("tick overran", "by", now.Sub(next))
				next = now
			}
			if err := l.clock.Sleep(ctx, next.Sub(now)); err != nil {
				return exitErr(err)
			}
		}
	}
}

func exitErr(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Acquire opens the input source, retrying at the configured interval while
// the device is absent.
func (l *Loop) Acquire(ctx context.Context) error {
	waiting := false
	for {
		err := l.src.Open()
		if err == nil {
			break
		}
		if !errors.Is(err, input.ErrDeviceUnavailable) {
			return fmt.Errorf("open input: %w", err)
		}
		if !waiting {
			l.log.Info("waiting for input device", "retry", l.cfg.Input.RetryInterval)
			waiting = true
		} else {
			l.log.Debug("input device still unavailable", "err", err)
		}
		if err := l.clock.Sleep(ctx, l.cfg.Input.RetryInterval); err != nil {
			return err
		}
	}

	l.connected = true
	clear(l.prev)
	l.seedPrev = true
	l.log.Info("input device acquired")
	return nil
}

// Tick runs one control cycle at time now and reports whether the loop
// should terminate.
func (l *Loop) Tick(now time.Time) bool {
	l.tick++
	events := l.src.Poll()

	qualifying := false
	quit := false
	removed := false
	pressed := make(map[int]bool)
	for _, ev := range events {
		switch ev.Kind {
		case input.AxisMoved:
			qualifying = true
		case input.ButtonDown:
			pressed[ev.Index] = true
			qualifying = qualifying || l.control[ev.Index]
		case input.ButtonUp:
			qualifying = qualifying || l.control[ev.Index]
		case input.DeviceRemoved:
			removed = true
		case input.QuitRequested:
			quit = true
		}
	}

	// Buttons already held when the device opened only show up in the
	// state after the first poll and must not count as presses.
	if l.seedPrev {
		for b := range l.control {
			l.prev[b] = l.src.Button(b)
		}
		l.seedPrev = false
	}

	if l.stopPending {
		l.stop()
	}

	if qualifying {
		if l.dog.Stopped() {
			l.log.Debug("input resumed")
		}
		l.dog.Observe(now)
	} else if l.dog.Check(now) {
		l.log.Warn("no input events, stopping", "timeout", l.dog.Timeout())
		l.stop()
	}

	if quit || l.rising(l.cfg.Buttons.Quit, pressed) {
		l.log.Info("quit requested")
		l.halt("quit")
		l.notify(now, events, drive.Command{})
		return true
	}

	if removed {
		l.log.Warn("input device removed, stopping")
		l.stop()
		l.dog.Trip()
		l.connected = false
		l.notify(now, events, drive.Command{})
		return false
	}

	if l.rising(l.cfg.Buttons.Freewheel, pressed) {
		l.toggleFreewheel()
	}
	for b := range l.control {
		l.prev[b] = l.src.Button(b)
	}

	var cmd drive.Command
	if !l.dog.Stopped() && !l.freewheel && !l.stopPending {
		cmd = l.compute()
		l.dispatch(cmd)
	}

	l.notify(now, events, cmd)
	return false
}

// rising reports a press of button b since the previous tick, either seen
// as an event or as a held state that was not held before.
func (l *Loop) rising(b int, pressed map[int]bool) bool {
	return pressed[b] || (l.src.Button(b) && !l.prev[b])
}

func (l *Loop) compute() drive.Command {
	throttle := l.src.Axis(l.cfg.Axes.Throttle)
	if l.cfg.Axes.ThrottleInverted {
		throttle = -throttle
	}
	steer := l.src.Axis(l.cfg.Axes.Steer)
	if l.cfg.Axes.SteerInverted {
		steer = -steer
	}
	turbo := l.src.Button(l.cfg.Buttons.Turbo)
	slow := l.src.Button(l.cfg.Buttons.Slow)

	return l.mapper.Compute(throttle, steer, turbo, slow).Scale(l.maxPower)
}

// dispatch writes each channel whose quantized value changed. A failed
// write leaves the recorded value alone so the next tick retries it.
func (l *Loop) dispatch(cmd drive.Command) {
	values := [2]int{
		drive.Quantize(cmd.Left, actuator.Range),
		drive.Quantize(cmd.Right, actuator.Range),
	}
	for i, ch := range actuator.Channels {
		if values[i] == l.last[i] {
			continue
		}
		if err := l.act.SetMotor(ch, values[i]); err != nil {
			l.log.Warn("motor write failed", "channel", ch, "value", values[i], "err", err)
			continue
		}
		l.last[i] = values[i]
	}
}

func (l *Loop) toggleFreewheel() {
	l.freewheel = !l.freewheel
	l.log.Info("freewheel", "enabled", l.freewheel)

	for _, ch := range actuator.Channels {
		if err := l.act.SetMotor(ch, 0); err != nil {
			l.log.Warn("motor write failed", "channel", ch, "value", 0, "err", err)
		}
	}
	for _, ch := range actuator.Channels {
		if err := l.act.SetFreewheel(ch, l.freewheel); err != nil {
			l.log.Warn("freewheel write failed", "channel", ch, "err", err)
		}
	}
	l.last = [2]int{}
}

// stop commands both motors to zero. On a link failure the stop is retried
// every tick and drive dispatch stays suppressed until it succeeds.
func (l *Loop) stop() {
	if err := l.act.StopAll(); err != nil {
		l.log.Error("stop failed", "err", err)
		l.stopPending = true
		return
	}
	l.stopPending = false
	l.last = [2]int{}
}

// halt makes the final stop, retrying a few times before giving up.
func (l *Loop) halt(reason string) error {
	l.halted = true
	var err error
	for attempt := 0; attempt < haltAttempts; attempt++ {
		if err = l.act.StopAll(); err == nil {
			l.stopPending = false
			l.last = [2]int{}
			l.log.Info("motors stopped", "reason", reason)
			return nil
		}
		l.log.Error("stop failed", "reason", reason, "err", err)
	}
	l.stopPending = true
	l.haltErr = fmt.Errorf("stop motors on %s: %w", reason, err)
	return l.haltErr
}

func (l *Loop) notify(now time.Time, events []input.Event, cmd drive.Command) {
	if len(l.observers) == 0 {
		return
	}
	r := Report{
		Tick:      l.tick,
		Time:      now,
		Events:    events,
		Command:   cmd,
		Values:    l.last,
		Watchdog:  l.dog.State(),
		Freewheel: l.freewheel,
		Halted:    l.halted,
	}
	for _, o := range l.observers {
		o.OnTick(r)
	}
}
