//go:build sdl

// Package sdlpad reads joysticks through SDL2. It needs cgo and is only built
// with the sdl tag.
package sdlpad

import (
	"fmt"
	"runtime"

	"github.com/san-kum/robomower/internal/input"
	"github.com/veandco/go-sdl2/sdl"
)

const axisScale = 32767.0

// Pad must be opened, polled and closed from the same goroutine; Open locks
// that goroutine to its OS thread.
type Pad struct {
	index  int
	joy    *sdl.Joystick
	id     sdl.JoystickID
	inited bool
	state  *input.State
}

func New(index int) *Pad {
	return &Pad{index: index, state: input.NewState()}
}

func (p *Pad) Open() error {
	if p.joy != nil {
		return nil
	}
	if !p.inited {
		runtime.LockOSThread()
		sdl.SetHint(sdl.HINT_NO_SIGNAL_HANDLERS, "1")
		sdl.SetHint(sdl.HINT_JOYSTICK_ALLOW_BACKGROUND_EVENTS, "1")
		if err := sdl.Init(sdl.INIT_EVENTS); err != nil {
			return fmt.Errorf("sdl: %w", err)
		}
		p.inited = true
	}

	// re-initialising the subsystem rescans for hot-plugged devices
	if err := sdl.InitSubSystem(sdl.INIT_JOYSTICK); err != nil {
		return fmt.Errorf("sdl: %w", err)
	}
	if sdl.NumJoysticks() <= p.index {
		sdl.QuitSubSystem(sdl.INIT_JOYSTICK)
		return input.ErrDeviceUnavailable
	}

	joy := sdl.JoystickOpen(p.index)
	if joy == nil || !joy.Attached() {
		sdl.QuitSubSystem(sdl.INIT_JOYSTICK)
		if err := sdl.GetError(); err != nil {
			return fmt.Errorf("%w: %w", input.ErrDeviceUnavailable, err)
		}
		return input.ErrDeviceUnavailable
	}

	p.joy = joy
	p.id = joy.InstanceID()
	p.state.Reset()
	for i := 0; i < joy.NumAxes(); i++ {
		p.state.Apply(input.Axis(i, float64(joy.Axis(i))/axisScale))
	}
	for i := 0; i < joy.NumButtons(); i++ {
		if joy.Button(i) != 0 {
			p.state.Apply(input.Press(i))
		}
	}
	return nil
}

// Name is the joystick's product name, empty when not open.
func (p *Pad) Name() string {
	if p.joy == nil {
		return ""
	}
	return p.joy.Name()
}

func (p *Pad) Poll() []input.Event {
	var out []input.Event
	for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
		switch ev := ev.(type) {
		case *sdl.QuitEvent:
			out = append(out, input.Event{Kind: input.QuitRequested})

		case *sdl.JoyAxisEvent:
			if p.joy == nil || ev.Which != p.id {
				continue
			}
			e := input.Axis(int(ev.Axis), float64(ev.Value)/axisScale)
			p.state.Apply(e)
			out = append(out, p.lastAxis(e))

		case *sdl.JoyButtonEvent:
			if p.joy == nil || ev.Which != p.id {
				continue
			}
			e := input.Release(int(ev.Button))
			if ev.State == sdl.PRESSED {
				e = input.Press(int(ev.Button))
			}
			p.state.Apply(e)
			out = append(out, e)

		case *sdl.JoyDeviceRemovedEvent:
			if p.joy == nil || ev.Which != p.id {
				continue
			}
			p.release()
			out = append(out, input.Event{Kind: input.DeviceRemoved})
		}
	}
	return out
}

// lastAxis reports the clamped value the state holds.
func (p *Pad) lastAxis(e input.Event) input.Event {
	e.Value = p.state.Axis(e.Index)
	return e
}

func (p *Pad) Axis(index int) float64 { return p.state.Axis(index) }
func (p *Pad) Button(index int) bool  { return p.state.Button(index) }

func (p *Pad) Close() error {
	p.release()
	if p.inited {
		sdl.Quit()
		p.inited = false
		runtime.UnlockOSThread()
	}
	return nil
}

func (p *Pad) release() {
	if p.joy != nil {
		p.joy.Close()
		p.joy = nil
		sdl.QuitSubSystem(sdl.INIT_JOYSTICK)
	}
	p.state.Reset()
}
