package input

import "errors"

var (
	// ErrDeviceUnavailable indicates no input device could be opened. Callers
	// retry with a backoff.
	ErrDeviceUnavailable = errors.New("input: device unavailable")

	ErrNotOpen = errors.New("input: source not open")
)

type Source interface {
	Open() error
	Poll() []Event
	Axis(index int) float64
	Button(index int) bool
	Close() error
}

// State is the most recent axis and button snapshot of a device.
type State struct {
	axes    map[int]float64
	buttons map[int]bool
}

func NewState() *State {
	return &State{
		axes:    make(map[int]float64),
		buttons: make(map[int]bool),
	}
}

func (s *State) Apply(ev Event) {
	switch ev.Kind {
	case AxisMoved:
		s.axes[ev.Index] = clampUnit(ev.Value)
	case ButtonDown:
		s.buttons[ev.Index] = true
	case ButtonUp:
		delete(s.buttons, ev.Index)
	case DeviceRemoved:
		s.Reset()
	}
}

func (s *State) Axis(index int) float64 { return s.axes[index] }
func (s *State) Button(index int) bool  { return s.buttons[index] }

func (s *State) Reset() {
	clear(s.axes)
	clear(s.buttons)
}

func clampUnit(v float64) float64 {
	return min(max(v, -1), 1)
}
