package loop_test

import (
	"github.com/san-kum/robomower/internal/input"
)

// fakeSource hands out queued events on the next Poll. Hidden events are
// applied to the state on the next Poll without being reported, the way a
// joystick replays its initial state.
type fakeSource struct {
	state   *input.State
	queue   []input.Event
	hidden  []input.Event
	openErr []error
	opens   int
	open    bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{state: input.NewState()}
}

func (f *fakeSource) Open() error {
	f.opens++
	if len(f.openErr) > 0 {
		err := f.openErr[0]
		f.openErr = f.openErr[1:]
		if err != nil {
			return err
		}
	}
	f.open = true
	return nil
}

func (f *fakeSource) Poll() []input.Event {
	for _, ev := range f.hidden {
		f.state.Apply(ev)
	}
	f.hidden = nil

	evs := f.queue
	f.queue = nil
	for _, ev := range evs {
		f.state.Apply(ev)
		if ev.Kind == input.DeviceRemoved {
			f.open = false
		}
	}
	return evs
}

func (f *fakeSource) push(evs ...input.Event) { f.queue = append(f.queue, evs...) }
func (f *fakeSource) hide(evs ...input.Event) { f.hidden = append(f.hidden, evs...) }

func (f *fakeSource) Axis(index int) float64 { return f.state.Axis(index) }
func (f *fakeSource) Button(index int) bool  { return f.state.Button(index) }

func (f *fakeSource) Close() error {
	f.open = false
	return nil
}
