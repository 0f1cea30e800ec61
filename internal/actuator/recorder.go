package actuator

import "fmt"

type CallKind int

const (
	CallMotor CallKind = iota
	CallStop
	CallFreewheel
)

type Call struct {
	Kind    CallKind
	Channel Channel
	Value   int
	Enabled bool
}

func (c Call) String() string {
	switch c.Kind {
	case CallMotor:
		return fmt.Sprintf("%s:%d", c.Channel, c.Value)
	case CallFreewheel:
		if c.Enabled {
			return fmt.Sprintf("freewheel %s on", c.Channel)
		}
		return fmt.Sprintf("freewheel %s off", c.Channel)
	default:
		return "stop"
	}
}

// Recorder is an in-memory Actuator that keeps every call. Fail, when set,
// is consulted before each call and its error is returned without recording.
type Recorder struct {
	Calls  []Call
	Fail   func(Call) error
	motors [2]int
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) SetMotor(ch Channel, value int) error {
	call := Call{Kind: CallMotor, Channel: ch, Value: value}
	if err := r.fail(call); err != nil {
		return &LinkError{Op: "set motor", Channel: ch, Err: err}
	}
	r.Calls = append(r.Calls, call)
	if ch == Left || ch == Right {
		r.motors[ch-1] = value
	}
	return nil
}

func (r *Recorder) StopAll() error {
	call := Call{Kind: CallStop}
	if err := r.fail(call); err != nil {
		return &LinkError{Op: "stop", Err: err}
	}
	r.Calls = append(r.Calls, call)
	r.motors = [2]int{}
	return nil
}

func (r *Recorder) SetFreewheel(ch Channel, enabled bool) error {
	call := Call{Kind: CallFreewheel, Channel: ch, Enabled: enabled}
	if err := r.fail(call); err != nil {
		return &LinkError{Op: "freewheel", Channel: ch, Err: err}
	}
	r.Calls = append(r.Calls, call)
	return nil
}

func (r *Recorder) fail(c Call) error {
	if r.Fail == nil {
		return nil
	}
	return r.Fail(c)
}

// Motor returns the last value written to ch, zero after a stop.
func (r *Recorder) Motor(ch Channel) int {
	if ch != Left && ch != Right {
		return 0
	}
	return r.motors[ch-1]
}

func (r *Recorder) Count(kind CallKind) int {
	n := 0
	for _, c := range r.Calls {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

func (r *Recorder) MotorCalls(ch Channel) []int {
	var values []int
	for _, c := range r.Calls {
		if c.Kind == CallMotor && c.Channel == ch {
			values = append(values, c.Value)
		}
	}
	return values
}

func (r *Recorder) Reset() {
	r.Calls = nil
}
