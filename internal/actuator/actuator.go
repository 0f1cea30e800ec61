// Package actuator defines the boundary between the control loop and a
// dual-channel motor controller.
package actuator

import "fmt"

// Range is the symmetric integer command range accepted by SetMotor.
const Range = 2047

type Channel int

const (
	Left  Channel = 1
	Right Channel = 2
)

var Channels = [2]Channel{Left, Right}

func (c Channel) String() string {
	switch c {
	case Left:
		return "m1"
	case Right:
		return "m2"
	default:
		return fmt.Sprintf("m%d", int(c))
	}
}

// Actuator is implemented by motor controller drivers. Calls are synchronous
// and bounded in latency.
type Actuator interface {
	SetMotor(ch Channel, value int) error
	StopAll() error
	SetFreewheel(ch Channel, enabled bool) error
}

// LinkError reports a failed write to the motor controller.
type LinkError struct {
	Op      string
	Channel Channel
	Err     error
}

func (e *LinkError) Error() string {
	if e.Channel == 0 {
		return fmt.Sprintf("actuator: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("actuator: %s %s: %v", e.Op, e.Channel, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}
