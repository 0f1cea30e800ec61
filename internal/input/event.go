package input

import "fmt"

type Kind int

const (
	AxisMoved Kind = iota
	ButtonDown
	ButtonUp
	DeviceRemoved
	QuitRequested
)

var kindNames = map[Kind]string{
	AxisMoved:     "axis",
	ButtonDown:    "button_down",
	ButtonUp:      "button_up",
	DeviceRemoved: "removed",
	QuitRequested: "quit",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind: %s", s)
}

type Event struct {
	Kind  Kind
	Index int
	Value float64
}

func Axis(index int, value float64) Event {
	return Event{Kind: AxisMoved, Index: index, Value: value}
}

func Press(index int) Event {
	return Event{Kind: ButtonDown, Index: index}
}

func Release(index int) Event {
	return Event{Kind: ButtonUp, Index: index}
}

func (e Event) String() string {
	switch e.Kind {
	case AxisMoved:
		return fmt.Sprintf("axis %d = %+.3f", e.Index, e.Value)
	case ButtonDown, ButtonUp:
		return fmt.Sprintf("%s %d", e.Kind, e.Index)
	default:
		return e.Kind.String()
	}
}
