package input

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted input session.
type Scenario struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Duration    time.Duration   `yaml:"duration"`
	Unavailable time.Duration   `yaml:"unavailable"`
	Events      []ScenarioEvent `yaml:"events"`
}

type ScenarioEvent struct {
	At    time.Duration `yaml:"at"`
	Kind  string        `yaml:"kind"`
	Index int           `yaml:"index"`
	Value float64       `yaml:"value"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	for i, ev := range sc.Events {
		if _, err := ParseKind(ev.Kind); err != nil {
			return nil, fmt.Errorf("event %d: %w", i+1, err)
		}
		if ev.At < 0 {
			return nil, fmt.Errorf("event %d: negative time %v", i+1, ev.At)
		}
	}
	if sc.Duration <= 0 && len(sc.Events) > 0 {
		last := sc.Events[0].At
		for _, ev := range sc.Events {
			last = max(last, ev.At)
		}
		sc.Duration = last + time.Second
	}
	return &sc, nil
}

type timedEvent struct {
	at time.Duration
	ev Event
}

// Script replays a Scenario against a caller-supplied clock. The clock is
// read at Open to anchor the event times.
type Script struct {
	now     func() time.Time
	events  []timedEvent
	unavail time.Duration
	created time.Time
	start   time.Time
	next    int
	open    bool
	state   *State
}

func NewScript(sc *Scenario, now func() time.Time) *Script {
	events := make([]timedEvent, 0, len(sc.Events))
	for _, se := range sc.Events {
		kind, _ := ParseKind(se.Kind)
		events = append(events, timedEvent{
			at: se.At,
			ev: Event{Kind: kind, Index: se.Index, Value: se.Value},
		})
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].at < events[j].at })

	return &Script{
		now:     now,
		events:  events,
		unavail: sc.Unavailable,
		created: now(),
		state:   NewState(),
	}
}

func (s *Script) Open() error {
	now := s.now()
	if now.Sub(s.created) < s.unavail {
		return ErrDeviceUnavailable
	}
	if !s.open {
		s.open = true
		if s.start.IsZero() {
			s.start = now
		}
	}
	return nil
}

func (s *Script) Poll() []Event {
	if !s.open {
		return nil
	}
	elapsed := s.now().Sub(s.start)
	var out []Event
	for s.next < len(s.events) && s.events[s.next].at <= elapsed {
		ev := s.events[s.next].ev
		s.next++
		s.state.Apply(ev)
		out = append(out, ev)
		if ev.Kind == DeviceRemoved {
			s.open = false
			break
		}
	}
	return out
}

func (s *Script) Axis(index int) float64 { return s.state.Axis(index) }
func (s *Script) Button(index int) bool  { return s.state.Button(index) }

func (s *Script) Close() error {
	s.open = false
	return nil
}

// Done reports whether every scripted event has been delivered.
func (s *Script) Done() bool {
	return s.next >= len(s.events)
}
