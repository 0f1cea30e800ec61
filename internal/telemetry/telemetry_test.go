package telemetry

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/san-kum/robomower/internal/drive"
	"github.com/san-kum/robomower/internal/input"
	"github.com/san-kum/robomower/internal/loop"
	"github.com/san-kum/robomower/internal/watchdog"
)

type doneToken struct {
	done chan struct{}
	err  error
}

func newToken(err error) *doneToken {
	t := &doneToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{}          { return t.done }
func (t *doneToken) Error() error                   { return t.err }

type fakeClient struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
	c.payloads = append(c.payloads, payload.([]byte))
	return newToken(nil)
}

func sampleReport() loop.Report {
	return loop.Report{
		Tick:     7,
		Time:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Events:   []input.Event{input.Axis(1, -1)},
		Command:  drive.Command{Left: -0.95, Right: -0.95},
		Values:   [2]int{-1944, -1944},
		Watchdog: watchdog.Active,
	}
}

func TestNewMessage(t *testing.T) {
	m := NewMessage(sampleReport())
	if m.Tick != 7 || m.M1 != -1944 || m.M2 != -1944 {
		t.Errorf("unexpected message %+v", m)
	}
	if m.Watchdog != "active" {
		t.Errorf("expected watchdog active, got %q", m.Watchdog)
	}
	if m.Events != 1 {
		t.Errorf("expected 1 event, got %d", m.Events)
	}
}

func TestPublisherOnTick(t *testing.T) {
	c := &fakeClient{}
	p := New(c, "robomower/drive", nil)

	p.OnTick(sampleReport())

	if len(c.payloads) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(c.payloads))
	}
	if c.topics[0] != "robomower/drive" {
		t.Errorf("unexpected topic %q", c.topics[0])
	}

	var got Message
	if err := json.Unmarshal(c.payloads[0], &got); err != nil {
		t.Fatal(err)
	}
	if got.Left != -0.95 || got.Right != -0.95 {
		t.Errorf("unexpected command (%v, %v)", got.Left, got.Right)
	}
	if !got.Time.Equal(sampleReport().Time) {
		t.Errorf("unexpected time %v", got.Time)
	}
}

var _ loop.Observer = (*Publisher)(nil)
