//go:build linux

package joydev

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/robomower/internal/input"
	"golang.org/x/sys/unix"
)

func TestOpenMissing(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), "js9"))
	err := d.Open()
	if !errors.Is(err, input.ErrDeviceUnavailable) {
		t.Fatalf("expected device unavailable, got %v", err)
	}
	if d.Poll() != nil {
		t.Error("closed device should not produce events")
	}
}

func TestPollFromFIFO(t *testing.T) {
	path := filepath.Join(t.TempDir(), "js0")
	if err := unix.Mkfifo(path, 0600); err != nil {
		t.Skipf("mkfifo: %v", err)
	}

	d := New(path)
	if err := d.Open(); err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	w, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if evs := d.Poll(); len(evs) != 0 {
		t.Fatalf("expected no events yet, got %v", evs)
	}

	var data []byte
	data = append(data, encode(rawEvent{Type: eventAxis | eventInit, Number: 1, Value: 16384})...)
	data = append(data, encode(rawEvent{Type: eventButton, Number: 5, Value: 1})...)
	data = append(data, encode(rawEvent{Type: eventAxis, Number: 3, Value: -32767})...)
	// split the last record across two writes
	last := encode(rawEvent{Type: eventButton, Number: 5, Value: 0})
	data = append(data, last[:3]...)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}

	evs := d.Poll()
	if len(evs) != 2 {
		t.Fatalf("expected 2 events (init suppressed), got %v", evs)
	}
	if evs[0] != input.Press(5) || evs[1] != input.Axis(3, -1) {
		t.Errorf("unexpected events %v", evs)
	}
	if d.Axis(1) < 0.49 || d.Axis(1) > 0.51 {
		t.Errorf("init record should seed state, got %f", d.Axis(1))
	}
	if !d.Button(5) {
		t.Error("button 5 should be held")
	}

	if _, err := w.Write(last[3:]); err != nil {
		t.Fatal(err)
	}
	evs = d.Poll()
	if len(evs) != 1 || evs[0] != input.Release(5) {
		t.Fatalf("expected release, got %v", evs)
	}
}
