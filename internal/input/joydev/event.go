// Package joydev reads the Linux joystick API (/dev/input/js*).
package joydev

import (
	"encoding/binary"

	"github.com/san-kum/robomower/internal/input"
)

// js_event as defined in linux/joystick.h.
const (
	eventSize   = 8
	eventButton = 0x01
	eventAxis   = 0x02
	eventInit   = 0x80

	axisScale = 32767.0
)

type rawEvent struct {
	Time   uint32
	Value  int16
	Type   uint8
	Number uint8
}

func parseRaw(b []byte) rawEvent {
	return rawEvent{
		Time:   binary.LittleEndian.Uint32(b[0:4]),
		Value:  int16(binary.LittleEndian.Uint16(b[4:6])),
		Type:   b[6],
		Number: b[7],
	}
}

// decode converts a raw record. synthetic is true for the initial-state
// records the kernel emits right after open.
func decode(b []byte) (ev input.Event, synthetic bool, ok bool) {
	raw := parseRaw(b)
	synthetic = raw.Type&eventInit != 0

	switch raw.Type &^ eventInit {
	case eventAxis:
		v := float64(raw.Value) / axisScale
		return input.Axis(int(raw.Number), min(max(v, -1), 1)), synthetic, true
	case eventButton:
		if raw.Value != 0 {
			return input.Press(int(raw.Number)), synthetic, true
		}
		return input.Release(int(raw.Number)), synthetic, true
	default:
		return input.Event{}, synthetic, false
	}
}

func encode(raw rawEvent) []byte {
	b := make([]byte, eventSize)
	binary.LittleEndian.PutUint32(b[0:4], raw.Time)
	binary.LittleEndian.PutUint16(b[4:6], uint16(raw.Value))
	b[6] = raw.Type
	b[7] = raw.Number
	return b
}
