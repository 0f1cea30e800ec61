//go:build !linux

package joydev

import (
	"errors"
	"fmt"

	"github.com/san-kum/robomower/internal/input"
)

var errUnsupported = errors.New("joydev: only supported on linux")

type Info struct {
	Name    string
	Axes    int
	Buttons int
}

type Device struct {
	path  string
	state *input.State
}

func New(path string) *Device {
	return &Device{path: path, state: input.NewState()}
}

func (d *Device) Path() string { return d.path }

func (d *Device) Open() error {
	return fmt.Errorf("%w: %w", input.ErrDeviceUnavailable, errUnsupported)
}

func (d *Device) Poll() []input.Event    { return nil }
func (d *Device) Axis(index int) float64 { return d.state.Axis(index) }
func (d *Device) Button(index int) bool  { return d.state.Button(index) }
func (d *Device) Info() (Info, error)    { return Info{}, errUnsupported }
func (d *Device) Close() error           { return nil }
