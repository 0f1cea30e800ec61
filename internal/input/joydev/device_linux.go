//go:build linux

package joydev

import (
	"errors"
	"fmt"
	"time"
	"unsafe"

	"github.com/san-kum/robomower/internal/input"
	"golang.org/x/sys/unix"
)

const (
	jsiocgaxes    = 0x80016a11
	jsiocgbuttons = 0x80016a12
	jsiocgname    = 0x80006a13 + (128 << 16)
)

const (
	openAttempts    = 5
	permissionDelay = 200 * time.Millisecond
	readBatch       = 64
)

type Info struct {
	Name    string
	Axes    int
	Buttons int
}

// Device is a non-blocking reader for one joystick node.
type Device struct {
	path    string
	fd      int
	open    bool
	state   *input.State
	buf     []byte
	pending []byte
}

func New(path string) *Device {
	return &Device{
		path:  path,
		fd:    -1,
		state: input.NewState(),
		buf:   make([]byte, eventSize*readBatch),
	}
}

func (d *Device) Path() string { return d.path }

// Open acquires the device node. A freshly plugged device may briefly be
// unreadable while udev applies permissions, so EACCES is retried.
func (d *Device) Open() error {
	if d.open {
		return nil
	}

	var fd int
	var err error
	for i := 0; i < openAttempts; i++ {
		fd, err = unix.Open(d.path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
		if errors.Is(err, unix.EACCES) && i < openAttempts-1 {
			time.Sleep(permissionDelay)
			continue
		}
		break
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", input.ErrDeviceUnavailable, d.path, err)
	}

	d.fd = fd
	d.open = true
	d.pending = d.pending[:0]
	d.state.Reset()
	return nil
}

func (d *Device) Poll() []input.Event {
	if !d.open {
		return nil
	}

	var out []input.Event
	for {
		n, err := unix.Read(d.fd, d.buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				break
			}
			d.drop()
			out = append(out, input.Event{Kind: input.DeviceRemoved})
			return out
		}
		if n <= 0 {
			break
		}

		d.pending = append(d.pending, d.buf[:n]...)
		for len(d.pending) >= eventSize {
			ev, synthetic, ok := decode(d.pending[:eventSize])
			d.pending = d.pending[eventSize:]
			if !ok {
				continue
			}
			d.state.Apply(ev)
			if !synthetic {
				out = append(out, ev)
			}
		}
		if n < len(d.buf) {
			break
		}
	}
	return out
}

func (d *Device) Axis(index int) float64 { return d.state.Axis(index) }
func (d *Device) Button(index int) bool  { return d.state.Button(index) }

// Info queries the driver for the device name and control counts.
func (d *Device) Info() (Info, error) {
	if !d.open {
		return Info{}, input.ErrNotOpen
	}

	var info Info
	var axes, buttons uint8
	if err := ioctl(d.fd, jsiocgaxes, unsafe.Pointer(&axes)); err != nil {
		return info, err
	}
	if err := ioctl(d.fd, jsiocgbuttons, unsafe.Pointer(&buttons)); err != nil {
		return info, err
	}
	name := make([]byte, 128)
	if err := ioctl(d.fd, jsiocgname, unsafe.Pointer(&name[0])); err != nil {
		return info, err
	}

	info.Name = unix.ByteSliceToString(name)
	info.Axes = int(axes)
	info.Buttons = int(buttons)
	return info, nil
}

func (d *Device) Close() error {
	if !d.open {
		return nil
	}
	d.open = false
	fd := d.fd
	d.fd = -1
	return unix.Close(fd)
}

func (d *Device) drop() {
	if d.open {
		_ = unix.Close(d.fd)
	}
	d.open = false
	d.fd = -1
	d.state.Reset()
}

func ioctl(fd int, req uint, dest unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(dest))
	if errno != 0 {
		return fmt.Errorf("ioctl error: %w", errno)
	}
	return nil
}
