// Package sabertooth drives a Dimension Engineering Sabertooth motor
// controller over its USB serial port using the plain-text protocol.
//
// Commands are single lines: "m1:<value>" sets motor 1 in [-2047, 2047],
// "q1:1" lets motor 1 freewheel, "m2:gett" asks for motor 2's temperature.
package sabertooth

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/san-kum/robomower/internal/actuator"
	"go.bug.st/serial"
)

const (
	DefaultBaud        = 9600
	DefaultReadTimeout = 500 * time.Millisecond

	pollTimeout = 50 * time.Millisecond
)

var ErrTimeout = errors.New("sabertooth: no reply")

// Driver implements actuator.Actuator. It is not safe for concurrent use.
type Driver struct {
	port    io.ReadWriteCloser
	timeout time.Duration
	log     *log.Logger
	buf     []byte
}

type Option func(*Driver)

func WithLogger(l *log.Logger) Option { return func(d *Driver) { d.log = l } }

func WithReadTimeout(t time.Duration) Option { return func(d *Driver) { d.timeout = t } }

// Open connects to the controller on the named serial port.
func Open(name string, baud int, opts ...Option) (*Driver, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	if err := port.SetReadTimeout(pollTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("configure %s: %w", name, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("configure %s: %w", name, err)
	}
	return New(port, opts...), nil
}

// New wraps an already open port. Reads on port must return (0, nil) or an
// error when no data arrives so replies can time out.
func New(port io.ReadWriteCloser, opts ...Option) *Driver {
	d := &Driver{
		port:    port,
		timeout: DefaultReadTimeout,
		log:     log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Startup re-enables both channels after a shutdown or fault.
func (d *Driver) Startup() error {
	for _, ch := range actuator.Channels {
		if err := d.send(fmt.Sprintf("%s:startup", ch)); err != nil {
			return &actuator.LinkError{Op: "startup", Channel: ch, Err: err}
		}
	}
	return nil
}

func (d *Driver) SetMotor(ch actuator.Channel, value int) error {
	value = min(max(value, -actuator.Range), actuator.Range)
	if err := d.send(fmt.Sprintf("%s:%d", ch, value)); err != nil {
		return &actuator.LinkError{Op: "set motor", Channel: ch, Err: err}
	}
	return nil
}

// StopAll zeroes both channels. Both writes are attempted even if the
// first fails.
func (d *Driver) StopAll() error {
	var errs []error
	for _, ch := range actuator.Channels {
		if err := d.send(fmt.Sprintf("%s:0", ch)); err != nil {
			errs = append(errs, &actuator.LinkError{Op: "stop", Channel: ch, Err: err})
		}
	}
	return errors.Join(errs...)
}

func (d *Driver) SetFreewheel(ch actuator.Channel, enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	if err := d.send(fmt.Sprintf("q%d:%d", int(ch), v)); err != nil {
		return &actuator.LinkError{Op: "freewheel", Channel: ch, Err: err}
	}
	return nil
}

// Temperature returns the channel's reported temperature in degrees C.
func (d *Driver) Temperature(ch actuator.Channel) (int, error) {
	return d.query(ch, 't')
}

// Battery returns the raw supply voltage reading for the channel.
func (d *Driver) Battery(ch actuator.Channel) (int, error) {
	return d.query(ch, 'b')
}

func (d *Driver) Close() error {
	return d.port.Close()
}

func (d *Driver) send(line string) error {
	d.log.Debug("tx", "cmd", line)
	_, err := io.WriteString(d.port, line+"\r\n")
	return err
}

func (d *Driver) query(ch actuator.Channel, kind byte) (int, error) {
	cmd := fmt.Sprintf("%s:get%c", ch, kind)
	if err := d.send(cmd); err != nil {
		return 0, &actuator.LinkError{Op: "query", Channel: ch, Err: err}
	}

	prefix := fmt.Sprintf("%s:%c", ch, kind)
	deadline := time.Now().Add(d.timeout)
	for {
		line, err := d.readLine(deadline)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", cmd, err)
		}
		d.log.Debug("rx", "line", line)
		v, ok := parseReply(line, prefix)
		if ok {
			return v, nil
		}
	}
}

// parseReply accepts replies such as "M2:T27" for prefix "m2:t".
func parseReply(line, prefix string) (int, bool) {
	line = strings.ToLower(strings.TrimSpace(line))
	if !strings.HasPrefix(line, prefix) {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(line[len(prefix):]))
	if err != nil {
		return 0, false
	}
	return v, true
}

func (d *Driver) readLine(deadline time.Time) (string, error) {
	one := make([]byte, 1)
	for {
		if i := indexNewline(d.buf); i >= 0 {
			line := string(d.buf[:i])
			d.buf = d.buf[i+1:]
			return strings.TrimRight(line, "\r"), nil
		}
		if time.Now().After(deadline) {
			return "", ErrTimeout
		}
		n, err := d.port.Read(one)
		if n > 0 {
			d.buf = append(d.buf, one[:n]...)
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		if n == 0 {
			time.Sleep(time.Millisecond)
		}
	}
}

func indexNewline(b []byte) int {
	for i, c := range b {
		if c == '\n' {
			return i
		}
	}
	return -1
}
