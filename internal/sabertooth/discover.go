package sabertooth

import (
	"errors"
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

var ErrNotFound = errors.New("sabertooth: no matching serial port")

type PortInfo struct {
	Name    string
	USB     bool
	VID     string
	PID     string
	Serial  string
	Product string
}

func Ports() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	ports := make([]PortInfo, 0, len(details))
	for _, p := range details {
		ports = append(ports, PortInfo{
			Name:    p.Name,
			USB:     p.IsUSB,
			VID:     p.VID,
			PID:     p.PID,
			Serial:  p.SerialNumber,
			Product: p.Product,
		})
	}
	return ports, nil
}

// Discover returns the first port whose USB product name contains product,
// case-insensitively.
func Discover(product string) (string, error) {
	ports, err := Ports()
	if err != nil {
		return "", err
	}
	return match(ports, product)
}

func match(ports []PortInfo, product string) (string, error) {
	want := strings.ToLower(product)
	for _, p := range ports {
		if strings.Contains(strings.ToLower(p.Product), want) {
			return p.Name, nil
		}
	}
	return "", fmt.Errorf("%w: product %q", ErrNotFound, product)
}
