// Package serialport opens and discovers serial devices.
package serialport

import (
	"fmt"

	"github.com/tarm/serial"

	"github.com/bft-labs/clockbridge/internal/ports"
)

// Opener opens ports with github.com/tarm/serial.
type Opener struct{}

// Open opens name in mode.
func (Opener) Open(name string, mode ports.Mode) (ports.Port, error) {
	cfg, err := Config(name, mode)
	if err != nil {
		return nil, err
	}
	p, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Config translates mode into a tarm/serial configuration.
func Config(name string, mode ports.Mode) (*serial.Config, error) {
	cfg := &serial.Config{
		Name:        name,
		Baud:        mode.Baud,
		ReadTimeout: mode.ReadTimeout,
	}

	switch mode.DataBits {
	case 0, 8:
		cfg.Size = 8
	case 5, 6, 7:
		cfg.Size = byte(mode.DataBits)
	default:
		return nil, fmt.Errorf("unsupported data bits %d", mode.DataBits)
	}

	switch mode.Parity {
	case 0, ports.ParityNone:
		cfg.Parity = serial.ParityNone
	case ports.ParityOdd:
		cfg.Parity = serial.ParityOdd
	case ports.ParityEven:
		cfg.Parity = serial.ParityEven
	default:
		return nil, fmt.Errorf("unsupported parity %q", mode.Parity)
	}

	switch mode.StopBits {
	case 0, 1:
		cfg.StopBits = serial.Stop1
	case 2:
		cfg.StopBits = serial.Stop2
	default:
		return nil, fmt.Errorf("unsupported stop bits %d", mode.StopBits)
	}

	return cfg, nil
}

var _ ports.PortOpener = Opener{}
