package serialport

import (
	"fmt"

	bugst "go.bug.st/serial"

	"github.com/bft-labs/clockbridge/internal/ports"
)

// NativeOpener opens ports with go.bug.st/serial. Unlike Opener it reports
// a read timeout as (0, nil).
type NativeOpener struct{}

// Open opens name in mode.
func (NativeOpener) Open(name string, mode ports.Mode) (ports.Port, error) {
	m, err := NativeMode(mode)
	if err != nil {
		return nil, err
	}
	p, err := bugst.Open(name, m)
	if err != nil {
		return nil, err
	}
	if mode.ReadTimeout > 0 {
		if err := p.SetReadTimeout(mode.ReadTimeout); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("set read timeout: %w", err)
		}
	}
	return p, nil
}

// NativeMode translates mode into a go.bug.st/serial mode.
func NativeMode(mode ports.Mode) (*bugst.Mode, error) {
	m := &bugst.Mode{BaudRate: mode.Baud, DataBits: mode.DataBits}
	if m.DataBits == 0 {
		m.DataBits = 8
	}

	switch mode.Parity {
	case 0, ports.ParityNone:
		m.Parity = bugst.NoParity
	case ports.ParityOdd:
		m.Parity = bugst.OddParity
	case ports.ParityEven:
		m.Parity = bugst.EvenParity
	default:
		return nil, fmt.Errorf("unsupported parity %q", mode.Parity)
	}

	switch mode.StopBits {
	case 0, 1:
		m.StopBits = bugst.OneStopBit
	case 2:
		m.StopBits = bugst.TwoStopBits
	default:
		return nil, fmt.Errorf("unsupported stop bits %d", mode.StopBits)
	}
	return m, nil
}

// NewOpener returns the opener for backend, "tarm" or "native".
func NewOpener(backend string) (ports.PortOpener, error) {
	switch backend {
	case "", "tarm":
		return Opener{}, nil
	case "native":
		return NativeOpener{}, nil
	default:
		return nil, fmt.Errorf("unknown serial backend %q", backend)
	}
}

var _ ports.PortOpener = NativeOpener{}
