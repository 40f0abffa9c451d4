package ports

import (
	"context"
	"io"
	"time"
)

// Port is an open serial line.
type Port interface {
	io.ReadWriteCloser
}

// Parity selects the serial parity mode.
type Parity byte

const (
	ParityNone Parity = 'N'
	ParityOdd  Parity = 'O'
	ParityEven Parity = 'E'
)

// Mode is the line configuration used when opening a port.
type Mode struct {
	Baud     int
	DataBits int
	Parity   Parity
	StopBits int

	// ReadTimeout bounds a single Read so the reader can notice shutdown.
	// Zero blocks until data arrives.
	ReadTimeout time.Duration
}

// PortOpener opens serial ports by device path.
type PortOpener interface {
	Open(name string, mode Mode) (Port, error)
}

// PortInfo describes a serial device found during discovery.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// Discoverer lists the serial devices currently attached.
type Discoverer interface {
	Discover(ctx context.Context) ([]PortInfo, error)
}
