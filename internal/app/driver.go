package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/bft-labs/clockbridge/internal/domain"
	"github.com/bft-labs/clockbridge/internal/ports"
)

// Serial line parameters expected by the clock firmware.
const (
	BaudRate = 9600
	DataBits = 8
	StopBits = 1
)

// DefaultReadTimeout bounds each serial read so the reader notices shutdown.
const DefaultReadTimeout = 500 * time.Millisecond

// DriverConfig selects and configures the serial device.
type DriverConfig struct {
	// Port opens this device path directly and skips discovery.
	Port string

	// Manufacturer matches, case-insensitively, against the product string of
	// discovered USB devices. The enumerator reports no manufacturer string,
	// and stock FTDI adapters report products such as "FT232R USB UART", so
	// VendorID is what normally finds them.
	Manufacturer string

	// VendorID matches the USB vendor id of discovered devices, e.g. "0403".
	VendorID string

	// Terminator is appended to every command written.
	Terminator string

	RescanInterval    time.Duration
	MaxRescanInterval time.Duration
	ReadTimeout       time.Duration
}

// SerialMode returns the fixed 9600 8N1 line mode.
func SerialMode(readTimeout time.Duration) ports.Mode {
	return ports.Mode{
		Baud:        BaudRate,
		DataBits:    DataBits,
		Parity:      ports.ParityNone,
		StopBits:    StopBits,
		ReadTimeout: readTimeout,
	}
}

// WriteResult is the payload of EventWritten.
type WriteResult struct {
	Command string
	Bytes   int
}

// Driver owns the serial connection. It opens one matching device, streams
// raw reads to the bus and writes commands asynchronously.
type Driver struct {
	bus        *Bus
	opener     ports.PortOpener
	discoverer ports.Discoverer
	hotplug    <-chan struct{}
	console    console
	cfg        DriverConfig

	mu   sync.Mutex
	port ports.Port
	name string
}

// NewDriver creates a driver. hotplug may be nil; when set, each receive
// triggers an immediate rescan while no device is connected.
func NewDriver(bus *Bus, opener ports.PortOpener, discoverer ports.Discoverer, hotplug <-chan struct{}, logger ports.Logger, cfg DriverConfig) *Driver {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.RescanInterval <= 0 {
		cfg.RescanInterval = DefaultBackoffInitial
	}
	if cfg.MaxRescanInterval <= 0 {
		cfg.MaxRescanInterval = DefaultBackoffMax
	}
	return &Driver{
		bus:        bus,
		opener:     opener,
		discoverer: discoverer,
		hotplug:    hotplug,
		console:    console{logger: logger},
		cfg:        cfg,
	}
}

// Connect opens the serial device in the background. It posts EventComReady
// once a port is open, and EventConnectFault for every failed attempt before
// retrying.
func (d *Driver) Connect(ctx context.Context) {
	go d.connectLoop(ctx)
}

// Connected returns the name of the open port.
func (d *Driver) Connected() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name, d.port != nil
}

// Transmit writes cmd in the background and posts EventWritten or
// EventWriteError with a *domain.TransmissionError.
func (d *Driver) Transmit(cmd string) {
	d.mu.Lock()
	port := d.port
	d.mu.Unlock()

	go func() {
		if port == nil {
			d.bus.Post(EventWriteError, &domain.TransmissionError{Command: cmd, Err: domain.ErrNotConnected})
			return
		}
		n, err := port.Write([]byte(cmd + d.cfg.Terminator))
		if err != nil {
			d.bus.Post(EventWriteError, &domain.TransmissionError{Command: cmd, Err: err})
			return
		}
		d.bus.Post(EventWritten, WriteResult{Command: cmd, Bytes: n})
	}()
}

// Close closes the open port, if any.
func (d *Driver) Close() error {
	d.mu.Lock()
	port := d.port
	d.port = nil
	d.mu.Unlock()

	if port == nil {
		return nil
	}
	return port.Close()
}

func (d *Driver) connectLoop(ctx context.Context) {
	b := newBackoff(d.cfg.RescanInterval, d.cfg.MaxRescanInterval)
	for {
		port, name, err := d.open(ctx)
		if err == nil {
			d.mu.Lock()
			d.port = port
			d.name = name
			d.mu.Unlock()

			go d.readLoop(ctx, port)
			if !d.bus.Post(EventComReady, name) {
				_ = d.Close()
			}
			return
		}

		if !d.bus.Post(EventConnectFault, err) {
			return
		}

		timer := time.NewTimer(b.Next())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		case <-d.hotplug:
			timer.Stop()
			b.Reset()
		}
	}
}

// open opens the configured port, or the first discovered port that matches.
func (d *Driver) open(ctx context.Context) (ports.Port, string, error) {
	mode := SerialMode(d.cfg.ReadTimeout)

	if d.cfg.Port != "" {
		port, err := d.opener.Open(d.cfg.Port, mode)
		if err != nil {
			return nil, "", fmt.Errorf("open %s: %w", d.cfg.Port, err)
		}
		return port, d.cfg.Port, nil
	}

	infos, err := d.discoverer.Discover(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("discover serial ports: %w", err)
	}

	var errs []error
	for _, info := range infos {
		if !d.matches(info) {
			d.console.print(domain.CategoryDebug, "skipping serial device",
				ports.String("port", info.Name),
				ports.String("vid", info.VID),
				ports.String("product", info.Product),
			)
			continue
		}
		port, err := d.opener.Open(info.Name, mode)
		if err != nil {
			errs = append(errs, fmt.Errorf("open %s: %w", info.Name, err))
			continue
		}
		return port, info.Name, nil
	}
	if len(errs) > 0 {
		return nil, "", errors.Join(errs...)
	}
	return nil, "", domain.ErrNoMatchingDevice
}

func (d *Driver) matches(info ports.PortInfo) bool {
	if d.cfg.VendorID != "" && strings.EqualFold(info.VID, d.cfg.VendorID) {
		return true
	}
	if d.cfg.Manufacturer != "" &&
		strings.Contains(strings.ToLower(info.Product), strings.ToLower(d.cfg.Manufacturer)) {
		return true
	}
	return false
}

func (d *Driver) readLoop(ctx context.Context, port ports.Port) {
	buf := make([]byte, 256)
	for {
		n, err := port.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			if !d.bus.Post(EventSerialData, chunk) {
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
		if err == nil || errors.Is(err, io.EOF) {
			// tarm/serial reports a read timeout as io.EOF.
			continue
		}

		if d.release(port) {
			_ = port.Close()
			d.bus.Post(EventSerialFault, fmt.Errorf("read: %w", err))
		}
		return
	}
}

// release clears port if it is still the current one.
func (d *Driver) release(port ports.Port) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port != port {
		return false
	}
	d.port = nil
	return true
}
