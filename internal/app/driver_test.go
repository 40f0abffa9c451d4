package app

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/clockbridge/internal/domain"
	"github.com/bft-labs/clockbridge/internal/ports"
)

// mockPort is an in-memory serial port.
type mockPort struct {
	mu       sync.Mutex
	reads    chan []byte
	written  []string
	writeErr error
	closed   bool
	done     chan struct{}
}

func newMockPort() *mockPort {
	return &mockPort{reads: make(chan []byte, 8), done: make(chan struct{})}
}

func (p *mockPort) Read(buf []byte) (int, error) {
	select {
	case chunk, ok := <-p.reads:
		if !ok {
			return 0, errors.New("device unplugged")
		}
		return copy(buf, chunk), nil
	case <-p.done:
		return 0, io.ErrClosedPipe
	}
}

func (p *mockPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.written = append(p.written, string(b))
	return len(b), nil
}

func (p *mockPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.done)
	}
	return nil
}

func (p *mockPort) Written() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.written...)
}

func (p *mockPort) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// mockOpener hands out ports by name.
type mockOpener struct {
	mu     sync.Mutex
	ports  map[string]*mockPort
	errs   map[string]error
	opened []string
	modes  []ports.Mode
}

func (o *mockOpener) Open(name string, mode ports.Mode) (ports.Port, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, name)
	o.modes = append(o.modes, mode)
	if err := o.errs[name]; err != nil {
		return nil, err
	}
	if p, ok := o.ports[name]; ok {
		return p, nil
	}
	return nil, errors.New("no such device")
}

// mockDiscoverer returns a fixed device list, optionally replaced later.
type mockDiscoverer struct {
	mu    sync.Mutex
	infos []ports.PortInfo
	err   error
	calls int
}

func (d *mockDiscoverer) Discover(ctx context.Context) ([]ports.PortInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return append([]ports.PortInfo(nil), d.infos...), d.err
}

func (d *mockDiscoverer) set(infos ...ports.PortInfo) {
	d.mu.Lock()
	d.infos = infos
	d.mu.Unlock()
}

// nextMessage waits for the next message posted to b.
func nextMessage(t *testing.T, b *Bus) Message {
	t.Helper()
	select {
	case msg := <-b.inbox:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bus message")
		return Message{}
	}
}

func TestSerialMode(t *testing.T) {
	m := SerialMode(time.Second)
	if m.Baud != 9600 || m.DataBits != 8 || m.Parity != ports.ParityNone || m.StopBits != 1 {
		t.Errorf("SerialMode() = %+v, want 9600 8N1", m)
	}
	if m.ReadTimeout != time.Second {
		t.Errorf("ReadTimeout = %v, want 1s", m.ReadTimeout)
	}
}

func TestDriver_Matches(t *testing.T) {
	d := NewDriver(NewBus(0), nil, nil, nil, &mockLogger{}, DriverConfig{Manufacturer: "FTDI", VendorID: "0403"})

	tests := []struct {
		name string
		info ports.PortInfo
		want bool
	}{
		{"vendor id", ports.PortInfo{VID: "0403"}, true},
		{"vendor id case-insensitive", ports.PortInfo{VID: "0403", Product: "x"}, true},
		{"product contains manufacturer", ports.PortInfo{VID: "1a86", Product: "FT232R USB UART (ftdi)"}, true},
		{"other device", ports.PortInfo{VID: "2341", Product: "Arduino Uno"}, false},
		{"stock ftdi product found by vendor id", ports.PortInfo{VID: "0403", Product: "FT232R USB UART"}, true},
		{"stock ftdi product without vendor id", ports.PortInfo{VID: "", Product: "FT232R USB UART"}, false},
		{"no usb info", ports.PortInfo{Name: "/dev/ttyS0"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.matches(tt.info); got != tt.want {
				t.Errorf("matches(%+v) = %v, want %v", tt.info, got, tt.want)
			}
		})
	}
}

func TestDriver_ConnectDiscoversMatchingDevice(t *testing.T) {
	b := NewBus(8)
	port := newMockPort()
	opener := &mockOpener{ports: map[string]*mockPort{"/dev/ttyUSB1": port}}
	disc := &mockDiscoverer{infos: []ports.PortInfo{
		{Name: "/dev/ttyACM0", VID: "2341", Product: "Arduino"},
		{Name: "/dev/ttyUSB1", VID: "0403", Product: "FT232R"},
	}}
	d := NewDriver(b, opener, disc, nil, &mockLogger{}, DriverConfig{VendorID: "0403"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Connect(ctx)

	msg := nextMessage(t, b)
	if msg.Event != EventComReady || msg.Payload != "/dev/ttyUSB1" {
		t.Fatalf("got %s %v, want comReady /dev/ttyUSB1", msg.Event, msg.Payload)
	}
	if len(opener.opened) != 1 || opener.opened[0] != "/dev/ttyUSB1" {
		t.Errorf("opened = %v, want only the matching device", opener.opened)
	}
	if m := opener.modes[0]; m.Baud != BaudRate || m.ReadTimeout != DefaultReadTimeout {
		t.Errorf("mode = %+v", m)
	}
	if name, ok := d.Connected(); !ok || name != "/dev/ttyUSB1" {
		t.Errorf("Connected() = %q, %v", name, ok)
	}

	port.reads <- []byte("100 0\n")
	msg = nextMessage(t, b)
	if msg.Event != EventSerialData || string(msg.Payload.([]byte)) != "100 0\n" {
		t.Errorf("got %s %v, want serialData", msg.Event, msg.Payload)
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if !port.Closed() {
		t.Error("Close() left the port open")
	}
}

func TestDriver_ExplicitPortSkipsDiscovery(t *testing.T) {
	b := NewBus(8)
	port := newMockPort()
	opener := &mockOpener{ports: map[string]*mockPort{"/dev/ttyS3": port}}
	disc := &mockDiscoverer{}
	d := NewDriver(b, opener, disc, nil, &mockLogger{}, DriverConfig{Port: "/dev/ttyS3"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Connect(ctx)

	if msg := nextMessage(t, b); msg.Event != EventComReady {
		t.Fatalf("got %s, want comReady", msg.Event)
	}
	if disc.calls != 0 {
		t.Errorf("discoverer called %d times with explicit port", disc.calls)
	}
	_ = d.Close()
}

func TestDriver_NoDeviceThenHotplug(t *testing.T) {
	b := NewBus(8)
	port := newMockPort()
	opener := &mockOpener{ports: map[string]*mockPort{"/dev/ttyUSB0": port}}
	disc := &mockDiscoverer{}
	hotplug := make(chan struct{}, 1)
	d := NewDriver(b, opener, disc, hotplug, &mockLogger{}, DriverConfig{
		VendorID:       "0403",
		RescanInterval: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Connect(ctx)

	msg := nextMessage(t, b)
	if msg.Event != EventConnectFault {
		t.Fatalf("got %s, want connectFault", msg.Event)
	}
	if err, _ := msg.Payload.(error); !errors.Is(err, domain.ErrNoMatchingDevice) {
		t.Errorf("fault = %v, want ErrNoMatchingDevice", msg.Payload)
	}

	disc.set(ports.PortInfo{Name: "/dev/ttyUSB0", VID: "0403"})
	hotplug <- struct{}{}

	msg = nextMessage(t, b)
	if msg.Event != EventComReady || msg.Payload != "/dev/ttyUSB0" {
		t.Fatalf("got %s %v, want comReady after hotplug", msg.Event, msg.Payload)
	}
	_ = d.Close()
}

func TestDriver_OpenFailureReported(t *testing.T) {
	b := NewBus(8)
	busy := errors.New("device busy")
	opener := &mockOpener{errs: map[string]error{"/dev/ttyUSB0": busy}}
	disc := &mockDiscoverer{infos: []ports.PortInfo{{Name: "/dev/ttyUSB0", VID: "0403"}}}
	d := NewDriver(b, opener, disc, nil, &mockLogger{}, DriverConfig{VendorID: "0403", RescanInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Connect(ctx)

	msg := nextMessage(t, b)
	err, _ := msg.Payload.(error)
	if msg.Event != EventConnectFault || !errors.Is(err, busy) {
		t.Errorf("got %s %v, want connectFault wrapping busy", msg.Event, msg.Payload)
	}
}

func TestDriver_TransmitWritesCommand(t *testing.T) {
	b := NewBus(8)
	port := newMockPort()
	d := NewDriver(b, nil, nil, nil, &mockLogger{}, DriverConfig{Terminator: "\n"})
	d.port = port

	d.Transmit("1 1")

	msg := nextMessage(t, b)
	if msg.Event != EventWritten {
		t.Fatalf("got %s, want written", msg.Event)
	}
	res := msg.Payload.(WriteResult)
	if res.Command != "1 1" || res.Bytes != 4 {
		t.Errorf("result = %+v, want 1 1 in 4 bytes", res)
	}
	if w := port.Written(); len(w) != 1 || w[0] != "1 1\n" {
		t.Errorf("written = %q", w)
	}
}

func TestDriver_TransmitErrors(t *testing.T) {
	unplugged := errors.New("write: input/output error")

	tests := []struct {
		name    string
		port    *mockPort
		wantErr error
	}{
		{"not connected", nil, domain.ErrNotConnected},
		{"write fails", &mockPort{writeErr: unplugged, done: make(chan struct{})}, unplugged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBus(8)
			d := NewDriver(b, nil, nil, nil, &mockLogger{}, DriverConfig{})
			if tt.port != nil {
				d.port = tt.port
			}

			d.Transmit("9 9")

			msg := nextMessage(t, b)
			if msg.Event != EventWriteError {
				t.Fatalf("got %s, want writeError", msg.Event)
			}
			err := msg.Payload.(error)
			if !errors.Is(err, domain.ErrTransmission) || !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want transmission error wrapping %v", err, tt.wantErr)
			}
			var te *domain.TransmissionError
			if !errors.As(err, &te) || te.Command != "9 9" {
				t.Errorf("err = %#v, want TransmissionError for 9 9", err)
			}
		})
	}
}

func TestDriver_ReadFaultReleasesPort(t *testing.T) {
	b := NewBus(8)
	port := newMockPort()
	opener := &mockOpener{ports: map[string]*mockPort{"/dev/ttyUSB0": port}}
	d := NewDriver(b, opener, &mockDiscoverer{}, nil, &mockLogger{}, DriverConfig{Port: "/dev/ttyUSB0"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Connect(ctx)
	nextMessage(t, b)

	close(port.reads)

	msg := nextMessage(t, b)
	if msg.Event != EventSerialFault {
		t.Fatalf("got %s, want serialFault", msg.Event)
	}
	if _, ok := d.Connected(); ok {
		t.Error("driver still reports a port after read fault")
	}
	if !port.Closed() {
		t.Error("faulted port not closed")
	}
}
