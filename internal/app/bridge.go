package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/bft-labs/clockbridge/internal/domain"
	"github.com/bft-labs/clockbridge/internal/ports"
)

// BridgeConfig contains configuration for the bridge.
type BridgeConfig struct {
	// DeviceID is the remote device whose events are bridged.
	DeviceID string

	// ConfigureFunction and ConfigureArg name the remote function called once
	// the device handle is available. Empty skips the call.
	ConfigureFunction string
	ConfigureArg      string

	// InboxSize bounds notifications waiting for the bus loop.
	InboxSize int

	Queue  QueueConfig
	Driver DriverConfig
}

// Deps are the collaborators the bridge drives.
type Deps struct {
	Cloud      ports.Cloud
	Opener     ports.PortOpener
	Discoverer ports.Discoverer
	Hotplug    <-chan struct{}
	Logger     ports.Logger
	Metrics    ports.Metrics
}

// CloudError is the payload of EventCloudError.
type CloudError struct {
	Op  string
	Err error
}

// Bridge wires remote events to the serial command queue over one bus.
type Bridge struct {
	config  BridgeConfig
	bus     *Bus
	queue   *Queue
	driver  *Driver
	cloud   ports.Cloud
	console console
	metrics ports.Metrics
	lines   domain.LineBuffer

	ctx context.Context
}

// remoteEvents maps each event kind to the bus event carrying it.
var remoteEvents = map[domain.EventKind]Event{
	domain.KindDoorState:   EventGdState,
	domain.KindClockConfig: EventClockConfigData,
	domain.KindClimateData: EventClimateData,
}

// NewBridge creates a bridge and subscribes its handlers.
func NewBridge(config BridgeConfig, deps Deps) *Bridge {
	if deps.Metrics == nil {
		deps.Metrics = ports.NoopMetrics{}
	}
	bus := NewBus(config.InboxSize)
	driver := NewDriver(bus, deps.Opener, deps.Discoverer, deps.Hotplug, deps.Logger, config.Driver)

	b := &Bridge{
		config:  config,
		bus:     bus,
		driver:  driver,
		queue:   NewQueue(bus, driver, deps.Logger, deps.Metrics, config.Queue),
		cloud:   deps.Cloud,
		console: console{logger: deps.Logger},
		metrics: deps.Metrics,
		ctx:     context.Background(),
	}
	b.subscribe()
	return b
}

// On subscribes h to ev after the bridge's own handlers. It must be called
// before Run.
func (b *Bridge) On(ev Event, h Handler) { b.bus.On(ev, h) }

// Queue returns the command queue. It must only be used from bus handlers.
func (b *Bridge) Queue() *Queue { return b.queue }

// Run logs in and dispatches events until ctx is done or a command cannot be
// written. A write failure is returned as an error matching
// domain.ErrTransmission; the caller is expected to terminate.
func (b *Bridge) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	b.ctx = runCtx

	go b.login(runCtx)

	err := b.bus.Run(runCtx)
	cancel()
	if cerr := b.driver.Close(); cerr != nil {
		b.console.print(domain.CategoryError, "close serial port", ports.Err(cerr))
	}
	return err
}

func (b *Bridge) subscribe() {
	b.bus.
		On(EventLoggedIn, b.initComPort).
		On(EventLoginFailed, b.onLoginFailed).
		On(EventComReady, b.setRemoteEventHandlers).
		On(EventConnectFault, b.onConnectFault).
		On(EventHandlersReady, b.getDevice).
		On(EventDevice, b.callConfigClock).
		On(EventCloudError, b.onCloudError).
		On(EventGdState, b.formatCommand(domain.KindDoorState)).
		On(EventClockConfigData, b.formatCommand(domain.KindClockConfig)).
		On(EventClimateData, b.formatCommand(domain.KindClimateData)).
		On(EventCmdReady, b.queueCmd).
		On(EventProcessCmd, b.onProcessCmd).
		On(EventWritten, b.onWritten).
		On(EventWriteError, b.onWriteError).
		On(EventSerialData, b.rx).
		On(EventSerialFault, b.onSerialFault).
		On(EventCmdProcessed, b.onCmdProcessed).
		On(EventCmdRemoved, b.onCmdRemoved).
		On(EventCmdResend, b.onCmdResend).
		On(EventCmdDiscarded, b.onCmdDiscarded).
		On(EventCmdQueueEmpty, b.onCmdQueueEmpty).
		On(EventResponseTimeout, b.onResponseTimeout).
		On(EventRTC, b.onRTC).
		On(EventUnhandledSerialData, b.onUnhandledSerialData)
}

func (b *Bridge) login(ctx context.Context) {
	if err := b.cloud.Login(ctx); err != nil {
		b.bus.Post(EventLoginFailed, err)
		return
	}
	b.bus.Post(EventLoggedIn, nil)
}

func (b *Bridge) onLoginFailed(msg Message) {
	err, _ := msg.Payload.(error)
	b.console.print(domain.CategoryError, "login to remote event source failed", ports.Err(err))
}

func (b *Bridge) initComPort(Message) {
	b.console.print(domain.CategoryNotice, "logged in, opening serial port")
	b.driver.Connect(b.ctx)
}

func (b *Bridge) onConnectFault(msg Message) {
	err, _ := msg.Payload.(error)
	if errors.Is(err, domain.ErrNoMatchingDevice) {
		b.console.print(domain.CategoryNotice, "waiting for serial device",
			ports.String("manufacturer", b.config.Driver.Manufacturer),
			ports.String("vid", b.config.Driver.VendorID),
		)
		return
	}
	b.console.print(domain.CategoryError, "serial port open failed", ports.Err(err))
}

func (b *Bridge) setRemoteEventHandlers(msg Message) {
	name, _ := msg.Payload.(string)
	b.console.print(domain.CategoryNotice, "serial port open", ports.String("port", name))

	names := make([]string, 0, len(remoteEvents))
	for _, kind := range domain.Kinds() {
		names = append(names, kind.EventName())
	}
	err := b.cloud.Subscribe(b.ctx, names, func(ev domain.RemoteEvent) {
		kind, err := domain.KindForEvent(ev.Name)
		if err != nil {
			return
		}
		b.bus.Post(remoteEvents[kind], ev)
	})
	if err != nil {
		b.console.print(domain.CategoryError, "subscribe to remote events failed", ports.Err(err))
		return
	}
	b.bus.Emit(EventHandlersReady, nil)
}

func (b *Bridge) getDevice(Message) {
	ctx, id := b.ctx, b.config.DeviceID
	go func() {
		device, err := b.cloud.Device(ctx, id)
		if err != nil {
			b.bus.Post(EventCloudError, CloudError{Op: "get device " + id, Err: err})
			return
		}
		b.bus.Post(EventDevice, device)
	}()
}

func (b *Bridge) callConfigClock(msg Message) {
	device, ok := msg.Payload.(ports.Device)
	if !ok || device == nil {
		b.console.print(domain.CategoryError, "invalid remote device handle")
		return
	}
	b.console.print(domain.CategoryNotice, "remote device ready", ports.String("device", device.ID()))

	fn, arg := b.config.ConfigureFunction, b.config.ConfigureArg
	if fn == "" {
		return
	}
	ctx := b.ctx
	go func() {
		if err := device.CallFunction(ctx, fn, arg); err != nil {
			b.bus.Post(EventCloudError, CloudError{Op: fmt.Sprintf("call %s(%s)", fn, arg), Err: err})
		}
	}()
}

func (b *Bridge) onCloudError(msg Message) {
	ce, _ := msg.Payload.(CloudError)
	b.console.print(domain.CategoryError, "remote call failed", ports.String("op", ce.Op), ports.Err(ce.Err))
}

// formatCommand builds the command for a remote event of kind. Payloads that
// cannot be formatted are logged and dropped.
func (b *Bridge) formatCommand(kind domain.EventKind) Handler {
	return func(msg Message) {
		ev, _ := msg.Payload.(domain.RemoteEvent)
		cmd, err := domain.FormatCommand(kind, ev.Data)
		if err != nil {
			b.metrics.PayloadRejected(kind)
			b.console.print(domain.CategoryError, "dropping remote event",
				ports.String("event", ev.Name),
				ports.Err(err),
			)
			return
		}
		b.bus.Emit(EventCmdReady, cmd)
	}
}

func (b *Bridge) queueCmd(msg Message) {
	cmd, _ := msg.Payload.(string)
	b.queue.Enqueue(cmd)
}

func (b *Bridge) onProcessCmd(msg Message) {
	cmd, _ := msg.Payload.(string)
	b.console.print(domain.CategoryDebug, "transmitting command",
		ports.String("cmd", cmd),
		ports.Int("attempt", b.queue.Retries()+1),
	)
}

func (b *Bridge) onWritten(msg Message) {
	res, _ := msg.Payload.(WriteResult)
	b.console.print(domain.CategoryOutbound,
		fmt.Sprintf("Cmd [%s] was written in [%d] bytes", res.Command, res.Bytes))
}

func (b *Bridge) onWriteError(msg Message) {
	err, _ := msg.Payload.(error)
	if !errors.Is(err, domain.ErrTransmission) {
		err = &domain.TransmissionError{Err: err}
	}
	b.console.print(domain.CategoryError, "serial write failed", ports.Err(err))
	b.console.print(domain.CategoryDebug, "Exiting application")
	b.bus.Fail(err)
}

func (b *Bridge) onSerialFault(msg Message) {
	err, _ := msg.Payload.(error)
	b.console.print(domain.CategoryError, "serial connection fault", ports.Err(err))

	// A partial line from the lost connection must not prefix the next one.
	if b.lines.Pending() > 0 {
		b.console.print(domain.CategoryDebug, "discarding partial serial line",
			ports.String("line", b.lines.Flush()))
	}
}

// rx splits raw serial input into lines and classifies each one.
func (b *Bridge) rx(msg Message) {
	data, _ := msg.Payload.([]byte)
	for _, line := range b.lines.Feed(data) {
		b.console.print(domain.CategoryInbound, line)

		resp := domain.Classify(line)
		b.metrics.ResponseReceived(resp.Kind)
		switch resp.Kind {
		case domain.ResponseAck:
			b.bus.Emit(EventCmdProcessed, nil)
		case domain.ResponseNack:
			b.bus.Emit(EventCmdResend, nil)
		case domain.ResponseClockReport:
			b.bus.Emit(EventRTC, resp.Value)
		default:
			b.bus.Emit(EventUnhandledSerialData, resp.Value)
		}
	}
}

func (b *Bridge) onCmdProcessed(Message) {
	if head, ok := b.queue.Head(); ok && b.queue.State() == QueueInFlight {
		b.console.print(domain.CategoryCmdSuccess, "Command executed", ports.String("cmd", head))
	}
	b.queue.Ack()
}

func (b *Bridge) onCmdRemoved(msg Message) {
	cmd, _ := msg.Payload.(string)
	b.console.print(domain.CategoryNotice, fmt.Sprintf("Command [%s] removed from cmd queue", cmd),
		ports.Int("queued", b.queue.Len()))
}

func (b *Bridge) onCmdResend(Message) {
	b.console.print(domain.CategoryError, "Resending cmd")
	b.queue.Nack()
}

func (b *Bridge) onCmdDiscarded(msg Message) {
	d, _ := msg.Payload.(Discard)
	b.console.print(domain.CategoryError, fmt.Sprintf("Command [%s] discarded from cmd queue", d.Command),
		ports.Err(d.Err))
}

func (b *Bridge) onCmdQueueEmpty(Message) {
	b.console.print(domain.CategoryDebug, "command queue empty")
}

func (b *Bridge) onResponseTimeout(msg Message) {
	gen, _ := msg.Payload.(uint64)
	if !b.queue.Awaiting(gen) {
		return
	}
	head, _ := b.queue.Head()
	b.console.print(domain.CategoryError, "response timeout, resending cmd",
		ports.String("cmd", head),
		ports.Duration("timeout", b.config.Queue.ResponseTimeout),
	)
	b.queue.Timeout(gen)
}

func (b *Bridge) onRTC(msg Message) {
	value, _ := msg.Payload.(string)
	b.console.print(domain.CategoryInbound, "clock report", ports.String("rtc", value))
}

func (b *Bridge) onUnhandledSerialData(msg Message) {
	line, _ := msg.Payload.(string)
	b.console.print(domain.CategoryError, fmt.Sprintf("Unhandled serial data [%s]", line))
}
