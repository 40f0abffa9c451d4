package app

import "context"

// Event names a notification on the bus.
type Event string

// Bus events.
//
// Payloads: loginFailed, connectFault, writeError and serialFault carry an
// error; comReady the port name; device a ports.Device; cloudError a
// CloudError; cmdReady, processCmd and cmdRemoved the command string;
// written a WriteResult; cmdDiscarded a Discard; responseTimeout the uint64
// transmission generation; serialData the raw []byte read; rtcData the clock
// value; unhandledSerialData the raw line.
const (
	// Setup chain.
	EventLoggedIn      Event = "loggedIn"
	EventLoginFailed   Event = "loginFailed"
	EventComReady      Event = "comReady"
	EventConnectFault  Event = "connectFault"
	EventHandlersReady Event = "handlersReady"
	EventDevice        Event = "device"
	EventCloudError    Event = "cloudError"

	// Remote events, each carrying a domain.RemoteEvent.
	EventGdState         Event = "gdState"
	EventClockConfigData Event = "clockConfigData"
	EventClimateData     Event = "climateData"

	// Command pipeline.
	EventCmdReady        Event = "cmdReady"
	EventProcessCmd      Event = "processCmd"
	EventWritten         Event = "written"
	EventWriteError      Event = "writeError"
	EventCmdProcessed    Event = "cmdProcessed"
	EventCmdResend       Event = "cmdResend"
	EventCmdRemoved      Event = "cmdRemoved"
	EventCmdDiscarded    Event = "cmdDiscarded"
	EventCmdQueueEmpty   Event = "cmdQueueEmpty"
	EventResponseTimeout Event = "responseTimeout"

	// Serial input.
	EventSerialData          Event = "serialData"
	EventSerialFault         Event = "serialFault"
	EventRTC                 Event = "rtcData"
	EventUnhandledSerialData Event = "unhandledSerialData"
)

// Message is one notification delivered to handlers.
type Message struct {
	Event   Event
	Payload any
}

// Handler reacts to a message. Handlers run on the bus loop goroutine.
type Handler func(Message)

// Bus is the bridge's event router. Handlers are registered once at startup
// and dispatched synchronously in registration order. I/O goroutines hand
// notifications to the loop with Post; everything else runs on the goroutine
// executing Run.
type Bus struct {
	handlers map[Event][]Handler
	inbox    chan Message
	done     chan struct{}
	failed   bool
	err      error
}

// NewBus creates a bus whose inbox holds up to queueLen posted messages.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 64
	}
	return &Bus{
		handlers: make(map[Event][]Handler),
		inbox:    make(chan Message, queueLen),
		done:     make(chan struct{}),
	}
}

// On subscribes h to ev. It must not be called once Run has started.
func (b *Bus) On(ev Event, h Handler) *Bus {
	b.handlers[ev] = append(b.handlers[ev], h)
	return b
}

// Emit delivers payload to every handler of ev before returning.
// Emitting from inside a handler dispatches the nested event immediately.
// Nothing is delivered once Fail has been called.
func (b *Bus) Emit(ev Event, payload any) {
	if b.failed {
		return
	}
	msg := Message{Event: ev, Payload: payload}
	for _, h := range b.handlers[ev] {
		h(msg)
		if b.failed {
			return
		}
	}
}

// Post queues a notification for the loop. It is safe for concurrent use and
// blocks while the inbox is full. Returns false once the loop has exited.
func (b *Bus) Post(ev Event, payload any) bool {
	select {
	case <-b.done:
		return false
	default:
	}
	select {
	case b.inbox <- Message{Event: ev, Payload: payload}:
		return true
	case <-b.done:
		return false
	}
}

// Fail stops dispatching. Run returns err after the current handler finishes.
// Only the first call has an effect.
func (b *Bus) Fail(err error) {
	if b.failed {
		return
	}
	b.failed = true
	b.err = err
}

// Err returns the error passed to Fail, if any.
func (b *Bus) Err() error { return b.err }

// Run dispatches posted notifications one at a time until ctx is done or a
// handler calls Fail. It must be called at most once.
func (b *Bus) Run(ctx context.Context) error {
	defer close(b.done)

	if b.failed {
		return b.err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-b.inbox:
			b.Emit(msg.Event, msg.Payload)
			if b.failed {
				return b.err
			}
		}
	}
}
