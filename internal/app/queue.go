package app

import (
	"fmt"
	"time"

	"github.com/bft-labs/clockbridge/internal/domain"
	"github.com/bft-labs/clockbridge/internal/ports"
)

// QueueState is the state of the command queue.
type QueueState int

const (
	// QueueIdle: empty, nothing in flight.
	QueueIdle QueueState = iota
	// QueuePending: non-empty, head not yet transmitted.
	QueuePending
	// QueueInFlight: head transmitted, awaiting its response.
	QueueInFlight
)

// String returns a human-readable representation of the state.
func (s QueueState) String() string {
	switch s {
	case QueueIdle:
		return "Idle"
	case QueuePending:
		return "Pending"
	case QueueInFlight:
		return "InFlight"
	default:
		return "Unknown"
	}
}

// Transmitter sends one command. Completion is reported on the bus.
type Transmitter interface {
	Transmit(cmd string)
}

// QueueConfig tunes retry behaviour. The zero value retries forever and never
// times out, which is what the clock firmware expects.
type QueueConfig struct {
	// MaxRetries discards the head after this many consecutive retries.
	// Zero means unbounded.
	MaxRetries int

	// ResponseTimeout retries the head when no response arrives in time.
	// Zero disables the timeout.
	ResponseTimeout time.Duration
}

// Discard is the payload of EventCmdDiscarded.
type Discard struct {
	Command string
	Err     error
}

type stopper interface {
	Stop() bool
}

type afterFunc func(d time.Duration, f func()) stopper

func realAfterFunc(d time.Duration, f func()) stopper {
	return time.AfterFunc(d, f)
}

// Queue is the command queue controller. It keeps commands in FIFO order and
// allows at most one, the head, in flight. All methods must be called from
// the bus loop goroutine.
type Queue struct {
	bus       *Bus
	tx        Transmitter
	console   console
	metrics   ports.Metrics
	cfg       QueueConfig
	afterFunc afterFunc

	entries []string
	state   QueueState
	retries int
	gen     uint64
	timer   stopper
}

// NewQueue creates an idle queue that transmits through tx.
func NewQueue(bus *Bus, tx Transmitter, logger ports.Logger, metrics ports.Metrics, cfg QueueConfig) *Queue {
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	return &Queue{
		bus:       bus,
		tx:        tx,
		console:   console{logger: logger},
		metrics:   metrics,
		cfg:       cfg,
		afterFunc: realAfterFunc,
	}
}

// State returns the current queue state.
func (q *Queue) State() QueueState { return q.state }

// Len returns the number of queued commands, including one in flight.
func (q *Queue) Len() int { return len(q.entries) }

// Retries returns how many times the current head has been retried.
func (q *Queue) Retries() int { return q.retries }

// Head returns the command at the front of the queue.
func (q *Queue) Head() (string, bool) {
	if len(q.entries) == 0 {
		return "", false
	}
	return q.entries[0], true
}

// Snapshot returns a copy of the queued commands in processing order.
func (q *Queue) Snapshot() []string {
	return append([]string(nil), q.entries...)
}

// Enqueue appends cmd. An idle queue transmits it immediately; otherwise it
// waits behind every command already queued.
func (q *Queue) Enqueue(cmd string) {
	q.entries = append(q.entries, cmd)
	q.metrics.CommandQueued()
	q.metrics.QueueLength(len(q.entries))
	q.console.print(domain.CategoryDebug, "command queued",
		ports.String("cmd", cmd),
		ports.Int("queued", len(q.entries)),
	)

	if q.state == QueueIdle {
		q.state = QueuePending
		q.requestTransmission()
	}
}

// Ack removes the in-flight head and moves on to the next command.
func (q *Queue) Ack() {
	if q.state != QueueInFlight {
		q.console.print(domain.CategoryError, "ack received with no command in flight",
			ports.String("state", q.state.String()))
		return
	}
	q.stopTimer()
	q.metrics.CommandAcked()

	removed := q.popHead()
	q.bus.Emit(EventCmdRemoved, removed)
	q.advance()
}

// Nack leaves the head in place and transmits it again.
func (q *Queue) Nack() {
	if q.state != QueueInFlight {
		q.console.print(domain.CategoryError, "nack received with no command in flight",
			ports.String("state", q.state.String()))
		return
	}
	q.stopTimer()
	q.retry()
}

// Awaiting reports whether transmission gen is still waiting for a response.
func (q *Queue) Awaiting(gen uint64) bool {
	return q.state == QueueInFlight && gen == q.gen
}

// Timeout handles expiry of the response timer armed for transmission gen.
// Returns false when that transmission has already been resolved.
func (q *Queue) Timeout(gen uint64) bool {
	if !q.Awaiting(gen) {
		return false
	}
	q.timer = nil
	q.retry()
	return true
}

// DiscardHead removes the head without waiting for its ack and emits
// EventCmdDiscarded. Returns false when the queue is empty.
func (q *Queue) DiscardHead(err error) bool {
	if len(q.entries) == 0 {
		return false
	}
	q.stopTimer()
	q.metrics.CommandDiscarded()

	cmd := q.popHead()
	q.bus.Emit(EventCmdDiscarded, Discard{Command: cmd, Err: err})
	q.advance()
	return true
}

func (q *Queue) retry() {
	q.retries++
	if q.cfg.MaxRetries > 0 && q.retries > q.cfg.MaxRetries {
		head, _ := q.Head()
		q.DiscardHead(fmt.Errorf("%q after %d retries: %w", head, q.cfg.MaxRetries, domain.ErrRetriesExhausted))
		return
	}
	q.metrics.CommandRetried()
	q.state = QueuePending
	q.requestTransmission()
}

// popHead removes the head and leaves the queue Pending or Idle.
func (q *Queue) popHead() string {
	head := q.entries[0]
	q.entries[0] = ""
	q.entries = q.entries[1:]
	q.retries = 0
	q.metrics.QueueLength(len(q.entries))
	if len(q.entries) == 0 {
		q.state = QueueIdle
	} else {
		q.state = QueuePending
	}
	return head
}

// advance transmits the next head, or reports the queue drained. A handler of
// the removal notification may already have started the next transmission.
func (q *Queue) advance() {
	switch {
	case q.state == QueuePending:
		q.requestTransmission()
	case q.state == QueueIdle && len(q.entries) == 0:
		q.bus.Emit(EventCmdQueueEmpty, nil)
	}
}

func (q *Queue) requestTransmission() {
	if q.state != QueuePending || len(q.entries) == 0 {
		return
	}
	head := q.entries[0]
	q.state = QueueInFlight
	q.gen++
	q.armTimer(q.gen)
	q.metrics.CommandTransmitted()

	q.bus.Emit(EventProcessCmd, head)
	q.tx.Transmit(head)
}

func (q *Queue) armTimer(gen uint64) {
	if q.cfg.ResponseTimeout <= 0 {
		return
	}
	q.timer = q.afterFunc(q.cfg.ResponseTimeout, func() {
		q.bus.Post(EventResponseTimeout, gen)
	})
}

func (q *Queue) stopTimer() {
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}
