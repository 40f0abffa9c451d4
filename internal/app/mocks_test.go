package app

import (
	"sync"
	"time"

	"github.com/bft-labs/clockbridge/internal/domain"
	"github.com/bft-labs/clockbridge/internal/ports"
)

// mockLogger implements ports.Logger for testing.
type mockLogger struct{}

func (mockLogger) Debug(msg string, fields ...ports.Field) {}
func (mockLogger) Info(msg string, fields ...ports.Field)  {}
func (mockLogger) Warn(msg string, fields ...ports.Field)  {}
func (mockLogger) Error(msg string, fields ...ports.Field) {}

// logEntry is one line captured by recordingLogger.
type logEntry struct {
	level  string
	msg    string
	fields map[string]interface{}
}

func (e logEntry) category() domain.Category {
	c, _ := e.fields["category"].(string)
	return domain.Category(c)
}

// recordingLogger captures every log call.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (r *recordingLogger) record(level, msg string, fields []ports.Field) {
	m := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	r.mu.Lock()
	r.entries = append(r.entries, logEntry{level: level, msg: msg, fields: m})
	r.mu.Unlock()
}

func (r *recordingLogger) Debug(msg string, fields ...ports.Field) { r.record("debug", msg, fields) }
func (r *recordingLogger) Info(msg string, fields ...ports.Field)  { r.record("info", msg, fields) }
func (r *recordingLogger) Warn(msg string, fields ...ports.Field)  { r.record("warn", msg, fields) }
func (r *recordingLogger) Error(msg string, fields ...ports.Field) { r.record("error", msg, fields) }

func (r *recordingLogger) Entries() []logEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]logEntry{}, r.entries...)
}

// ByCategory returns the captured entries logged under cat.
func (r *recordingLogger) ByCategory(cat domain.Category) []logEntry {
	var out []logEntry
	for _, e := range r.Entries() {
		if e.category() == cat {
			out = append(out, e)
		}
	}
	return out
}

// Find returns the first entry with msg.
func (r *recordingLogger) Find(msg string) (logEntry, bool) {
	for _, e := range r.Entries() {
		if e.msg == msg {
			return e, true
		}
	}
	return logEntry{}, false
}

// mockTransmitter records every command handed to the serial line.
type mockTransmitter struct {
	sent []string
}

func (m *mockTransmitter) Transmit(cmd string) {
	m.sent = append(m.sent, cmd)
}

// mockTimer is a manually fired response timer.
type mockTimer struct {
	d       time.Duration
	fn      func()
	stopped bool
}

func (t *mockTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// mockClock hands out mockTimers in place of time.AfterFunc.
type mockClock struct {
	timers []*mockTimer
}

func (c *mockClock) last() *mockTimer {
	if len(c.timers) == 0 {
		return nil
	}
	return c.timers[len(c.timers)-1]
}

func (c *mockClock) AfterFunc(d time.Duration, f func()) stopper {
	t := &mockTimer{d: d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

// drain dispatches everything posted to b without running its loop.
func drain(b *Bus) {
	for {
		select {
		case msg := <-b.inbox:
			b.Emit(msg.Event, msg.Payload)
		default:
			return
		}
	}
}

// recorder subscribes to events and remembers each delivery in order.
type recorder struct {
	msgs []Message
}

func (r *recorder) watch(b *Bus, events ...Event) {
	for _, ev := range events {
		b.On(ev, func(m Message) { r.msgs = append(r.msgs, m) })
	}
}

func (r *recorder) count(ev Event) int {
	n := 0
	for _, m := range r.msgs {
		if m.Event == ev {
			n++
		}
	}
	return n
}

func (r *recorder) payloads(ev Event) []any {
	var out []any
	for _, m := range r.msgs {
		if m.Event == ev {
			out = append(out, m.Payload)
		}
	}
	return out
}
