// Package stream implements the remote event source over newline-delimited
// JSON. Each input line is one event:
//
//	{"name":"gsna-gd-set-state-data","data":"{\"cmd\":\"G\",\"s\":\"1\"}"}
//
// data may be a JSON string holding the payload document or the payload
// object itself. Remote function calls are written to the output as
//
//	{"device":"<id>","function":"<name>","arg":"<arg>"}
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/bft-labs/clockbridge/internal/domain"
	"github.com/bft-labs/clockbridge/internal/ports"
)

// MaxLineSize bounds a single input line.
const MaxLineSize = 64 * 1024

var errAlreadySubscribed = errors.New("stream already subscribed")

// Record is one input line.
type Record struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

// Call is one output line.
type Call struct {
	Device   string `json:"device"`
	Function string `json:"function"`
	Arg      string `json:"arg"`
}

// Source reads remote events from r and writes function calls to w.
type Source struct {
	r      io.Reader
	logger ports.Logger

	wmu sync.Mutex
	w   io.Writer

	mu         sync.Mutex
	subscribed bool
	done       chan struct{}
}

// New creates a source. w may be nil to discard function calls.
func New(r io.Reader, w io.Writer, logger ports.Logger) *Source {
	return &Source{r: r, w: w, logger: logger, done: make(chan struct{})}
}

// Login always succeeds; the stream needs no credentials.
func (s *Source) Login(ctx context.Context) error {
	return ctx.Err()
}

// Subscribe starts delivering events named in names to handler. Lines for
// other events, and lines that are not valid records, are skipped.
func (s *Source) Subscribe(ctx context.Context, names []string, handler ports.EventHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribed {
		return errAlreadySubscribed
	}
	s.subscribed = true

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	go s.read(ctx, want, handler)
	return nil
}

// Done is closed once the input is exhausted.
func (s *Source) Done() <-chan struct{} { return s.done }

// Device returns a handle that writes calls tagged with id.
func (s *Source) Device(ctx context.Context, id string) (ports.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &device{id: id, src: s}, nil
}

func (s *Source) read(ctx context.Context, want map[string]bool, handler ports.EventHandler) {
	defer close(s.done)

	sc := bufio.NewScanner(s.r)
	sc.Buffer(make([]byte, 0, 4096), MaxLineSize)
	line := 0
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}

		ev, err := Parse(raw)
		if err != nil {
			s.logger.Warn("skipping malformed event line", ports.Int("line", line), ports.Err(err))
			continue
		}
		if !want[ev.Name] {
			s.logger.Debug("ignoring unsubscribed event", ports.String("event", ev.Name))
			continue
		}
		handler(ev)
	}
	if err := sc.Err(); err != nil {
		s.logger.Error("event stream read failed", ports.Err(err))
		return
	}
	s.logger.Info("event stream ended", ports.Int("lines", line))
}

// Parse decodes one input line into a remote event.
func Parse(line []byte) (domain.RemoteEvent, error) {
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return domain.RemoteEvent{}, err
	}
	if rec.Name == "" {
		return domain.RemoteEvent{}, errors.New("missing event name")
	}

	data := []byte(rec.Data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return domain.RemoteEvent{}, fmt.Errorf("data: %w", err)
		}
		data = []byte(s)
	}
	return domain.RemoteEvent{Name: rec.Name, Data: data}, nil
}

func (s *Source) call(c Call) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.w == nil {
		s.logger.Debug("discarding remote function call", ports.String("function", c.Function))
		return nil
	}
	enc := json.NewEncoder(s.w)
	return enc.Encode(c)
}

type device struct {
	id  string
	src *Source
}

func (d *device) ID() string { return d.id }

func (d *device) CallFunction(ctx context.Context, name, arg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.src.call(Call{Device: d.id, Function: name, Arg: arg})
}

var _ ports.Cloud = (*Source)(nil)
