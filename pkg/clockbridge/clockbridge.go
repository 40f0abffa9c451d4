package clockbridge

import (
	"context"
	"errors"
	"sync"
	"time"

	logadapter "github.com/bft-labs/clockbridge/internal/adapters/log"
	"github.com/bft-labs/clockbridge/internal/adapters/serialport"
	"github.com/bft-labs/clockbridge/internal/app"
	"github.com/bft-labs/clockbridge/internal/domain"
	"github.com/bft-labs/clockbridge/internal/ports"
)

// Errors returned by the bridge. Run errors caused by a failed serial write
// match ErrTransmission.
var (
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrInvalidConfig   = domain.ErrInvalidConfig
	ErrTransmission    = domain.ErrTransmission
)

var errNoCloud = errors.New("clockbridge: WithCloud is required")

// Clockbridge runs the event-to-serial bridge in the background.
// Use New() to create an instance, then Start() to begin bridging.
type Clockbridge struct {
	config    Config
	opts      options
	lifecycle *app.Lifecycle
	logger    ports.Logger

	mu sync.Mutex
}

// New creates a bridge in StateStopped. Returns an error if the
// configuration is invalid or no remote event source was given.
func New(cfg Config, opts ...Option) (*Clockbridge, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{
		logger:     logadapter.Noop{},
		opener:     serialport.Opener{},
		discoverer: serialport.Enumerator{},
		metrics:    ports.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cloud == nil {
		return nil, errNoCloud
	}

	return &Clockbridge{
		config:    cfg,
		opts:      o,
		lifecycle: app.NewLifecycle(o.logger, stateEmitter{handler: o.eventHandler}),
		logger:    o.logger,
	}, nil
}

// Start begins bridging in the background. The provided context bounds the
// bridge's lifetime. Returns ErrAlreadyRunning unless stopped or crashed.
func (c *Clockbridge) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := c.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	bridge := c.newBridge()
	runCtx, cancel := context.WithCancel(ctx)
	done := c.lifecycle.Begin(cancel)

	go func() {
		defer c.lifecycle.Finish(done)
		defer cancel()

		if err := c.lifecycle.TransitionTo(app.StateRunning, "bridge starting"); err != nil {
			return
		}

		err := bridge.Run(runCtx)
		switch {
		case err != nil && !errors.Is(err, context.Canceled):
			c.logger.Error("bridge stopped", ports.Err(err))
			_ = c.lifecycle.Crash(err)
		case c.lifecycle.State() == app.StateRunning:
			// Parent context canceled without Stop().
			_ = c.lifecycle.TransitionTo(app.StateStopping, "context canceled")
			_ = c.lifecycle.TransitionTo(app.StateStopped, "context canceled")
		}
	}()

	return nil
}

// Stop cancels the bridge and waits for it to exit. Returns ErrNotRunning if
// it is not running and ErrShutdownTimeout if it does not exit in time.
func (c *Clockbridge) Stop() error {
	c.mu.Lock()
	if !c.lifecycle.CanStop() {
		c.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := c.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		c.mu.Unlock()
		return err
	}
	c.lifecycle.Cancel()
	c.mu.Unlock()

	err := c.lifecycle.WaitWithTimeout(app.ShutdownTimeout)
	if err != nil {
		_ = c.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
		return err
	}
	_ = c.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	return nil
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (c *Clockbridge) Status() State {
	return convertState(c.lifecycle.State())
}

// Done is closed when the current run exits. It is nil before Start.
func (c *Clockbridge) Done() <-chan struct{} {
	return c.lifecycle.Done()
}

// Err returns the error that crashed the last run, if any.
func (c *Clockbridge) Err() error {
	return c.lifecycle.Cause()
}

func (c *Clockbridge) newBridge() *app.Bridge {
	b := app.NewBridge(c.config.bridgeConfig(), app.Deps{
		Cloud:      c.opts.cloud,
		Opener:     c.opts.opener,
		Discoverer: c.opts.discoverer,
		Hotplug:    c.opts.hotplug,
		Logger:     c.logger,
		Metrics:    c.opts.metrics,
	})

	h := c.opts.eventHandler
	if h == nil {
		return b
	}
	b.On(app.EventCmdRemoved, func(m app.Message) {
		cmd, _ := m.Payload.(string)
		h.OnCommandDone(CommandEvent{Command: cmd})
	})
	b.On(app.EventCmdDiscarded, func(m app.Message) {
		d, _ := m.Payload.(app.Discard)
		h.OnCommandDone(CommandEvent{Command: d.Command, Err: d.Err})
	})
	b.On(app.EventRTC, func(m app.Message) {
		v, _ := m.Payload.(string)
		h.OnClockReport(v)
	})
	return b
}

// stateEmitter adapts EventHandler to the lifecycle emitter.
type stateEmitter struct {
	handler EventHandler
}

func (e stateEmitter) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
		At:       time.Now(),
	})
}

func convertState(s app.State) State {
	switch s {
	case app.StateStopped:
		return StateStopped
	case app.StateStarting:
		return StateStarting
	case app.StateRunning:
		return StateRunning
	case app.StateStopping:
		return StateStopping
	case app.StateCrashed:
		return StateCrashed
	default:
		return StateStopped
	}
}
