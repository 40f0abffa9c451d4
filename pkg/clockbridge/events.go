package clockbridge

import "time"

// State is the lifecycle state of a bridge.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// StateChangeEvent describes a lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
	At       time.Time
}

// CommandEvent describes a command leaving the queue.
type CommandEvent struct {
	Command string
	// Err is set when the command was discarded instead of acknowledged.
	Err error
}

// EventHandler receives bridge notifications. Embed NoopEventHandler to
// implement only some of the methods.
type EventHandler interface {
	OnStateChange(StateChangeEvent)
	OnCommandDone(CommandEvent)
	OnClockReport(value string)
}

// NoopEventHandler ignores every event.
type NoopEventHandler struct{}

func (NoopEventHandler) OnStateChange(StateChangeEvent) {}
func (NoopEventHandler) OnCommandDone(CommandEvent)     {}
func (NoopEventHandler) OnClockReport(string)           {}
