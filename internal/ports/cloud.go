package ports

import (
	"context"

	"github.com/bft-labs/clockbridge/internal/domain"
)

// EventHandler receives remote events. It may be called from any goroutine.
type EventHandler func(domain.RemoteEvent)

// Cloud is the remote event source the bridge subscribes to.
type Cloud interface {
	// Login authenticates with the event source. Nothing else is attempted
	// until it succeeds.
	Login(ctx context.Context) error

	// Subscribe registers handler for every event name in names.
	// Delivery starts once Subscribe returns and stops when ctx is done.
	Subscribe(ctx context.Context, names []string, handler EventHandler) error

	// Device returns a handle to the remote device with the given id.
	Device(ctx context.Context, id string) (Device, error)
}

// Device is a remote device that exposes callable functions.
type Device interface {
	ID() string

	// CallFunction invokes a named function on the device with a string argument.
	CallFunction(ctx context.Context, name, arg string) error
}
