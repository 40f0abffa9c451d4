package clockbridge

import (
	"github.com/bft-labs/clockbridge/internal/ports"
)

// Re-exported collaborator interfaces, so embedders can supply their own.
type (
	Logger     = ports.Logger
	LogField   = ports.Field
	Cloud      = ports.Cloud
	Device     = ports.Device
	PortOpener = ports.PortOpener
	Discoverer = ports.Discoverer
	Metrics    = ports.Metrics
)

// Option configures optional behavior of a bridge.
type Option func(*options)

type options struct {
	logger       ports.Logger
	cloud        ports.Cloud
	opener       ports.PortOpener
	discoverer   ports.Discoverer
	hotplug      <-chan struct{}
	metrics      ports.Metrics
	eventHandler EventHandler
}

// WithLogger sets the logger. If not provided, nothing is logged.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithCloud sets the remote event source. Required.
func WithCloud(cloud Cloud) Option {
	return func(o *options) {
		o.cloud = cloud
	}
}

// WithPortOpener replaces the tarm/serial opener.
func WithPortOpener(opener PortOpener) Option {
	return func(o *options) {
		o.opener = opener
	}
}

// WithDiscoverer replaces the OS serial port enumerator.
func WithDiscoverer(d Discoverer) Option {
	return func(o *options) {
		o.discoverer = d
	}
}

// WithHotplug triggers an immediate device rescan on every receive from ch.
func WithHotplug(ch <-chan struct{}) Option {
	return func(o *options) {
		o.hotplug = ch
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithEventHandler sets a handler for bridge events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}
