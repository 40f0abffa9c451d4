// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// Ports are the boundaries between the bridge core and the outside world. They
// define what the core needs from external systems without specifying how those
// needs are fulfilled.
//
// # Port Interfaces
//
//   - [Cloud] and [Device]: the remote event source and the device publishing to it
//   - [Discoverer]: lists candidate serial devices
//   - [PortOpener] and [Port]: opens and drives the serial line
//   - [Logger]: Structured logging abstraction
//   - [Metrics]: counters and gauges for the command pipeline
//
// # Usage
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them with concrete
// implementations (tarm/serial, zerolog, Prometheus, etc.).
package ports
