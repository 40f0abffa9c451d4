// Package domain contains the core domain types and pure functions for clockbridge.
//
// This package is the innermost layer of the bridge. It has no dependencies on
// infrastructure concerns (serial ports, the remote event transport, logging)
// and performs no I/O.
//
// # Contents
//
//   - [EventKind] and the typed payloads [DoorState], [ClockConfig] and
//     [ClimateData]: remote event payloads and the command each one builds
//   - [Classify] and [LineBuffer]: turning serial bytes into a [Response]
//   - [Category]: the tag carried by every log line the bridge produces
//   - Domain errors, checked with errors.Is
//
// # Design Principles
//
// Domain values are:
//   - Immutable after construction (where practical)
//   - Free of infrastructure dependencies
//   - Testable without mocks or external systems
package domain
