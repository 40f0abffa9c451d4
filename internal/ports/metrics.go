package ports

import "github.com/bft-labs/clockbridge/internal/domain"

// Metrics records command pipeline activity.
// Implementations must be safe for concurrent use.
type Metrics interface {
	CommandQueued()
	CommandTransmitted()
	CommandAcked()
	CommandRetried()
	CommandDiscarded()
	QueueLength(n int)
	ResponseReceived(kind domain.ResponseKind)
	PayloadRejected(kind domain.EventKind)
}

// NoopMetrics discards all measurements.
type NoopMetrics struct{}

func (NoopMetrics) CommandQueued()                       {}
func (NoopMetrics) CommandTransmitted()                  {}
func (NoopMetrics) CommandAcked()                        {}
func (NoopMetrics) CommandRetried()                      {}
func (NoopMetrics) CommandDiscarded()                    {}
func (NoopMetrics) QueueLength(int)                      {}
func (NoopMetrics) ResponseReceived(domain.ResponseKind) {}
func (NoopMetrics) PayloadRejected(domain.EventKind)     {}
