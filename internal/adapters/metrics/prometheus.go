// Package metrics exports bridge counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/clockbridge/internal/domain"
	"github.com/bft-labs/clockbridge/internal/ports"
)

const namespace = "clockbridge"

// Prometheus implements ports.Metrics on its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	queued      prometheus.Counter
	transmitted prometheus.Counter
	acked       prometheus.Counter
	retried     prometheus.Counter
	discarded   prometheus.Counter
	queueLength prometheus.Gauge
	responses   *prometheus.CounterVec
	rejected    *prometheus.CounterVec
}

// NewPrometheus registers the bridge collectors plus the Go runtime and
// process collectors on a fresh registry.
func NewPrometheus() *Prometheus {
	counter := func(subsystem, name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		})
	}

	p := &Prometheus{
		registry:    prometheus.NewRegistry(),
		queued:      counter("queue", "commands_queued_total", "Commands appended to the queue."),
		transmitted: counter("queue", "transmissions_total", "Commands handed to the serial line, retries included."),
		acked:       counter("queue", "commands_acked_total", "Commands acknowledged and removed."),
		retried:     counter("queue", "retries_total", "Retransmissions after a nack or response timeout."),
		discarded:   counter("queue", "commands_discarded_total", "Commands dropped after exhausting retries."),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "length",
			Help:      "Commands currently queued, including the one in flight.",
		}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "serial",
			Name:      "responses_total",
			Help:      "Lines read from the serial device by classification.",
		}, []string{"kind"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "payloads_rejected_total",
			Help:      "Remote events dropped because their payload was invalid.",
		}, []string{"event"}),
	}

	p.registry.MustRegister(
		p.queued, p.transmitted, p.acked, p.retried, p.discarded,
		p.queueLength, p.responses, p.rejected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// Registry returns the registry holding the bridge collectors.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) CommandQueued()      { p.queued.Inc() }
func (p *Prometheus) CommandTransmitted() { p.transmitted.Inc() }
func (p *Prometheus) CommandAcked()       { p.acked.Inc() }
func (p *Prometheus) CommandRetried()     { p.retried.Inc() }
func (p *Prometheus) CommandDiscarded()   { p.discarded.Inc() }
func (p *Prometheus) QueueLength(n int)   { p.queueLength.Set(float64(n)) }

func (p *Prometheus) ResponseReceived(kind domain.ResponseKind) {
	p.responses.WithLabelValues(kind.String()).Inc()
}

func (p *Prometheus) PayloadRejected(kind domain.EventKind) {
	p.rejected.WithLabelValues(kind.String()).Inc()
}

var _ ports.Metrics = (*Prometheus)(nil)
