package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "selector"

type exporter struct {
	selections   *prometheus.CounterVec
	releases     *prometheus.CounterVec
	failures     *prometheus.CounterVec
	connections  *prometheus.GaugeVec
	responseTime *prometheus.GaugeVec
	bandwidth    *prometheus.GaugeVec
}

func newExporter(reg prometheus.Registerer) *exporter {
	e := &exporter{
		selections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "selections_total",
				Help:      "Total number of servers picked, by server and strategy",
			},
			[]string{"server", "strategy"},
		),
		releases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "releases_total",
				Help:      "Total number of released connections",
			},
			[]string{"server"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "selection_failures_total",
				Help:      "Total number of selections that found no server",
			},
			[]string{"strategy"},
		),
		connections: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_connections",
				Help:      "Active connections per server after the last selection, release or reported change",
			},
			[]string{"server"},
		),
		responseTime: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_response_seconds",
				Help:      "Last reported response time per server",
			},
			[]string{"server"},
		),
		bandwidth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_bandwidth",
				Help:      "Last reported bandwidth usage per server",
			},
			[]string{"server"},
		),
	}

	reg.MustRegister(
		e.selections,
		e.releases,
		e.failures,
		e.connections,
		e.responseTime,
		e.bandwidth,
	)

	return e
}

func (e *exporter) observe(event MetricEvent) {
	switch event.Type {
	case EventServerSelected:
		e.selections.WithLabelValues(event.Server, event.Strategy).Inc()
		e.connections.WithLabelValues(event.Server).Set(float64(event.Connections))

	case EventSelectionFailed:
		e.failures.WithLabelValues(event.Strategy).Inc()

	case EventConnectionReleased:
		e.releases.WithLabelValues(event.Server).Inc()
		e.connections.WithLabelValues(event.Server).Set(float64(event.Connections))

	case EventConnectionsChanged:
		e.connections.WithLabelValues(event.Server).Set(float64(event.Connections))

	case EventResponseSample:
		e.responseTime.WithLabelValues(event.Server).Set(event.Duration.Seconds())

	case EventBandwidthSample:
		e.bandwidth.WithLabelValues(event.Server).Set(event.Bandwidth)
	}
}
