package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type EventType string

const (
	EventServerSelected     EventType = "server_selected"
	EventSelectionFailed    EventType = "selection_failed"
	EventConnectionReleased EventType = "connection_released"
	EventResponseSample     EventType = "response_sample"
	EventBandwidthSample    EventType = "bandwidth_sample"
	EventStrategyChanged    EventType = "strategy_changed"
	EventConnectionsChanged EventType = "connections_changed"
)

type MetricEvent struct {
	Type        EventType
	Timestamp   time.Time
	Server      string
	Strategy    string
	Duration    time.Duration
	Bandwidth   float64
	Connections int
}

type Collector struct {
	eventCh  chan MetricEvent
	metrics  *Metrics
	exporter *exporter
	logger   *slog.Logger
}

// NewCollector creates a collector with the given event buffer. reg may be
// nil, in which case nothing is exported to Prometheus.
func NewCollector(bufferSize int, logger *slog.Logger, reg prometheus.Registerer) *Collector {
	c := &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}

	if reg != nil {
		c.exporter = newExporter(reg)
	}

	return c
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

// Emit queues an event without blocking. It reports false when the event was dropped.
func (c *Collector) Emit(event MetricEvent) bool {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case c.eventCh <- event:
		return true
	default:
		return false
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventServerSelected:
		c.metrics.RecordSelection(event.Server)

	case EventSelectionFailed:
		c.metrics.RecordFailure()

	case EventConnectionReleased:
		c.metrics.RecordRelease(event.Server)

	case EventResponseSample:
		c.metrics.RecordResponse(event.Server, event.Duration)

	case EventBandwidthSample:
		c.metrics.RecordBandwidth(event.Server, event.Bandwidth)

	case EventStrategyChanged:
		c.metrics.SetAlgorithm(event.Strategy)

	case EventConnectionsChanged:
		// Only exported as a gauge.

	default:
		c.logger.Debug("Ignoring unknown metric event", slog.String("type", string(event.Type)))
		return
	}

	if c.exporter != nil {
		c.exporter.observe(event)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
