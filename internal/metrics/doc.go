// Package metrics collects selection and load events emitted by the load
// balancer.
//
// It uses a channel-based event pipeline to asynchronously collect:
//   - Selection counts per server and the active strategy
//   - Connection releases per server
//   - Reported response time samples with percentile calculations (P50, P95, P99)
//   - Last reported bandwidth per server
//   - Failed selections (empty pool)
//
// The collector runs in a dedicated goroutine so the selection path never
// waits on it. Events are sent with non-blocking semantics and dropped when
// the buffer is full.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger, prometheus.NewRegistry())
//	collector.Start(ctx)
//
//	collector.EventChannel() <- metrics.MetricEvent{
//		Type:     metrics.EventServerSelected,
//		Server:   "server1",
//		Strategy: "least-conn",
//	}
//
//	snapshot := collector.Snapshot()
//
// When a prometheus.Registerer is supplied the same events also update
// Prometheus counters and gauges.
package metrics
