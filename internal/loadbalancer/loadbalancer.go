package loadbalancer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/angeloszaimis/server-selector/internal/metrics"
	"github.com/angeloszaimis/server-selector/internal/pool"
	"github.com/angeloszaimis/server-selector/internal/strategy"
)

type LoadBalancer struct {
	logger    *slog.Logger
	pool      *pool.Pool
	strategy  strategy.Strategy
	collector *metrics.Collector
	mutex     sync.Mutex

	// unknownWarn limits warnings about updates for ids the pool does not know.
	unknownWarn rate.Sometimes
}

// NewLoadBalancer takes ownership of p; callers must not touch it afterwards
// except through the returned LoadBalancer. collector may be nil.
func NewLoadBalancer(logger *slog.Logger, p *pool.Pool, strat strategy.Strategy, collector *metrics.Collector) *LoadBalancer {
	lb := &LoadBalancer{
		logger:      logger,
		pool:        p,
		strategy:    strat,
		collector:   collector,
		unknownWarn: rate.Sometimes{First: 5, Interval: 10 * time.Second},
	}

	lb.emit(metrics.MetricEvent{
		Type:     metrics.EventStrategyChanged,
		Strategy: string(strat.Name()),
	})

	return lb
}

// PickServer asks the active strategy for the next server. It fails with
// pool.ErrEmptyPool when there is nothing to choose from.
func (lb *LoadBalancer) PickServer(rc strategy.RoutingContext) (string, error) {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	id, err := lb.strategy.Select(lb.pool, rc)
	if err != nil {
		lb.emit(metrics.MetricEvent{
			Type:     metrics.EventSelectionFailed,
			Strategy: string(lb.strategy.Name()),
		})
		return "", fmt.Errorf("pick server with %s: %w", lb.strategy.Name(), err)
	}

	event := metrics.MetricEvent{
		Type:     metrics.EventServerSelected,
		Server:   id,
		Strategy: string(lb.strategy.Name()),
	}
	if s, err := lb.pool.Get(id); err == nil {
		event.Connections = s.ActiveConnections
	}
	lb.emit(event)

	return id, nil
}

// ReleaseConnection hands a finished connection back to strategies that
// count connections. It is a no-op for other strategies, for unknown ids and
// for servers already at zero.
func (lb *LoadBalancer) ReleaseConnection(id string) {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	releaser, ok := lb.strategy.(strategy.Releaser)
	if !ok {
		return
	}

	s, err := lb.pool.Get(id)
	if err != nil {
		lb.logger.Debug("Release for unknown server ignored", slog.String("server", id))
		return
	}

	releaser.Release(lb.pool, id)
	lb.emit(metrics.MetricEvent{
		Type:        metrics.EventConnectionReleased,
		Server:      id,
		Connections: s.ActiveConnections,
	})
}

// SetStrategy replaces the active strategy with a freshly built one, so no
// private state carries over.
func (lb *LoadBalancer) SetStrategy(kind strategy.Kind, params strategy.Params) error {
	strat, err := strategy.New(kind, params)
	if err != nil {
		return err
	}

	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	previous := lb.strategy.Name()
	lb.strategy = strat

	lb.logger.Info("Strategy changed",
		slog.String("from", string(previous)),
		slog.String("to", string(kind)))
	lb.emit(metrics.MetricEvent{
		Type:     metrics.EventStrategyChanged,
		Strategy: string(kind),
	})

	return nil
}

// ResetStrategy rewinds the private state of the active strategy, such as a
// round robin cursor or a hash ring, without replacing it. Strategies that
// keep no state are left alone.
func (lb *LoadBalancer) ResetStrategy() {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	resetter, ok := lb.strategy.(strategy.Resetter)
	if !ok {
		return
	}

	resetter.Reset()
	lb.logger.Debug("Strategy state reset", slog.String("strategy", string(lb.strategy.Name())))
}

func (lb *LoadBalancer) Strategy() strategy.Kind {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()
	return lb.strategy.Name()
}

func (lb *LoadBalancer) AddServer(s *pool.Server) error {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	if err := lb.pool.Add(s); err != nil {
		return err
	}

	lb.logger.Info("Server added",
		slog.String("server", s.ID),
		slog.Int("weight", s.Weight))
	return nil
}

func (lb *LoadBalancer) RemoveServer(id string) error {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	if err := lb.pool.Remove(id); err != nil {
		return err
	}

	lb.logger.Info("Server removed", slog.String("server", id))
	return nil
}

func (lb *LoadBalancer) SetWeight(id string, weight int) error {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()
	return lb.pool.SetWeight(id, weight)
}

// Servers returns a copy of every server in pool order.
func (lb *LoadBalancer) Servers() []pool.Server {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()
	return lb.pool.Snapshot()
}

func (lb *LoadBalancer) OnConnectionOpened(id string) error {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	if err := lb.pool.IncrementConn(id); err != nil {
		return lb.checkUpdate(id, err)
	}

	lb.emitConnections(id)
	return nil
}

func (lb *LoadBalancer) OnConnectionClosed(id string) error {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	if err := lb.pool.DecrementConn(id); err != nil {
		return lb.checkUpdate(id, err)
	}

	lb.emitConnections(id)
	return nil
}

func (lb *LoadBalancer) OnResponseTimeSample(id string, rt time.Duration) error {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	if err := lb.pool.RecordResponseTime(id, rt); err != nil {
		return lb.checkUpdate(id, err)
	}

	lb.emit(metrics.MetricEvent{
		Type:     metrics.EventResponseSample,
		Server:   id,
		Duration: max(rt, 0),
	})
	return nil
}

func (lb *LoadBalancer) OnBandwidthSample(id string, usage float64) error {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	if err := lb.pool.RecordBandwidth(id, usage); err != nil {
		return lb.checkUpdate(id, err)
	}

	s, _ := lb.pool.Get(id)
	lb.emit(metrics.MetricEvent{
		Type:      metrics.EventBandwidthSample,
		Server:    id,
		Bandwidth: s.LastBandwidth,
	})
	return nil
}

// checkUpdate logs rejected updates for unknown servers and passes err through.
func (lb *LoadBalancer) checkUpdate(id string, err error) error {
	if errors.Is(err, pool.ErrNotFound) {
		lb.unknownWarn.Do(func() {
			lb.logger.Warn("Metric update for unknown server", slog.String("server", id))
		})
	}

	return err
}

func (lb *LoadBalancer) emitConnections(id string) {
	s, err := lb.pool.Get(id)
	if err != nil {
		return
	}

	lb.emit(metrics.MetricEvent{
		Type:        metrics.EventConnectionsChanged,
		Server:      id,
		Connections: s.ActiveConnections,
	})
}

func (lb *LoadBalancer) emit(event metrics.MetricEvent) {
	if lb.collector == nil {
		return
	}

	lb.collector.Emit(event)
}
