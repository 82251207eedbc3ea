package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	concpool "github.com/sourcegraph/conc/pool"

	"github.com/angeloszaimis/server-selector/config"
	"github.com/angeloszaimis/server-selector/internal/loadbalancer"
	"github.com/angeloszaimis/server-selector/internal/strategy"
)

// simulator drives a synthetic request workload through the balancer,
// reporting the response time and bandwidth samples a proxy would observe.
type simulator struct {
	logger   *slog.Logger
	lb       *loadbalancer.LoadBalancer
	requests int
	workers  int
	clients  int
	interval time.Duration
}

func newSimulator(logger *slog.Logger, lb *loadbalancer.LoadBalancer, cfg config.SimulationConfig) (*simulator, error) {
	interval, err := time.ParseDuration(cfg.Interval)
	if err != nil {
		return nil, fmt.Errorf("parse simulation interval %q: %w", cfg.Interval, err)
	}

	return &simulator{
		logger:   logger,
		lb:       lb,
		requests: cfg.Requests,
		workers:  max(cfg.Workers, 1),
		clients:  max(cfg.Clients, 1),
		interval: interval,
	}, nil
}

// Run issues the configured number of requests and returns once all of them
// completed or ctx was cancelled.
func (s *simulator) Run(ctx context.Context) error {
	start := time.Now()

	p := concpool.New().WithContext(ctx).WithMaxGoroutines(s.workers)

	for i := range s.requests {
		if ctx.Err() != nil {
			break
		}
		p.Go(func(ctx context.Context) error {
			return s.request(ctx, i)
		})
	}

	if err := p.Wait(); err != nil {
		return err
	}

	s.logger.Info("Simulation finished",
		slog.Int("requests", s.requests),
		slog.Duration("elapsed", time.Since(start)))

	for _, srv := range s.lb.Servers() {
		s.logger.Info("Server state",
			slog.String("server", srv.ID),
			slog.Int("weight", srv.Weight),
			slog.Int("active_connections", srv.ActiveConnections),
			slog.Duration("last_response", srv.LastResponseTime),
			slog.Float64("last_bandwidth", srv.LastBandwidth))
	}

	return ctx.Err()
}

func (s *simulator) request(ctx context.Context, seq int) error {
	rc := strategy.RoutingContext{SourceAddress: clientAddress(rand.IntN(s.clients))}

	id, err := s.lb.PickServer(rc)
	if err != nil {
		s.logger.Warn("No server selected", slog.Int("seq", seq), slog.Any("err", err))
		return nil
	}

	latency := time.Duration(5+rand.IntN(95)) * time.Millisecond
	if s.interval > 0 {
		select {
		case <-ctx.Done():
			s.lb.ReleaseConnection(id)
			return ctx.Err()
		case <-time.After(s.interval):
		}
	}

	if err := s.lb.OnResponseTimeSample(id, latency); err != nil {
		s.logger.Debug("Response sample rejected", slog.String("server", id), slog.Any("err", err))
	}
	if err := s.lb.OnBandwidthSample(id, rand.Float64()*100); err != nil {
		s.logger.Debug("Bandwidth sample rejected", slog.String("server", id), slog.Any("err", err))
	}

	s.lb.ReleaseConnection(id)

	return nil
}

// clientAddress maps a client number onto a stable private IPv4 address.
func clientAddress(n int) string {
	return fmt.Sprintf("10.0.%d.%d", (n>>8)&0xff, n&0xff)
}
