package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angeloszaimis/server-selector/config"
	"github.com/angeloszaimis/server-selector/internal/httpserver"
	"github.com/angeloszaimis/server-selector/internal/loadbalancer"
	"github.com/angeloszaimis/server-selector/internal/metrics"
	"github.com/angeloszaimis/server-selector/internal/pool"
	"github.com/angeloszaimis/server-selector/internal/strategy"
	"github.com/angeloszaimis/server-selector/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment, cfg.Logging.File)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	collector := metrics.NewCollector(cfg.Metrics.BufferSize, log, reg)
	collector.Start(ctx)

	p, err := buildPool(cfg.Servers)
	if err != nil {
		log.Error("Failed to build server pool", slog.Any("err", err))
		os.Exit(1)
	}

	strat := createStrategy(log, cfg.Strategy)

	lb := loadbalancer.NewLoadBalancer(log, p, strat, collector)

	srv, err := httpserver.New(cfg.Server.Address, setupRouter(lb, collector, reg))
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	sim, err := newSimulator(log, lb, cfg.Simulation)
	if err != nil {
		log.Error("Failed to create simulator", slog.Any("err", err))
		os.Exit(1)
	}

	go func() {
		if err := sim.Run(ctx); err != nil {
			log.Warn("Simulation stopped early", slog.Any("err", err))
		}
	}()

	log.Info("Server selector started",
		slog.String("addr", cfg.Server.Address),
		slog.String("strategy", string(strat.Name())),
		slog.Int("servers", p.Len()))

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting server", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func buildPool(servers []config.PoolServerConfig) (*pool.Pool, error) {
	p := pool.New()

	for _, sc := range servers {
		s := pool.NewServer(sc.ID, pool.WithWeight(sc.EffectiveWeight()))
		if err := p.Add(s); err != nil {
			return nil, fmt.Errorf("add server %q: %w", sc.ID, err)
		}
	}

	return p, nil
}

func createStrategy(logger *slog.Logger, sc config.StrategyConfig) strategy.Strategy {
	params := strategy.Params{VirtualNodes: sc.VirtualNodes}
	if sc.Seed != 0 {
		params.Rand = rand.New(rand.NewPCG(sc.Seed, sc.Seed))
	}

	strat, err := strategy.New(strategy.Kind(sc.Type), params)
	if err != nil {
		logger.Warn("Unknown strategy, defaulting to round-robin", slog.String("requested", sc.Type))
		return strategy.NewRoundRobinStrategy()
	}

	return strat
}
