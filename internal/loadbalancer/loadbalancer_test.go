package loadbalancer_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/angeloszaimis/server-selector/internal/loadbalancer"
	"github.com/angeloszaimis/server-selector/internal/metrics"
	"github.com/angeloszaimis/server-selector/internal/pool"
	"github.com/angeloszaimis/server-selector/internal/strategy"
)

var _ = Describe("LoadBalancer", func() {
	var (
		lb  *loadbalancer.LoadBalancer
		log *slog.Logger
	)

	newLoadBalancer := func(kind strategy.Kind, weights ...int) *loadbalancer.LoadBalancer {
		p := pool.New()
		for i, w := range weights {
			Expect(p.Add(pool.NewServer(serverID(i), pool.WithWeight(w)))).To(Succeed())
		}

		strat, err := strategy.New(kind, strategy.Params{})
		Expect(err).NotTo(HaveOccurred())

		return loadbalancer.NewLoadBalancer(log, p, strat, nil)
	}

	connectionsOf := func(id string) int {
		for _, s := range lb.Servers() {
			if s.ID == id {
				return s.ActiveConnections
			}
		}
		Fail("server " + id + " not in pool")
		return -1
	}

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
		lb = newLoadBalancer(strategy.KindRoundRobin, 1, 1, 1)
	})

	Describe("NewLoadBalancer", func() {
		It("should create a load balancer with given strategy", func() {
			Expect(lb).NotTo(BeNil())
			Expect(lb.Strategy()).To(Equal(strategy.KindRoundRobin))
		})
	})

	Describe("PickServer", func() {
		It("should delegate to the strategy", func() {
			ids := []string{}
			for i := 0; i < 4; i++ {
				id, err := lb.PickServer(strategy.RoutingContext{})
				Expect(err).NotTo(HaveOccurred())
				ids = append(ids, id)
			}
			Expect(ids).To(Equal([]string{"server1", "server2", "server3", "server1"}))
		})

		It("should route by source address with ip-hash", func() {
			lb = newLoadBalancer(strategy.KindIPHash, 1, 1, 1)

			id, err := lb.PickServer(strategy.RoutingContext{SourceAddress: "192.168.1.1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal("server2"))
		})

		Context("with an empty pool", func() {
			BeforeEach(func() {
				lb = newLoadBalancer(strategy.KindLeastConn)
			})

			It("should fail with ErrEmptyPool", func() {
				id, err := lb.PickServer(strategy.RoutingContext{})
				Expect(err).To(MatchError(pool.ErrEmptyPool))
				Expect(id).To(BeEmpty())
			})

			It("should fail again after the last server is removed", func() {
				Expect(lb.AddServer(pool.NewServer("only"))).To(Succeed())
				_, err := lb.PickServer(strategy.RoutingContext{})
				Expect(err).NotTo(HaveOccurred())

				Expect(lb.RemoveServer("only")).To(Succeed())
				_, err = lb.PickServer(strategy.RoutingContext{})
				Expect(err).To(MatchError(pool.ErrEmptyPool))
				Expect(lb.Servers()).To(BeEmpty())
			})
		})
	})

	Describe("ReleaseConnection", func() {
		Context("with least connections", func() {
			BeforeEach(func() {
				lb = newLoadBalancer(strategy.KindLeastConn, 1, 1)
			})

			It("should decrement the released server", func() {
				id, err := lb.PickServer(strategy.RoutingContext{})
				Expect(err).NotTo(HaveOccurred())
				Expect(connectionsOf(id)).To(Equal(1))

				lb.ReleaseConnection(id)
				Expect(connectionsOf(id)).To(BeZero())
			})

			It("should be idempotent at zero", func() {
				lb.ReleaseConnection("server1")
				lb.ReleaseConnection("server1")
				Expect(connectionsOf("server1")).To(BeZero())
			})

			It("should ignore unknown servers", func() {
				Expect(func() { lb.ReleaseConnection("missing") }).NotTo(Panic())
			})
		})

		Context("with a strategy that does not count connections", func() {
			It("should be a no-op", func() {
				Expect(lb.OnConnectionOpened("server1")).To(Succeed())
				lb.ReleaseConnection("server1")
				Expect(connectionsOf("server1")).To(Equal(1))
			})
		})
	})

	Describe("SetStrategy", func() {
		It("should switch the active strategy", func() {
			Expect(lb.SetStrategy(strategy.KindLeastConn, strategy.Params{})).To(Succeed())
			Expect(lb.Strategy()).To(Equal(strategy.KindLeastConn))

			id, err := lb.PickServer(strategy.RoutingContext{})
			Expect(err).NotTo(HaveOccurred())
			Expect(connectionsOf(id)).To(Equal(1))
		})

		It("should reset strategy state", func() {
			_, _ = lb.PickServer(strategy.RoutingContext{})
			_, _ = lb.PickServer(strategy.RoutingContext{})

			Expect(lb.SetStrategy(strategy.KindRoundRobin, strategy.Params{})).To(Succeed())

			id, err := lb.PickServer(strategy.RoutingContext{})
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal("server1"))
		})

		It("should keep the current strategy for unknown kinds", func() {
			err := lb.SetStrategy("unknown", strategy.Params{})
			Expect(err).To(MatchError(strategy.ErrUnknownStrategy))
			Expect(lb.Strategy()).To(Equal(strategy.KindRoundRobin))
		})
	})

	Describe("ResetStrategy", func() {
		It("should rewind round robin to the first server", func() {
			for _, expected := range []string{"server1", "server2"} {
				id, err := lb.PickServer(strategy.RoutingContext{})
				Expect(err).NotTo(HaveOccurred())
				Expect(id).To(Equal(expected))
			}

			lb.ResetStrategy()

			id, err := lb.PickServer(strategy.RoutingContext{})
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal("server1"))
		})

		It("should restart the weighted round robin cycle", func() {
			lb = newLoadBalancer(strategy.KindWeightedRoundRobin, 3, 2, 1)
			for range 3 {
				_, err := lb.PickServer(strategy.RoutingContext{})
				Expect(err).NotTo(HaveOccurred())
			}

			lb.ResetStrategy()

			var picked []string
			for range 6 {
				id, err := lb.PickServer(strategy.RoutingContext{})
				Expect(err).NotTo(HaveOccurred())
				picked = append(picked, id)
			}
			Expect(picked).To(Equal([]string{"server1", "server1", "server2", "server1", "server2", "server3"}))
		})

		It("should leave stateless strategies and connection counts alone", func() {
			lb = newLoadBalancer(strategy.KindLeastConn, 1, 1)
			_, err := lb.PickServer(strategy.RoutingContext{})
			Expect(err).NotTo(HaveOccurred())

			lb.ResetStrategy()

			Expect(lb.Strategy()).To(Equal(strategy.KindLeastConn))
			Expect(connectionsOf("server1")).To(Equal(1))
		})
	})

	Describe("Pool mutation", func() {
		It("should reject duplicates and invalid weights", func() {
			Expect(lb.AddServer(pool.NewServer("server1"))).To(MatchError(pool.ErrDuplicateID))
			Expect(lb.AddServer(pool.NewServer("server4", pool.WithWeight(0)))).To(MatchError(pool.ErrInvalidWeight))
			Expect(lb.Servers()).To(HaveLen(3))
		})

		It("should fail to remove unknown servers", func() {
			Expect(lb.RemoveServer("missing")).To(MatchError(pool.ErrNotFound))
		})

		It("should recompute weighted round robin after removal", func() {
			lb = newLoadBalancer(strategy.KindWeightedRoundRobin, 3, 2, 1)
			for i := 0; i < 2; i++ {
				_, err := lb.PickServer(strategy.RoutingContext{})
				Expect(err).NotTo(HaveOccurred())
			}

			Expect(lb.RemoveServer("server1")).To(Succeed())

			counts := map[string]int{}
			for i := 0; i < 3; i++ {
				id, err := lb.PickServer(strategy.RoutingContext{})
				Expect(err).NotTo(HaveOccurred())
				counts[id]++
			}
			Expect(counts).To(Equal(map[string]int{"server2": 2, "server3": 1}))
		})

		It("should apply weight updates", func() {
			lb = newLoadBalancer(strategy.KindWeightedRoundRobin, 1, 1)
			Expect(lb.SetWeight("server1", 2)).To(Succeed())
			Expect(lb.SetWeight("server1", 0)).To(MatchError(pool.ErrInvalidWeight))
			Expect(lb.SetWeight("missing", 2)).To(MatchError(pool.ErrNotFound))

			counts := map[string]int{}
			for i := 0; i < 3; i++ {
				id, _ := lb.PickServer(strategy.RoutingContext{})
				counts[id]++
			}
			Expect(counts).To(Equal(map[string]int{"server1": 2, "server2": 1}))
		})
	})

	Describe("MetricsUpdater", func() {
		var updater loadbalancer.MetricsUpdater

		BeforeEach(func() {
			lb = newLoadBalancer(strategy.KindLeastResponse, 1, 1, 1)
			updater = lb
		})

		It("should steer least response time with samples", func() {
			Expect(updater.OnResponseTimeSample("server1", 20*time.Millisecond)).To(Succeed())
			Expect(updater.OnResponseTimeSample("server2", 15*time.Millisecond)).To(Succeed())
			Expect(updater.OnResponseTimeSample("server3", 30*time.Millisecond)).To(Succeed())

			id, err := lb.PickServer(strategy.RoutingContext{})
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal("server2"))
		})

		It("should steer least bandwidth with samples", func() {
			Expect(lb.SetStrategy(strategy.KindLeastBandwidth, strategy.Params{})).To(Succeed())
			Expect(updater.OnBandwidthSample("server1", 100)).To(Succeed())
			Expect(updater.OnBandwidthSample("server2", 200)).To(Succeed())
			Expect(updater.OnBandwidthSample("server3", 50)).To(Succeed())

			id, err := lb.PickServer(strategy.RoutingContext{})
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal("server3"))
		})

		It("should clamp negative samples", func() {
			Expect(updater.OnResponseTimeSample("server1", -time.Second)).To(Succeed())
			Expect(updater.OnBandwidthSample("server1", -10)).To(Succeed())

			s := lb.Servers()[0]
			Expect(s.LastResponseTime).To(BeZero())
			Expect(s.LastBandwidth).To(BeZero())
		})

		It("should track connections opened and closed by collaborators", func() {
			Expect(updater.OnConnectionOpened("server2")).To(Succeed())
			Expect(updater.OnConnectionOpened("server2")).To(Succeed())
			Expect(updater.OnConnectionClosed("server2")).To(Succeed())
			Expect(connectionsOf("server2")).To(Equal(1))

			Expect(updater.OnConnectionClosed("server3")).To(Succeed())
			Expect(connectionsOf("server3")).To(BeZero())
		})

		It("should fail with ErrNotFound for unknown servers", func() {
			Expect(updater.OnConnectionOpened("missing")).To(MatchError(pool.ErrNotFound))
			Expect(updater.OnConnectionClosed("missing")).To(MatchError(pool.ErrNotFound))
			Expect(updater.OnResponseTimeSample("missing", time.Millisecond)).To(MatchError(pool.ErrNotFound))
			Expect(updater.OnBandwidthSample("missing", 1)).To(MatchError(pool.ErrNotFound))
			Expect(lb.Servers()).To(HaveLen(3))
		})
	})

	Describe("with a metrics collector", func() {
		It("should report selections, releases and samples", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			collector := metrics.NewCollector(100, log, nil)
			collector.Start(ctx)

			p := pool.New()
			Expect(p.Add(pool.NewServer("server1"))).To(Succeed())
			lb = loadbalancer.NewLoadBalancer(log, p, strategy.NewLeastConnStrategy(), collector)

			id, err := lb.PickServer(strategy.RoutingContext{})
			Expect(err).NotTo(HaveOccurred())
			lb.ReleaseConnection(id)
			Expect(lb.OnResponseTimeSample(id, 40*time.Millisecond)).To(Succeed())

			Eventually(func() metrics.ServerMetrics {
				return collector.Snapshot().Servers["server1"]
			}).Should(And(
				HaveField("Selections", int64(1)),
				HaveField("Releases", int64(1)),
				HaveField("AvgResponse", 40*time.Millisecond),
			))
			Expect(collector.Snapshot().Algorithm).To(Equal("least-conn"))
		})

		It("should export connections reported by collaborators", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			reg := prometheus.NewRegistry()
			collector := metrics.NewCollector(100, log, reg)
			collector.Start(ctx)

			p := pool.New()
			Expect(p.Add(pool.NewServer("server1"))).To(Succeed())
			lb = loadbalancer.NewLoadBalancer(log, p, strategy.NewRoundRobinStrategy(), collector)

			Expect(lb.OnConnectionOpened("server1")).To(Succeed())
			Expect(lb.OnConnectionOpened("server1")).To(Succeed())
			Expect(lb.OnConnectionOpened("server1")).To(Succeed())
			Expect(lb.OnConnectionClosed("server1")).To(Succeed())

			expected := `
# HELP selector_active_connections Active connections per server after the last selection, release or reported change
# TYPE selector_active_connections gauge
selector_active_connections{server="server1"} 2
`
			Eventually(func() error {
				return testutil.GatherAndCompare(reg, strings.NewReader(expected), "selector_active_connections")
			}).Should(Succeed())
		})
	})
})

func serverID(i int) string {
	return "server" + string(rune('1'+i))
}
