package strategy

import (
	"github.com/angeloszaimis/server-selector/internal/pool"
)

// weightedRoundRobinStrategy implements GCD-smoothed weighted round-robin.
// The cursor walks the pool repeatedly; each time it wraps, the weight
// threshold drops by the GCD of all weights, and only servers whose weight
// reaches the threshold are chosen. Over sum(weights) calls every server is
// picked exactly weight/gcd times, interleaved rather than in blocks.
type weightedRoundRobinStrategy struct {
	cursor        int
	currentWeight int
	maxWeight     int
	gcd           int
	epoch         uint64
	derived       bool
}

// NewWeightedRoundRobinStrategy creates a weighted round-robin strategy instance.
func NewWeightedRoundRobinStrategy() Strategy {
	return &weightedRoundRobinStrategy{}
}

// Select advances the cursor until it reaches a server whose weight meets the
// current threshold. The walk terminates because the threshold is reset to
// the maximum weight, which at least one server always has.
func (w *weightedRoundRobinStrategy) Select(p *pool.Pool, _ RoutingContext) (string, error) {
	if p.IsEmpty() {
		return "", pool.ErrEmptyPool
	}

	if !w.derived || w.epoch != p.Epoch() {
		w.derive(p)
	}

	servers := p.All()
	n := len(servers)

	for {
		w.cursor = (w.cursor + 1) % n
		if w.cursor == 0 {
			w.currentWeight -= w.gcd
			if w.currentWeight <= 0 {
				w.currentWeight = w.maxWeight
			}
		}

		if servers[w.cursor].Weight >= w.currentWeight {
			return servers[w.cursor].ID, nil
		}
	}
}

func (w *weightedRoundRobinStrategy) Reset() {
	w.derived = false
}

func (w *weightedRoundRobinStrategy) Name() Kind {
	return KindWeightedRoundRobin
}

// State exposes the derived weight bounds, mainly for tests and diagnostics.
func (w *weightedRoundRobinStrategy) State() (maxWeight, gcd int) {
	return w.maxWeight, w.gcd
}

// derive recomputes the weight bounds for the current pool and restarts the walk.
func (w *weightedRoundRobinStrategy) derive(p *pool.Pool) {
	w.maxWeight = 0
	w.gcd = 0

	for _, s := range p.All() {
		w.maxWeight = max(w.maxWeight, s.Weight)
		w.gcd = gcd(w.gcd, s.Weight)
	}

	w.cursor = -1
	w.currentWeight = 0
	w.epoch = p.Epoch()
	w.derived = true
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
