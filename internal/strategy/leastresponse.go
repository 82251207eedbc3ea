package strategy

import (
	"github.com/angeloszaimis/server-selector/internal/pool"
)

// leastResponseStrategy relies on samples pushed through the metrics updater.
// Servers without a sample report zero and are therefore tried first.
type leastResponseStrategy struct{}

func (l *leastResponseStrategy) Select(p *pool.Pool, _ RoutingContext) (string, error) {
	if p.IsEmpty() {
		return "", pool.ErrEmptyPool
	}

	servers := p.All()
	chosen := servers[minIndex(servers, func(s *pool.Server) float64 {
		return float64(s.LastResponseTime)
	})]

	return chosen.ID, nil
}

func (l *leastResponseStrategy) Name() Kind {
	return KindLeastResponse
}

func NewLeastResponseStrategy() Strategy {
	return &leastResponseStrategy{}
}

type leastBandwidthStrategy struct{}

func (l *leastBandwidthStrategy) Select(p *pool.Pool, _ RoutingContext) (string, error) {
	if p.IsEmpty() {
		return "", pool.ErrEmptyPool
	}

	servers := p.All()
	chosen := servers[minIndex(servers, func(s *pool.Server) float64 {
		return s.LastBandwidth
	})]

	return chosen.ID, nil
}

func (l *leastBandwidthStrategy) Name() Kind {
	return KindLeastBandwidth
}

func NewLeastBandwidthStrategy() Strategy {
	return &leastBandwidthStrategy{}
}
