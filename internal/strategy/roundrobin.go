package strategy

import (
	"github.com/angeloszaimis/server-selector/internal/pool"
)

type roundRobinStrategy struct {
	current int
	epoch   uint64
}

func (rb *roundRobinStrategy) Select(p *pool.Pool, _ RoutingContext) (string, error) {
	if p.IsEmpty() {
		return "", pool.ErrEmptyPool
	}

	if p.Epoch() != rb.epoch {
		rb.current = 0
		rb.epoch = p.Epoch()
	}

	servers := p.All()
	chosen := servers[rb.current]
	rb.current = (rb.current + 1) % len(servers)

	return chosen.ID, nil
}

func (rb *roundRobinStrategy) Reset() {
	rb.current = 0
}

func (rb *roundRobinStrategy) Name() Kind {
	return KindRoundRobin
}

func NewRoundRobinStrategy() Strategy {
	return &roundRobinStrategy{}
}
