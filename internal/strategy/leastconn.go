package strategy

import (
	"github.com/angeloszaimis/server-selector/internal/pool"
)

type leastConnStrategy struct {
}

func (l *leastConnStrategy) Select(p *pool.Pool, _ RoutingContext) (string, error) {
	return selectAndReserve(p, func(s *pool.Server) float64 {
		return float64(s.ActiveConnections)
	})
}

func (l *leastConnStrategy) Release(p *pool.Pool, id string) {
	release(p, id)
}

func (l *leastConnStrategy) Name() Kind {
	return KindLeastConn
}

func NewLeastConnStrategy() Strategy {
	return &leastConnStrategy{}
}

type weightedLeastConnStrategy struct {
}

func (w *weightedLeastConnStrategy) Select(p *pool.Pool, _ RoutingContext) (string, error) {
	return selectAndReserve(p, (*pool.Server).ConnsPerWeight)
}

func (w *weightedLeastConnStrategy) Release(p *pool.Pool, id string) {
	release(p, id)
}

func (w *weightedLeastConnStrategy) Name() Kind {
	return KindWeightedLeastConn
}

// NewWeightedLeastConnStrategy selects the server with the lowest ratio of
// active connections to weight.
func NewWeightedLeastConnStrategy() Strategy {
	return &weightedLeastConnStrategy{}
}

// selectAndReserve picks the lowest scoring server and counts the new
// connection against it.
func selectAndReserve(p *pool.Pool, score func(*pool.Server) float64) (string, error) {
	if p.IsEmpty() {
		return "", pool.ErrEmptyPool
	}

	chosen := p.All()[minIndex(p.All(), score)]
	chosen.ActiveConnections++

	return chosen.ID, nil
}

// release ignores unknown ids; a connection may finish after its server left the pool.
func release(p *pool.Pool, id string) {
	_ = p.DecrementConn(id)
}
