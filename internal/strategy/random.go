package strategy

import (
	"math/rand/v2"

	"github.com/angeloszaimis/server-selector/internal/pool"
)

type randomStrategy struct {
	rng *rand.Rand
}

func (r *randomStrategy) Select(p *pool.Pool, _ RoutingContext) (string, error) {
	if p.IsEmpty() {
		return "", pool.ErrEmptyPool
	}

	n := p.Len()

	var index int
	if r.rng != nil {
		index = r.rng.IntN(n)
	} else {
		index = rand.IntN(n)
	}

	return p.All()[index].ID, nil
}

func (r *randomStrategy) Name() Kind {
	return KindRandom
}

// NewRandomStrategy picks uniformly using rng, or the global source when rng is nil.
func NewRandomStrategy(rng *rand.Rand) Strategy {
	return &randomStrategy{rng: rng}
}
