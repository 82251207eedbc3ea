package strategy

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/angeloszaimis/server-selector/internal/pool"
)

type Kind string

const (
	KindRoundRobin         Kind = "round-robin"
	KindWeightedRoundRobin Kind = "weighted-round-robin"
	KindRandom             Kind = "random"
	KindIPHash             Kind = "ip-hash"
	KindConsistentHash     Kind = "consistent-hash"
	KindLeastConn          Kind = "least-conn"
	KindWeightedLeastConn  Kind = "weighted-least-conn"
	KindLeastResponse      Kind = "least-response"
	KindLeastBandwidth     Kind = "least-bandwidth"
)

var ErrUnknownStrategy = errors.New("unknown strategy")

// RoutingContext carries the per-request data a strategy may use.
type RoutingContext struct {
	SourceAddress string
}

type Strategy interface {
	Select(p *pool.Pool, rc RoutingContext) (string, error)
	Name() Kind
}

// Releaser is implemented by strategies that count the connections they hand out.
type Releaser interface {
	Release(p *pool.Pool, id string)
}

// Resetter is implemented by strategies that keep private selection state.
type Resetter interface {
	Reset()
}

type Params struct {
	// VirtualNodes is the number of ring positions per server for consistent hashing.
	VirtualNodes int
	// Rand is the source used by the random strategy. Nil uses the global source.
	Rand *rand.Rand
}

func Kinds() []Kind {
	return []Kind{
		KindRoundRobin,
		KindWeightedRoundRobin,
		KindRandom,
		KindIPHash,
		KindConsistentHash,
		KindLeastConn,
		KindWeightedLeastConn,
		KindLeastResponse,
		KindLeastBandwidth,
	}
}

func New(kind Kind, params Params) (Strategy, error) {
	switch kind {
	case KindRoundRobin:
		return NewRoundRobinStrategy(), nil
	case KindWeightedRoundRobin:
		return NewWeightedRoundRobinStrategy(), nil
	case KindRandom:
		return NewRandomStrategy(params.Rand), nil
	case KindIPHash:
		return NewIPHashStrategy(), nil
	case KindConsistentHash:
		return NewConsistentHashStrategy(params.VirtualNodes), nil
	case KindLeastConn:
		return NewLeastConnStrategy(), nil
	case KindWeightedLeastConn:
		return NewWeightedLeastConnStrategy(), nil
	case KindLeastResponse:
		return NewLeastResponseStrategy(), nil
	case KindLeastBandwidth:
		return NewLeastBandwidthStrategy(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, kind)
	}
}

// minIndex returns the position of the first server with the smallest score.
func minIndex(servers []*pool.Server, score func(*pool.Server) float64) int {
	best := 0
	bestScore := score(servers[0])

	for i := 1; i < len(servers); i++ {
		if s := score(servers[i]); s < bestScore {
			best = i
			bestScore = s
		}
	}

	return best
}
