package strategy

import (
	"unicode/utf16"

	"github.com/angeloszaimis/server-selector/internal/pool"
)

// ipHashStrategy maps a source address to a pool position. The mapping is
// stable only while the pool size and order stay the same; resizing the pool
// moves most addresses.
type ipHashStrategy struct{}

func (h *ipHashStrategy) Select(p *pool.Pool, rc RoutingContext) (string, error) {
	if p.IsEmpty() {
		return "", pool.ErrEmptyPool
	}

	return p.All()[hashIndex(rc.SourceAddress, p.Len())].ID, nil
}

func (h *ipHashStrategy) Name() Kind {
	return KindIPHash
}

func NewIPHashStrategy() Strategy {
	return &ipHashStrategy{}
}

// hashIndex folds the UTF-16 code units of addr with hash*31+c in 32-bit
// signed arithmetic and reduces the absolute value modulo n, which must be
// positive.
func hashIndex(addr string, n int) int {
	var hash int32
	for _, c := range utf16.Encode([]rune(addr)) {
		hash = hash*31 + int32(c)
	}

	v := int64(hash)
	if v < 0 {
		v = -v
	}

	return int(v % int64(n))
}
