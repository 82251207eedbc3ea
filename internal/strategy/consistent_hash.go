package strategy

import (
	"hash/crc32"
	"sort"
	"strconv"

	"github.com/angeloszaimis/server-selector/internal/pool"
)

const defaultVirtualNodes = 100

type consistentHashStrategy struct {
	virtualNodes int
	ring         *ringSnapshot
	epoch        uint64
}

type ringSnapshot struct {
	positions []uint32
	owners    map[uint32]string
}

func buildRing(servers []*pool.Server, vnodes int) *ringSnapshot {
	rs := &ringSnapshot{
		positions: make([]uint32, 0, len(servers)*vnodes),
		owners:    make(map[uint32]string),
	}

	for _, s := range servers {
		for i := 0; i < vnodes; i++ {
			key := s.ID + "#" + strconv.Itoa(i)
			hash := crc32.ChecksumIEEE([]byte(key))

			if _, taken := rs.owners[hash]; taken {
				continue
			}

			rs.positions = append(rs.positions, hash)
			rs.owners[hash] = s.ID
		}
	}

	sort.Slice(rs.positions, func(i, j int) bool { return rs.positions[i] < rs.positions[j] })
	return rs
}

func (r *ringSnapshot) lookup(hash uint32) string {
	idx := sort.Search(len(r.positions), func(i int) bool {
		return r.positions[i] >= hash
	})

	if idx == len(r.positions) {
		idx = 0
	}

	return r.owners[r.positions[idx]]
}

// Select hashes the source address onto the ring. Unlike ip-hash, adding or
// removing a server only moves the addresses owned by that server.
func (s *consistentHashStrategy) Select(p *pool.Pool, rc RoutingContext) (string, error) {
	if p.IsEmpty() {
		return "", pool.ErrEmptyPool
	}

	if s.ring == nil || s.epoch != p.Epoch() {
		s.ring = buildRing(p.All(), s.virtualNodes)
		s.epoch = p.Epoch()
	}

	return s.ring.lookup(crc32.ChecksumIEEE([]byte(rc.SourceAddress))), nil
}

func (s *consistentHashStrategy) Reset() {
	s.ring = nil
}

func (s *consistentHashStrategy) Name() Kind {
	return KindConsistentHash
}

func NewConsistentHashStrategy(virtualNodes int) Strategy {
	if virtualNodes <= 0 {
		virtualNodes = defaultVirtualNodes
	}

	return &consistentHashStrategy{virtualNodes: virtualNodes}
}
