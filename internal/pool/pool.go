package pool

import (
	"fmt"
	"math"
	"time"
)

type Pool struct {
	servers []*Server
	index   map[string]int
	epoch   uint64
}

func New() *Pool {
	return &Pool{
		index: make(map[string]int),
	}
}

// Add appends a server to the pool. The pool is left unchanged on error.
func (p *Pool) Add(s *Server) error {
	if s.Weight < 1 {
		return fmt.Errorf("add %q with weight %d: %w", s.ID, s.Weight, ErrInvalidWeight)
	}

	if _, exists := p.index[s.ID]; exists {
		return fmt.Errorf("add %q: %w", s.ID, ErrDuplicateID)
	}

	p.index[s.ID] = len(p.servers)
	p.servers = append(p.servers, s)
	p.epoch++

	return nil
}

// Remove deletes a server and shifts the ones after it, so any index held
// by a strategy is invalid afterwards.
func (p *Pool) Remove(id string) error {
	i, ok := p.index[id]
	if !ok {
		return fmt.Errorf("remove %q: %w", id, ErrNotFound)
	}

	p.servers = append(p.servers[:i], p.servers[i+1:]...)
	delete(p.index, id)

	for j := i; j < len(p.servers); j++ {
		p.index[p.servers[j].ID] = j
	}
	p.epoch++

	return nil
}

func (p *Pool) Get(id string) (*Server, error) {
	i, ok := p.index[id]
	if !ok {
		return nil, fmt.Errorf("get %q: %w", id, ErrNotFound)
	}

	return p.servers[i], nil
}

// All returns the live ordered server list. Callers must not modify it.
func (p *Pool) All() []*Server {
	return p.servers
}

func (p *Pool) Len() int {
	return len(p.servers)
}

func (p *Pool) IsEmpty() bool {
	return len(p.servers) == 0
}

// Epoch changes whenever membership or any weight changes.
func (p *Pool) Epoch() uint64 {
	return p.epoch
}

func (p *Pool) SetWeight(id string, weight int) error {
	s, err := p.Get(id)
	if err != nil {
		return err
	}

	if weight < 1 {
		return fmt.Errorf("set weight of %q to %d: %w", id, weight, ErrInvalidWeight)
	}

	if s.Weight != weight {
		s.Weight = weight
		p.epoch++
	}

	return nil
}

// IncrementConn increments the active connection count.
func (p *Pool) IncrementConn(id string) error {
	s, err := p.Get(id)
	if err != nil {
		return err
	}

	s.ActiveConnections++
	return nil
}

// DecrementConn decrements the active connection count, never below zero.
func (p *Pool) DecrementConn(id string) error {
	s, err := p.Get(id)
	if err != nil {
		return err
	}

	if s.ActiveConnections > 0 {
		s.ActiveConnections--
	}
	return nil
}

// RecordResponseTime overwrites the last response time. Negative samples
// are stored as zero.
func (p *Pool) RecordResponseTime(id string, rt time.Duration) error {
	s, err := p.Get(id)
	if err != nil {
		return err
	}

	s.LastResponseTime = max(rt, 0)
	return nil
}

// RecordBandwidth overwrites the last bandwidth reading. Negative samples
// and NaN samples are stored as zero.
func (p *Pool) RecordBandwidth(id string, usage float64) error {
	s, err := p.Get(id)
	if err != nil {
		return err
	}

	if usage < 0 || math.IsNaN(usage) {
		usage = 0
	}

	s.LastBandwidth = usage
	return nil
}

// Snapshot copies every server so the result can outlive the lock.
func (p *Pool) Snapshot() []Server {
	out := make([]Server, len(p.servers))
	for i, s := range p.servers {
		out[i] = *s
	}

	return out
}
