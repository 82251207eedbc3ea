package pool

import "time"

const DefaultWeight = 1

// Server is a backend known to the pool together with the metrics the
// selection strategies read.
type Server struct {
	ID                string
	Weight            int
	ActiveConnections int
	LastResponseTime  time.Duration
	LastBandwidth     float64
}

type ServerOption func(*Server)

// WithWeight sets the relative capacity of the server.
func WithWeight(weight int) ServerOption {
	return func(s *Server) {
		s.Weight = weight
	}
}

// NewServer creates a server with the default weight and no recorded load.
func NewServer(id string, opts ...ServerOption) *Server {
	s := &Server{
		ID:     id,
		Weight: DefaultWeight,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ResponseTimeMs returns the last response time sample in milliseconds.
func (s *Server) ResponseTimeMs() float64 {
	return float64(s.LastResponseTime) / float64(time.Millisecond)
}

// ConnsPerWeight is the load ratio used by weighted least connections.
func (s *Server) ConnsPerWeight() float64 {
	return float64(s.ActiveConnections) / float64(s.Weight)
}
