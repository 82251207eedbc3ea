// Package loadbalancer composes a server pool with one active selection
// strategy.
//
// LoadBalancer is the concurrency boundary of the engine: a single mutex
// guards both the pool and the strategy, so a selection (including any
// cursor walk or min-scan-and-increment) and every metric update executes as
// one critical section. It also implements MetricsUpdater, the surface used
// by collaborators that measure real traffic.
package loadbalancer
