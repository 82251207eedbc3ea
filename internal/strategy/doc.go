// Package strategy defines the server selection interface and implements
// the selection algorithms:
//
//   - Round Robin: Sequential distribution in pool order
//   - Weighted Round Robin: GCD-smoothed distribution proportional to weights
//   - Random: Uniform random selection
//   - IP Hash: Deterministic mapping of the source address to a pool position
//   - Consistent Hash: Ring-based source address affinity
//   - Least Connections: Fewest active connections
//   - Weighted Least Connections: Lowest connections-to-weight ratio
//   - Least Response Time: Lowest last reported response time
//   - Least Bandwidth: Lowest last reported bandwidth usage
//
// Strategies are not safe for concurrent use. The load balancer calls them
// while holding the lock that also guards the pool.
package strategy
