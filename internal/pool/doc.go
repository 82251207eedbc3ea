// Package pool holds the set of known servers and their runtime metrics.
//
// A Pool keeps servers in insertion order, which defines round-robin cycling
// and tie-breaks for the minimum-based strategies. Every membership or weight
// change advances the pool epoch so strategies with cached state can detect
// that their indices are stale.
//
// Pool performs no locking. The load balancer that owns it serializes access.
package pool
