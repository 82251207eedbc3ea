package loadbalancer

import "time"

// MetricsUpdater is the mutation surface for collaborators that observe
// traffic. Samples overwrite the previous value; negative samples are
// stored as zero. Unknown ids fail with pool.ErrNotFound.
type MetricsUpdater interface {
	OnConnectionOpened(id string) error
	OnConnectionClosed(id string) error
	OnResponseTimeSample(id string, rt time.Duration) error
	OnBandwidthSample(id string, usage float64) error
}

var _ MetricsUpdater = (*LoadBalancer)(nil)
