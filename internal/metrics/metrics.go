package metrics

import (
	"sort"
	"sync"
	"time"
)

const maxResponseSamples = 1000

type Metrics struct {
	mutex         sync.RWMutex
	algorithm     string
	selections    map[string]int64
	releases      map[string]int64
	responseTimes map[string][]time.Duration
	bandwidth     map[string]float64
	failures      int64
	startTime     time.Time
}

type Snapshot struct {
	TotalSelections int64                    `json:"total_selections"`
	Failures        int64                    `json:"failures"`
	Uptime          time.Duration            `json:"uptime"`
	Servers         map[string]ServerMetrics `json:"servers"`
	Algorithm       string                   `json:"algorithm"`
}

type ServerMetrics struct {
	Selections    int64         `json:"selections"`
	Releases      int64         `json:"releases"`
	LastBandwidth float64       `json:"last_bandwidth"`
	AvgResponse   time.Duration `json:"avg_response"`
	P50Response   time.Duration `json:"p50_response"`
	P95Response   time.Duration `json:"p95_response"`
	P99Response   time.Duration `json:"p99_response"`
}

func (m *Metrics) SetAlgorithm(algorithm string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.algorithm = algorithm
}

func (m *Metrics) RecordSelection(server string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.selections[server]++
}

func (m *Metrics) RecordFailure() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.failures++
}

func (m *Metrics) RecordRelease(server string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.releases[server]++
}

func (m *Metrics) RecordResponse(server string, duration time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.responseTimes[server] = append(m.responseTimes[server], duration)

	if len(m.responseTimes[server]) > maxResponseSamples {
		m.responseTimes[server] = m.responseTimes[server][1:]
	}
}

func (m *Metrics) RecordBandwidth(server string, usage float64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.bandwidth[server] = usage
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Failures:  m.failures,
		Uptime:    time.Since(m.startTime),
		Servers:   make(map[string]ServerMetrics),
		Algorithm: m.algorithm,
	}

	// Collect all servers seen by any event
	allServers := make(map[string]bool)
	for server := range m.selections {
		allServers[server] = true
	}
	for server := range m.releases {
		allServers[server] = true
	}
	for server := range m.responseTimes {
		allServers[server] = true
	}
	for server := range m.bandwidth {
		allServers[server] = true
	}

	for server := range allServers {
		snap.TotalSelections += m.selections[server]

		sm := ServerMetrics{
			Selections:    m.selections[server],
			Releases:      m.releases[server],
			LastBandwidth: m.bandwidth[server],
		}

		durations := m.responseTimes[server]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			sm.AvgResponse = average(sorted)
			sm.P50Response = percentile(sorted, 0.50)
			sm.P95Response = percentile(sorted, 0.95)
			sm.P99Response = percentile(sorted, 0.99)
		}

		snap.Servers[server] = sm
	}

	return snap
}

func NewMetrics() *Metrics {
	return &Metrics{
		selections:    make(map[string]int64),
		releases:      make(map[string]int64),
		responseTimes: make(map[string][]time.Duration),
		bandwidth:     make(map[string]float64),
		startTime:     time.Now(),
	}
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
