package pipeline

import (
	"math"
	"sort"
	"sync"
)

// LatencyTracker keeps the last N evaluation latencies (ms) in a circular
// buffer. Thread-safe.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []float64
	pos     int
	count   int
	last    float64
	total   uint64
}

// NewLatencyTracker creates a tracker that holds the last capacity samples.
func NewLatencyTracker(capacity int) *LatencyTracker {
	if capacity <= 0 {
		capacity = 256
	}
	return &LatencyTracker{samples: make([]float64, capacity)}
}

// Record adds a latency sample in milliseconds.
func (lt *LatencyTracker) Record(ms float64) {
	lt.mu.Lock()
	lt.samples[lt.pos] = ms
	lt.pos = (lt.pos + 1) % len(lt.samples)
	if lt.count < len(lt.samples) {
		lt.count++
	}
	lt.last = ms
	lt.total++
	lt.mu.Unlock()
}

// Stats returns the latest sample, the mean over the retained window and
// the total number of samples ever recorded.
func (lt *LatencyTracker) Stats() (last, avg float64, count uint64) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	if lt.count == 0 {
		return 0, 0, 0
	}
	sum := 0.0
	for _, v := range lt.window() {
		sum += v
	}
	return lt.last, sum / float64(lt.count), lt.total
}

// Percentile returns the p-th percentile (0.0–1.0) of the retained window,
// 0 when empty.
func (lt *LatencyTracker) Percentile(p float64) float64 {
	lt.mu.Lock()
	sorted := append([]float64(nil), lt.window()...)
	lt.mu.Unlock()

	sort.Float64s(sorted)
	return percentile(sorted, p)
}

// window returns the retained samples, oldest first. Caller holds mu.
func (lt *LatencyTracker) window() []float64 {
	if lt.count < len(lt.samples) {
		return lt.samples[:lt.count]
	}
	out := make([]float64, 0, lt.count)
	out = append(out, lt.samples[lt.pos:]...)
	return append(out, lt.samples[:lt.pos]...)
}

func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	rank := p * float64(n-1)
	lower := int(math.Floor(rank))
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
