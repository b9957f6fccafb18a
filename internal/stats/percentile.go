package stats

import (
	"math"
	"sort"
)

// Latency is the order-statistics summary used in reports (milliseconds).
type Latency struct {
	P50 int64 `json:"p50"`
	P95 int64 `json:"p95"`
	P99 int64 `json:"p99"`
	Max int64 `json:"max"`
}

// Percentile returns the nearest-rank p-th percentile of samples.
// samples is not modified. Empty input yields 0.
func Percentile(samples []int64, p float64) int64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := sortedCopy(samples)
	return percentileSorted(sorted, p)
}

// Summarize computes p50/p95/p99/max with a single sort.
func Summarize(samples []int64) Latency {
	if len(samples) == 0 {
		return Latency{}
	}
	sorted := sortedCopy(samples)
	return Latency{
		P50: percentileSorted(sorted, 50),
		P95: percentileSorted(sorted, 95),
		P99: percentileSorted(sorted, 99),
		Max: sorted[len(sorted)-1],
	}
}

func percentileSorted(sorted []int64, p float64) int64 {
	n := len(sorted)
	i := int(math.Ceil((p/100)*float64(n))) - 1
	if i < 0 {
		i = 0
	}
	if i > n-1 {
		i = n - 1
	}
	return sorted[i]
}

func sortedCopy(samples []int64) []int64 {
	sorted := make([]int64, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted
}
