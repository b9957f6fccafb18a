package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats holds real-time aggregated metrics for one path.
// The final report is computed from outcomes, these feed the live views.
type Stats struct {
	Requests   uint64
	Success    uint64
	Fail       uint64
	Mismatches uint64

	// Round-trip latency, all requests (microseconds)
	Latency *SafeHistogram

	errMu    sync.Mutex
	errCount map[string]uint64
}

func NewStats() *Stats {
	return &Stats{
		Latency:  NewSafeHistogram(),
		errCount: make(map[string]uint64),
	}
}

// Add records one finished request. failure is the failure kind, empty on success.
func (s *Stats) Add(success bool, latency time.Duration, failure string, mismatch bool) {
	atomic.AddUint64(&s.Requests, 1)
	if success {
		atomic.AddUint64(&s.Success, 1)
	} else {
		atomic.AddUint64(&s.Fail, 1)
		s.errMu.Lock()
		s.errCount[failure]++
		s.errMu.Unlock()
	}
	if mismatch {
		atomic.AddUint64(&s.Mismatches, 1)
	}
	s.Latency.RecordDuration(latency)
}

func (s *Stats) ErrorRate() float64 {
	reqs := atomic.LoadUint64(&s.Requests)
	if reqs == 0 {
		return 0
	}
	fails := atomic.LoadUint64(&s.Fail)
	return (float64(fails) / float64(reqs)) * 100
}

// ErrorCounts returns a copy of failures grouped by kind.
func (s *Stats) ErrorCounts() map[string]uint64 {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	out := make(map[string]uint64, len(s.errCount))
	for k, v := range s.errCount {
		out[k] = v
	}
	return out
}

func (s *Stats) GetP50() float64 {
	return s.Latency.ValueAtQuantileMs(50)
}

func (s *Stats) GetP95() float64 {
	return s.Latency.ValueAtQuantileMs(95)
}

func (s *Stats) GetP99() float64 {
	return s.Latency.ValueAtQuantileMs(99)
}
