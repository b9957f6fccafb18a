package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// SafeHistogram is a thread-safe wrapper around hdrhistogram
type SafeHistogram struct {
	hist *hdrhistogram.Histogram
	mu   sync.Mutex
}

func NewSafeHistogram() *SafeHistogram {
	// 1us to 10min, 3 significant figures
	h := hdrhistogram.New(1, int64(10*time.Minute/time.Microsecond), 3)
	return &SafeHistogram{hist: h}
}

// RecordDuration records d in microseconds, clamped to the trackable range.
func (h *SafeHistogram) RecordDuration(d time.Duration) error {
	us := d.Microseconds()
	if us < 1 {
		us = 1
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if us > h.hist.HighestTrackableValue() {
		us = h.hist.HighestTrackableValue()
	}
	return h.hist.RecordValue(us)
}

// ValueAtQuantileMs returns the q-th percentile (0-100) in milliseconds.
func (h *SafeHistogram) ValueAtQuantileMs(q float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return float64(h.hist.ValueAtQuantile(q)) / 1000.0
}

func (h *SafeHistogram) MeanMs() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.Mean() / 1000.0
}

func (h *SafeHistogram) MaxMs() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.Max() / 1000
}

func (h *SafeHistogram) TotalCount() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.TotalCount()
}
