package runner

import (
	"math"
	"time"
)

const (
	minPhaseSec   = 2
	warmupShare   = 0.2
	rampShare     = 0.3
	warmRateShare = 0.25
)

// BuildSchedule splits a run into warm-up, ramp and sustain.
// Each phase lasts at least minPhaseSec, so very short runs overshoot totalSec.
func BuildSchedule(totalSec, peakRate int) []Phase {
	warm := max(minPhaseSec, roundHalfEven(float64(totalSec)*warmupShare))
	ramp := max(minPhaseSec, roundHalfEven(float64(totalSec)*rampShare))
	sustain := max(minPhaseSec, totalSec-warm-ramp)
	warmRate := max(1, roundHalfEven(float64(peakRate)*warmRateShare))

	return []Phase{
		{Name: "warm-up", Duration: secs(warm), StartRate: warmRate, EndRate: warmRate},
		{Name: "ramp", Duration: secs(ramp), StartRate: warmRate, EndRate: peakRate},
		{Name: "sustain", Duration: secs(sustain), StartRate: peakRate, EndRate: peakRate},
	}
}

// TotalDuration sums the phase durations.
func TotalDuration(phases []Phase) time.Duration {
	var d time.Duration
	for _, p := range phases {
		d += p.Duration
	}
	return d
}

// RateAt interpolates the target rate for progress in [0,1]. Never below 1.
func (p Phase) RateAt(progress float64) int {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	rate := roundHalfEven(float64(p.StartRate) + float64(p.EndRate-p.StartRate)*progress)
	if rate < 1 {
		return 1
	}
	return rate
}

func roundHalfEven(v float64) int {
	return int(math.RoundToEven(v))
}

func secs(n int) time.Duration {
	return time.Duration(n) * time.Second
}
