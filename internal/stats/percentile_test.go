package stats

import "testing"

func TestPercentile_Empty(t *testing.T) {
	for _, p := range []float64{0, 50, 95, 99, 100} {
		if got := Percentile(nil, p); got != 0 {
			t.Errorf("Percentile(nil, %v) = %d, want 0", p, got)
		}
	}
}

func TestPercentile_NearestRank(t *testing.T) {
	samples := []int64{50, 10, 40, 20, 30, 100, 90, 80, 70, 60}

	tests := []struct {
		p    float64
		want int64
	}{
		{0, 10},
		{10, 10},
		{11, 20},
		{50, 50},
		{95, 100},
		{99, 100},
		{100, 100},
	}

	for _, tt := range tests {
		if got := Percentile(samples, tt.p); got != tt.want {
			t.Errorf("Percentile(p=%v) = %d, want %d", tt.p, got, tt.want)
		}
	}
}

func TestPercentile_BoundsAreMinAndMax(t *testing.T) {
	sets := [][]int64{
		{7},
		{3, 3, 3},
		{1000, 1, 500, 2},
		{5, 4, 3, 2, 1, 0},
	}

	for _, s := range sets {
		min, max := s[0], s[0]
		for _, v := range s {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		if got := Percentile(s, 100); got != max {
			t.Errorf("Percentile(%v, 100) = %d, want max %d", s, got, max)
		}
		if got := Percentile(s, 0); got != min {
			t.Errorf("Percentile(%v, 0) = %d, want min %d", s, got, min)
		}
	}
}

func TestPercentile_DoesNotModifyInput(t *testing.T) {
	samples := []int64{3, 1, 2}
	Percentile(samples, 50)

	if samples[0] != 3 || samples[1] != 1 || samples[2] != 2 {
		t.Errorf("input was reordered: %v", samples)
	}
}

func TestSummarize(t *testing.T) {
	samples := make([]int64, 0, 100)
	for i := int64(100); i >= 1; i-- {
		samples = append(samples, i)
	}

	got := Summarize(samples)
	want := Latency{P50: 50, P95: 95, P99: 99, Max: 100}
	if got != want {
		t.Errorf("Summarize() = %+v, want %+v", got, want)
	}

	if empty := Summarize(nil); empty != (Latency{}) {
		t.Errorf("Summarize(nil) = %+v, want zero value", empty)
	}
}
