package runner

import (
	"testing"
	"time"
)

func TestBuildSchedule_TenSecondsTenRPS(t *testing.T) {
	phases := BuildSchedule(10, 10)

	if len(phases) != 3 {
		t.Fatalf("expected 3 phases, got %d", len(phases))
	}
	if got := TotalDuration(phases); got != 10*time.Second {
		t.Errorf("phases sum to %v, want 10s", got)
	}

	want := []Phase{
		{Name: "warm-up", Duration: 2 * time.Second, StartRate: 2, EndRate: 2},
		{Name: "ramp", Duration: 3 * time.Second, StartRate: 2, EndRate: 10},
		{Name: "sustain", Duration: 5 * time.Second, StartRate: 10, EndRate: 10},
	}
	for i, p := range phases {
		if p != want[i] {
			t.Errorf("phase %d = %+v, want %+v", i, p, want[i])
		}
	}
}

func TestBuildSchedule_Invariants(t *testing.T) {
	tests := []struct {
		duration int
		peak     int
	}{
		{10, 10},
		{20, 30},
		{30, 50},
		{60, 7},
		{15, 100},
	}

	for _, tt := range tests {
		phases := BuildSchedule(tt.duration, tt.peak)

		if got := TotalDuration(phases); got != time.Duration(tt.duration)*time.Second {
			t.Errorf("BuildSchedule(%d, %d) sums to %v", tt.duration, tt.peak, got)
		}
		warm, ramp, sustain := phases[0], phases[1], phases[2]
		if warm.StartRate != warm.EndRate {
			t.Errorf("warm-up rate not constant: %+v", warm)
		}
		if ramp.StartRate != warm.EndRate {
			t.Errorf("ramp starts at %d, want warm-up rate %d", ramp.StartRate, warm.EndRate)
		}
		if ramp.EndRate != tt.peak || sustain.StartRate != tt.peak || sustain.EndRate != tt.peak {
			t.Errorf("ramp/sustain do not meet peak %d: %+v %+v", tt.peak, ramp, sustain)
		}
	}
}

func TestBuildSchedule_DefaultsWarmRate(t *testing.T) {
	phases := BuildSchedule(20, 30)

	// 25% of 30 = 7.5, rounded half to even
	if phases[0].StartRate != 8 {
		t.Errorf("warm-up rate = %d, want 8", phases[0].StartRate)
	}
	if phases[0].Duration != 4*time.Second || phases[1].Duration != 6*time.Second || phases[2].Duration != 10*time.Second {
		t.Errorf("durations = %v/%v/%v, want 4s/6s/10s", phases[0].Duration, phases[1].Duration, phases[2].Duration)
	}
}

func TestBuildSchedule_ShortRunsFloorEachPhase(t *testing.T) {
	phases := BuildSchedule(3, 1)

	for _, p := range phases {
		if p.Duration != 2*time.Second {
			t.Errorf("%s lasts %v, want the 2s floor", p.Name, p.Duration)
		}
	}
	if phases[0].StartRate != 1 {
		t.Errorf("warm-up rate = %d, want floor of 1", phases[0].StartRate)
	}
}

func TestPhase_RateAt(t *testing.T) {
	ramp := Phase{Name: "ramp", Duration: 4 * time.Second, StartRate: 2, EndRate: 10}

	tests := []struct {
		progress float64
		want     int
	}{
		{0, 2},
		{0.25, 4},
		{0.5, 6},
		{1, 10},
		{1.5, 10}, // clamped
		{-1, 2},   // clamped
	}

	for _, tt := range tests {
		if got := ramp.RateAt(tt.progress); got != tt.want {
			t.Errorf("RateAt(%v) = %d, want %d", tt.progress, got, tt.want)
		}
	}
}

func TestPhase_RateAtNeverBelowOne(t *testing.T) {
	idle := Phase{Name: "idle", Duration: time.Second, StartRate: 0, EndRate: 0}
	if got := idle.RateAt(0.5); got != 1 {
		t.Errorf("RateAt() = %d, want 1", got)
	}
}
