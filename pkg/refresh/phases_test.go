package refresh

import (
	"math"
	"testing"
	"time"
)

func TestDefaultPhasesWeightSum(t *testing.T) {
	sum := WeightSum(DefaultPhases)
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("default phase weights must sum to 1.0, got %v", sum)
	}
}

func TestBoundaries(t *testing.T) {
	want := []float64{0.15, 0.25, 0.35, 0.45, 0.60, 0.80, 1.0}
	got := Boundaries(DefaultPhases)
	if len(got) != len(want) {
		t.Fatalf("expected %d boundaries, got %d", len(want), len(got))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("boundary %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestPhaseIndexForProgress(t *testing.T) {
	tests := []struct {
		name     string
		progress float64
		want     int
	}{
		{name: "start", progress: 0.0, want: 0},
		{name: "inside first phase", progress: 0.1, want: 0},
		{name: "first boundary", progress: 0.15, want: 1},
		{name: "inside third phase", progress: 0.3, want: 2},
		{name: "exact boundary belongs to next phase", progress: 0.35, want: 3},
		{name: "just below boundary", progress: 0.349, want: 2},
		{name: "inside black phase", progress: 0.5, want: 4},
		{name: "inside sweep down", progress: 0.7, want: 5},
		{name: "near end", progress: 0.99, want: 6},
		{name: "exact end clamps to last", progress: 1.0, want: 6},
		{name: "beyond end clamps to last", progress: 1.5, want: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PhaseIndexForProgress(DefaultPhases, tt.progress); got != tt.want {
				t.Fatalf("PhaseIndexForProgress(%v) = %d, want %d", tt.progress, got, tt.want)
			}
		})
	}
}

func TestDurationForSpeed(t *testing.T) {
	tests := []struct {
		speed int
		want  time.Duration
	}{
		{speed: 1, want: 300 * time.Second},
		{speed: 2, want: 180 * time.Second},
		{speed: 3, want: 120 * time.Second},
		{speed: 4, want: 60 * time.Second},
		{speed: 5, want: 30 * time.Second},
		{speed: 0, want: DefaultDuration},
		{speed: 6, want: DefaultDuration},
		{speed: -1, want: DefaultDuration},
	}

	for _, tt := range tests {
		if got := DurationForSpeed(tt.speed); got != tt.want {
			t.Fatalf("DurationForSpeed(%d) = %v, want %v", tt.speed, got, tt.want)
		}
	}
}
