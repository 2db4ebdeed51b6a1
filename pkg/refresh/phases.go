package refresh

import "time"

// DefaultPhases is the fixed phase table driven by the sequencer. The
// weights sum to exactly 1.0, which defines the progress-to-phase
// mapping. Solid flashes exercise each subpixel group; the two sweeps
// exercise rows under motion.
var DefaultPhases = []Phase{
	{Name: "white", Kind: PhaseSolid, Color: White, Weight: 0.15},
	{Name: "red", Kind: PhaseSolid, Color: Red, Weight: 0.10},
	{Name: "green", Kind: PhaseSolid, Color: Green, Weight: 0.10},
	{Name: "blue", Kind: PhaseSolid, Color: Blue, Weight: 0.10},
	{Name: "black", Kind: PhaseSolid, Color: Black, Weight: 0.15},
	{Name: "sweep-down", Kind: PhaseSweep, Direction: SweepDown, Weight: 0.20},
	{Name: "sweep-up", Kind: PhaseSweep, Direction: SweepUp, Weight: 0.20},
}

// DefaultDuration is used when the configured speed is outside the
// lookup table.
const DefaultDuration = 180 * time.Second

// durationBySpeed maps the configured speed (1-5) to the total
// wall-clock duration of a full routine.
var durationBySpeed = map[int]time.Duration{
	1: 300 * time.Second,
	2: 180 * time.Second,
	3: 120 * time.Second,
	4: 60 * time.Second,
	5: 30 * time.Second,
}

// DurationForSpeed returns the total routine duration for a speed
// setting, falling back to DefaultDuration for unknown speeds.
func DurationForSpeed(speed int) time.Duration {
	if d, ok := durationBySpeed[speed]; ok {
		return d
	}
	return DefaultDuration
}

// Boundaries returns the cumulative weight sums of the phase table:
// phase i covers the progress range [Boundaries[i-1], Boundaries[i])
// with an inclusive lower and exclusive upper edge. The last entry is
// 1.0 for a well-formed table.
func Boundaries(phases []Phase) []float64 {
	ends := make([]float64, len(phases))
	sum := 0.0
	for i, p := range phases {
		sum += p.Weight
		ends[i] = sum
	}
	return ends
}

// boundaryEpsilon absorbs float64 accumulation error in the cumulative
// weight sums, so progress exactly at a nominal boundary (e.g. 0.35)
// resolves the same way regardless of rounding in the running sum.
const boundaryEpsilon = 1e-9

// PhaseIndexForProgress returns the first phase index whose cumulative
// end exceeds p. Progress exactly at a boundary belongs to the phase
// that starts there ([start,end) convention). For p >= 1 the last index
// is returned so callers never index out of bounds.
func PhaseIndexForProgress(phases []Phase, p float64) int {
	sum := 0.0
	for i, ph := range phases {
		sum += ph.Weight
		if p < sum-boundaryEpsilon {
			return i
		}
	}
	return len(phases) - 1
}

// WeightSum returns the total weight of a phase table. Used by tests
// and by the engine to reject malformed custom tables.
func WeightSum(phases []Phase) float64 {
	sum := 0.0
	for _, p := range phases {
		sum += p.Weight
	}
	return sum
}
