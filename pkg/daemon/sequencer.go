package daemon

import (
	"math"
	"time"

	"github.com/oledcare/oledcare/pkg/display"
	"github.com/oledcare/oledcare/pkg/refresh"
)

// Tick cadence is a tunable, not a correctness property: the progress
// math below is independent of tick frequency. Solid fills only need
// sub-second progress reporting; the sweep bar needs animation-rate
// updates to look smooth.
const (
	solidTickInterval = 250 * time.Millisecond
	sweepTickInterval = 33 * time.Millisecond
)

// sequencer drives one refresh run through the weighted phase table.
// It supports starting from an arbitrary fractional progress, which is
// how interrupted runs resume at the point they left off.
type sequencer struct {
	phases   []refresh.Phase
	total    time.Duration
	renderer display.Renderer
	onTick   func(progress float64, phaseIndex int)
	cancelCh <-chan struct{}
}

// run executes the phase loop and blocks until the routine completes,
// is cancelled, or a renderer call fails. It returns the last overall
// progress, whether the routine ran to completion, and any operation
// error. The renderer is torn down before returning in all cases.
func (s *sequencer) run(initialProgress float64) (float64, bool, error) {
	progress := math.Min(math.Max(initialProgress, 0), 1)

	if err := s.renderer.BeginOverlay(); err != nil {
		return progress, false, operationError(err)
	}
	defer s.renderer.EndOverlay()

	bounds := refresh.Boundaries(s.phases)
	// The weights sum to 1.0 by invariant; pin the terminal boundary so
	// a completed run reports exactly 1.0 despite float accumulation.
	bounds[len(bounds)-1] = 1.0

	for i := refresh.PhaseIndexForProgress(s.phases, progress); i < len(s.phases); i++ {
		ph := s.phases[i]
		end := bounds[i]
		start := 0.0
		if i > 0 {
			start = bounds[i-1]
		}

		// Local start fraction when resuming mid-phase.
		localStart := 0.0
		if progress > start && ph.Weight > 0 {
			localStart = math.Min((progress-start)/ph.Weight, 1)
		}

		phaseDuration := time.Duration(ph.Weight * float64(s.total))
		remaining := time.Duration((1 - localStart) * float64(phaseDuration))

		tickEvery := solidTickInterval
		if ph.Kind == refresh.PhaseSweep {
			tickEvery = sweepTickInterval
		}

		phaseStart := time.Now()
		timer := time.NewTimer(0) // render the first frame immediately

		for {
			// Cancellation wins over a pending tick: checked first so a
			// cancel requested mid-tick takes effect before the next one.
			select {
			case <-s.cancelCh:
				timer.Stop()
				return progress, false, nil
			default:
			}
			select {
			case <-s.cancelCh:
				timer.Stop()
				return progress, false, nil
			case <-timer.C:
			}

			elapsed := time.Since(phaseStart)
			frac := 1.0
			if remaining > 0 {
				frac = math.Min(1, float64(elapsed)/float64(remaining))
			}
			local := localStart + (1-localStart)*frac
			progress = start + local*(end-start)

			if err := s.render(ph, local); err != nil {
				return progress, false, operationError(err)
			}
			if s.onTick != nil {
				s.onTick(progress, i)
			}

			if elapsed >= remaining {
				progress = end
				break
			}
			timer.Reset(tickEvery)
		}
	}

	return 1.0, true, nil
}

func (s *sequencer) render(ph refresh.Phase, local float64) error {
	switch ph.Kind {
	case refresh.PhaseSweep:
		return s.renderer.PositionSweepBar(local, ph.Direction)
	default:
		return s.renderer.SetSolidColor(ph.Color)
	}
}
