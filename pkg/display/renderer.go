// Package display holds the collaborator contracts the refresh engine
// drives: the overlay renderer and the environmental-conditions source.
// The engine only computes what should be displayed and when; producing
// the actual full-screen visuals is the renderer's job.
package display

import (
	"github.com/sirupsen/logrus"

	"github.com/oledcare/oledcare/pkg/refresh"
)

// Renderer receives the visual output of a refresh run. BeginOverlay is
// called once before the first phase and EndOverlay exactly once when
// the run finishes, is cancelled, or fails. Implementations must
// tolerate EndOverlay without a prior successful BeginOverlay.
type Renderer interface {
	BeginOverlay() error
	SetSolidColor(c refresh.Color) error
	// PositionSweepBar places the bar at fraction (0 at the top of its
	// travel, 1 at the bottom) moving in the given direction.
	PositionSweepBar(fraction float64, dir refresh.SweepDirection) error
	EndOverlay()
}

// LogRenderer is the stand-in renderer used when no compositor overlay
// is available. It traces what would be drawn, which keeps the engine
// fully exercisable on headless hosts.
type LogRenderer struct{}

var _ Renderer = LogRenderer{}

func (LogRenderer) BeginOverlay() error {
	logrus.Debug("overlay begin")
	return nil
}

func (LogRenderer) SetSolidColor(c refresh.Color) error {
	logrus.WithFields(logrus.Fields{"r": c.R, "g": c.G, "b": c.B}).Trace("overlay solid color")
	return nil
}

func (LogRenderer) PositionSweepBar(fraction float64, dir refresh.SweepDirection) error {
	logrus.WithFields(logrus.Fields{"fraction": fraction, "direction": dir}).Trace("overlay sweep bar")
	return nil
}

func (LogRenderer) EndOverlay() {
	logrus.Debug("overlay end")
}
