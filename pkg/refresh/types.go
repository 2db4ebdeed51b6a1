package refresh

import "time"

// Status defines the states of a refresh session.
type Status string

const (
	StatusIdle        Status = "Idle"
	StatusRunning     Status = "Running"
	StatusInterrupted Status = "Interrupted"
	StatusError       Status = "Error"
	StatusDisabled    Status = "Disabled"
)

// PhaseKind distinguishes the two visual phase types.
type PhaseKind string

const (
	PhaseSolid PhaseKind = "Solid"
	PhaseSweep PhaseKind = "Sweep"
)

// SweepDirection is the travel direction of the sweep bar.
type SweepDirection string

const (
	SweepDown SweepDirection = "Down"
	SweepUp   SweepDirection = "Up"
)

// Color is a solid fill color handed to the renderer.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

var (
	White = Color{255, 255, 255}
	Red   = Color{255, 0, 0}
	Green = Color{0, 255, 0}
	Blue  = Color{0, 0, 255}
	Black = Color{0, 0, 0}
)

// Phase is one weighted segment of the refresh routine. Weight is a
// fraction in (0,1]; the weights of a phase table sum to 1.0 and define
// the mapping from overall progress to phase.
type Phase struct {
	Name      string
	Kind      PhaseKind
	Color     Color          // valid for PhaseSolid
	Direction SweepDirection // valid for PhaseSweep
	Weight    float64
}

// Session holds the runtime state of the engine. There is exactly one
// Session per engine; it is created Idle at construction and reset, never
// destroyed.
type Session struct {
	Status        Status        `json:"status"`
	Progress      float64       `json:"progress"`
	PhaseIndex    int           `json:"phaseIndex"`
	StartedAt     time.Time     `json:"startedAt"`
	TotalDuration time.Duration `json:"totalDuration"`
}

// InterruptedState is the persisted resume marker. It is the only state
// that must survive a daemon restart: written whenever a run is
// interrupted (disable, system sleep, cancel-with-save) and cleared on
// successful resume or completion.
type InterruptedState struct {
	Interrupted     bool `json:"interrupted"`
	ProgressPercent int  `json:"progressPercent"`
}

// Report is a synthesized view model exposed via the HTTP API and CLI
// polling. It derives from the Session plus the scheduler's computed
// next run.
type Report struct {
	Status        Status    `json:"status"`
	Running       bool      `json:"running"`
	Progress      int       `json:"progress"` // 0-100
	Phase         string    `json:"phase,omitempty"`
	TimeRemaining int       `json:"timeRemainingSeconds"`
	NextRun       time.Time `json:"nextRun"`
	Enabled       bool      `json:"enabled"`
}
