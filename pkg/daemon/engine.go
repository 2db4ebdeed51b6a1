package daemon

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/oledcare/oledcare/pkg/config"
	"github.com/oledcare/oledcare/pkg/display"
	"github.com/oledcare/oledcare/pkg/refresh"
)

// durationForSpeed is a test seam; production code always uses the
// fixed lookup table.
var durationForSpeed = refresh.DurationForSpeed

// Listener receives typed engine events. All callbacks are invoked from
// engine goroutines and must not block.
type Listener interface {
	OnProgress(progress float64, phase string)
	OnStatusChange(from, to refresh.Status)
	OnError(err *EngineError)
}

type nopListener struct{}

func (nopListener) OnProgress(float64, string)                    {}
func (nopListener) OnStatusChange(refresh.Status, refresh.Status) {}
func (nopListener) OnError(*EngineError)                          {}

// activeRun tracks the cancellation token of the run in flight. Each
// run owns exactly one token; cancelling closes the channel once and
// every outstanding tick observes it.
type activeRun struct {
	cancelCh  chan struct{}
	done      chan struct{}
	cancelled bool
}

// Engine is the refresh engine: it owns the single RefreshSession, the
// scheduler, and the persisted interrupted state. Collaborators are
// injected at construction so tests supply fakes without runtime
// branching.
type Engine struct {
	conf      config.Config
	renderer  display.Renderer
	env       display.Environment
	listener  Listener
	statePath string

	sched *Scheduler

	mu       sync.Mutex
	session  *refresh.Session
	run      *activeRun
	disabled bool
	closed   bool
}

func NewEngine(conf config.Config, renderer display.Renderer, env display.Environment, listener Listener, statePath string) *Engine {
	if listener == nil {
		listener = nopListener{}
	}
	e := &Engine{
		conf:      conf,
		renderer:  renderer,
		env:       env,
		listener:  listener,
		statePath: statePath,
		session:   &refresh.Session{Status: refresh.StatusIdle},
	}
	if !conf.Enabled() {
		e.disabled = true
		e.session.Status = refresh.StatusDisabled
	}
	e.sched = NewScheduler(
		func() time.Duration { return time.Duration(conf.IntervalMinutes()) * time.Minute },
		e.shouldRun,
		func() {
			if err := e.startSession(0); err != nil {
				logrus.WithError(err).Debug("scheduled refresh not started")
			}
		},
	)
	e.sched.OnError = func(err error) {
		logrus.WithError(err).Error("scheduler error")
		if ee, ok := err.(*EngineError); ok {
			e.listener.OnError(ee)
		}
	}
	return e
}

// Start runs the one-time interrupted-state check, so a routine cut
// short by a crash or restart resumes instead of silently being lost,
// and installs the interval timer. No-op when the engine is disabled.
func (e *Engine) Start() {
	if e.conf.Enabled() {
		if err := e.Resume(); err != nil {
			logrus.WithError(err).Warn("failed to resume interrupted refresh")
		}
		e.sched.Start()
	}
}

// Close tears the engine down: any running session is cancelled with
// its progress saved, and every owned timer is cancelled exactly once.
// Close is idempotent.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	if err := e.Cancel(true); err != nil && err != ErrRefreshNotRunning {
		logrus.WithError(err).Warn("failed to cancel refresh during shutdown")
	}
	e.sched.Stop()
}

// shouldRun is the scheduler's eligibility check: a scheduled run is
// refused while disabled, while a session is running, outside every
// schedule window, and (in smart mode) while the environment reports
// activity. Manual triggers bypass all but the first two checks.
func (e *Engine) shouldRun() bool {
	if !e.conf.Enabled() {
		return false
	}

	e.mu.Lock()
	running := e.session.Status == refresh.StatusRunning
	e.mu.Unlock()
	if running {
		return false
	}

	if entries := e.conf.Schedule(); len(entries) > 0 {
		if !withinScheduleWindow(entries, e.conf.IntervalMinutes(), time.Now()) {
			logrus.Debug("outside every schedule window")
			return false
		}
	}

	if e.conf.SmartMode() {
		if !e.env.IsIdle() {
			logrus.Debug("smart mode: session not idle")
			return false
		}
		if e.env.HasFullscreenCriticalApp() {
			logrus.Debug("smart mode: fullscreen app in foreground")
			return false
		}
	}

	return true
}

// TriggerManual starts a session immediately, bypassing schedule-window
// and smart-mode checks. It still refuses while a session is running.
func (e *Engine) TriggerManual() error {
	return e.startSession(0)
}

// Cancel stops the active session. With save, the current progress is
// persisted first so the Suspend/Resume Coordinator can pick the run
// back up at the same point.
func (e *Engine) Cancel(save bool) error {
	e.mu.Lock()
	run := e.run
	if run == nil || run.cancelled || e.session.Status != refresh.StatusRunning {
		e.mu.Unlock()
		return ErrRefreshNotRunning
	}
	progress := e.session.Progress
	run.cancelled = true
	close(run.cancelCh)
	e.mu.Unlock()

	if save {
		e.persistInterruptedState(refresh.InterruptedState{
			Interrupted:     true,
			ProgressPercent: int(math.Round(progress * 100)),
		})
	}
	return nil
}

// Resume starts a session at the persisted interruption point and
// clears the marker. Resuming twice without an intervening interruption
// is a no-op: the flag is already gone.
func (e *Engine) Resume() error {
	st, err := e.loadInterruptedState()
	if err != nil {
		return err
	}
	if !st.Interrupted {
		return nil
	}
	if !e.conf.Enabled() {
		return ErrEngineDisabled
	}

	pct := st.ProgressPercent
	if pct < 0 {
		pct = 0
	} else if pct > 100 {
		pct = 100
	}
	logrus.WithField("progress", pct).Info("resuming interrupted refresh")
	// Clear the marker before the run launches: the in-flight session
	// carries the progress from here on, and a cancel arriving right
	// after the start must be able to persist a fresh interruption
	// without this clear overwriting it.
	e.clearInterruptedState()
	if err := e.startSession(float64(pct) / 100); err != nil {
		e.persistInterruptedState(st)
		return err
	}
	return nil
}

// HandlePrepareForSleep is the system-sleep signal entry point. Before
// suspend a running session is saved and cancelled; after wake the
// interrupted-state check runs again.
func (e *Engine) HandlePrepareForSleep(aboutToSleep bool) {
	if aboutToSleep {
		logrus.Debug("system is about to sleep")
		if err := e.Cancel(true); err != nil && err != ErrRefreshNotRunning {
			logrus.WithError(err).Warn("failed to save refresh before sleep")
		}
		return
	}

	logrus.Debug("system resumed from sleep")
	if err := e.Resume(); err != nil {
		logrus.WithError(err).Warn("failed to resume refresh after wake")
	}
}

// ConfigChanged re-evaluates the engine against the current settings.
// Interval and schedule changes restart the timer; disabling cancels
// any active session (saved) and stops the timer; re-enabling restarts
// the timer without auto-resuming.
func (e *Engine) ConfigChanged() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	wasDisabled := e.disabled
	e.mu.Unlock()

	if !e.conf.Enabled() {
		if !wasDisabled {
			e.setDisabled()
		}
		return
	}

	if wasDisabled {
		e.setEnabled()
		return
	}
	e.sched.Restart()
}

func (e *Engine) setDisabled() {
	logrus.Info("refresh engine disabled")
	if err := e.Cancel(true); err != nil && err != ErrRefreshNotRunning {
		logrus.WithError(err).Warn("failed to cancel refresh while disabling")
	}

	e.mu.Lock()
	e.disabled = true
	var from refresh.Status
	if e.run == nil && e.session.Status != refresh.StatusDisabled {
		from = e.session.Status
		e.session.Status = refresh.StatusDisabled
	}
	e.mu.Unlock()

	e.sched.Stop()
	if from != "" {
		e.listener.OnStatusChange(from, refresh.StatusDisabled)
	}
}

func (e *Engine) setEnabled() {
	logrus.Info("refresh engine enabled")
	e.mu.Lock()
	e.disabled = false
	var from refresh.Status
	if e.session.Status == refresh.StatusDisabled {
		from = e.session.Status
		e.session.Status = refresh.StatusIdle
	}
	e.mu.Unlock()

	if from != "" {
		e.listener.OnStatusChange(from, refresh.StatusIdle)
	}
	// Re-enabling does not auto-resume; resumption only happens through
	// the explicit interrupted-state check.
	e.sched.Start()
}

func (e *Engine) startSession(initialProgress float64) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if e.disabled {
		e.mu.Unlock()
		return ErrEngineDisabled
	}
	if e.session.Status == refresh.StatusRunning {
		e.mu.Unlock()
		return ErrRefreshInProgress
	}

	total := durationForSpeed(e.conf.Speed())
	from := e.session.Status
	e.session.Status = refresh.StatusRunning
	e.session.Progress = initialProgress
	e.session.PhaseIndex = refresh.PhaseIndexForProgress(refresh.DefaultPhases, initialProgress)
	e.session.StartedAt = time.Now()
	e.session.TotalDuration = total

	run := &activeRun{
		cancelCh: make(chan struct{}),
		done:     make(chan struct{}),
	}
	e.run = run
	e.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"initialProgress": initialProgress,
		"totalDuration":   total,
	}).Info("refresh run starting")
	e.listener.OnStatusChange(from, refresh.StatusRunning)

	seq := &sequencer{
		phases:   refresh.DefaultPhases,
		total:    total,
		renderer: e.renderer,
		onTick:   e.handleTick,
		cancelCh: run.cancelCh,
	}

	go func() {
		defer close(run.done)
		progress, completed, err := seq.run(initialProgress)
		e.finishRun(run, progress, completed, err)
	}()

	return nil
}

func (e *Engine) handleTick(progress float64, phaseIndex int) {
	e.mu.Lock()
	if e.session.Status != refresh.StatusRunning {
		e.mu.Unlock()
		return
	}
	e.session.Progress = progress
	e.session.PhaseIndex = phaseIndex
	e.mu.Unlock()

	e.listener.OnProgress(progress, refresh.DefaultPhases[phaseIndex].Name)
}

func (e *Engine) finishRun(run *activeRun, progress float64, completed bool, err error) {
	e.mu.Lock()
	if e.run == run {
		e.run = nil
	}
	cancelled := run.cancelled
	final := refresh.StatusIdle
	if e.disabled {
		final = refresh.StatusDisabled
	}
	e.session.Status = final
	e.session.Progress = 0
	e.session.PhaseIndex = 0
	e.mu.Unlock()

	switch {
	case err != nil:
		ee, ok := err.(*EngineError)
		if !ok {
			ee = operationError(err)
		}
		logrus.WithError(ee).Error("refresh run failed")
		e.listener.OnError(ee)
		e.listener.OnStatusChange(refresh.StatusRunning, refresh.StatusError)
		e.listener.OnStatusChange(refresh.StatusError, final)
	case cancelled:
		logrus.WithField("progress", progress).Info("refresh run interrupted")
		e.listener.OnStatusChange(refresh.StatusRunning, refresh.StatusInterrupted)
		e.listener.OnStatusChange(refresh.StatusInterrupted, final)
	case completed:
		logrus.Info("refresh run completed")
		e.clearInterruptedState()
		e.listener.OnStatusChange(refresh.StatusRunning, final)
	}
}

// Report synthesizes the externally visible status view.
func (e *Engine) Report() refresh.Report {
	e.mu.Lock()
	s := *e.session
	e.mu.Unlock()

	r := refresh.Report{
		Status:   s.Status,
		Running:  s.Status == refresh.StatusRunning,
		Progress: int(math.Round(s.Progress * 100)),
		Enabled:  e.conf.Enabled(),
		NextRun:  e.sched.NextRun(),
	}
	if r.Running {
		r.Phase = refresh.DefaultPhases[s.PhaseIndex].Name

		remaining := int(s.TotalDuration.Seconds() * (1 - s.Progress))
		if remaining < 0 {
			remaining = 0
		} else if remaining > 3600 {
			remaining = 3600
		}
		r.TimeRemaining = remaining
	}
	return r
}

func (e *Engine) loadInterruptedState() (refresh.InterruptedState, error) {
	var st refresh.InterruptedState
	if e.statePath == "" {
		return st, nil
	}
	b, err := os.ReadFile(e.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, pkgerrors.Wrapf(err, "failed to read state file %s", e.statePath)
	}
	if err := json.Unmarshal(b, &st); err != nil {
		return refresh.InterruptedState{}, pkgerrors.Wrapf(err, "failed to unmarshal state file %s", e.statePath)
	}
	return st, nil
}

func (e *Engine) persistInterruptedState(st refresh.InterruptedState) {
	if e.statePath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(e.statePath), 0755); err != nil {
		logrus.WithError(err).Error("failed to create state directory")
		return
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		logrus.WithError(err).Error("failed to marshal interrupted state")
		return
	}
	if err := os.WriteFile(e.statePath, b, 0644); err != nil {
		logrus.WithError(err).Error("failed to write interrupted state")
	}
}

func (e *Engine) clearInterruptedState() {
	e.persistInterruptedState(refresh.InterruptedState{})
}
