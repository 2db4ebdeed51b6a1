package daemon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oledcare/oledcare/pkg/config"
	"github.com/oledcare/oledcare/pkg/display"
	"github.com/oledcare/oledcare/pkg/refresh"
)

// fakeConf is an in-memory config.Config.
type fakeConf struct {
	mu       sync.Mutex
	enabled  bool
	interval int
	speed    int
	smart    bool
	schedule []string
}

func (c *fakeConf) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

func (c *fakeConf) IntervalMinutes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

func (c *fakeConf) Speed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

func (c *fakeConf) SmartMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.smart
}

func (c *fakeConf) Schedule() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.schedule
}

func (c *fakeConf) SetEnabled(b bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = b
}

func (c *fakeConf) SetIntervalMinutes(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interval = i
}

func (c *fakeConf) SetSpeed(s int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed = s
}

func (c *fakeConf) SetSmartMode(b bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.smart = b
}

func (c *fakeConf) SetSchedule(s []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schedule = s
}

func (c *fakeConf) Load() error { return nil }
func (c *fakeConf) Save() error { return nil }

func (c *fakeConf) LogrusFields() logrus.Fields { return logrus.Fields{} }

var _ config.Config = &fakeConf{}

func newFakeConf() *fakeConf {
	return &fakeConf{enabled: true, interval: 360, speed: 3, smart: false}
}

// recListener records engine events.
type recListener struct {
	mu       sync.Mutex
	statuses []refresh.Status
	errs     []*EngineError
}

func (l *recListener) OnProgress(float64, string) {}

func (l *recListener) OnStatusChange(_, to refresh.Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses = append(l.statuses, to)
}

func (l *recListener) OnError(err *EngineError) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
}

func (l *recListener) errorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errs)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// setSlowRuns pins the run duration to an hour so progress is
// effectively frozen during a test.
func setSlowRuns(t *testing.T) {
	t.Helper()
	prev := durationForSpeed
	durationForSpeed = func(int) time.Duration { return time.Hour }
	t.Cleanup(func() { durationForSpeed = prev })
}

func setFastRuns(t *testing.T) {
	t.Helper()
	prev := durationForSpeed
	durationForSpeed = func(int) time.Duration { return 200 * time.Millisecond }
	t.Cleanup(func() { durationForSpeed = prev })
}

func readState(t *testing.T, path string) refresh.InterruptedState {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read state file: %v", err)
	}
	var st refresh.InterruptedState
	if err := json.Unmarshal(b, &st); err != nil {
		t.Fatalf("failed to unmarshal state file: %v", err)
	}
	return st
}

func writeState(t *testing.T, path string, st refresh.InterruptedState) {
	t.Helper()
	b, err := json.Marshal(st)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		t.Fatal(err)
	}
}

func newTestEngine(t *testing.T, conf *fakeConf, env display.Environment) (*Engine, *recListener, string) {
	t.Helper()
	if env == nil {
		env = display.StaticEnvironment{Idle: true}
	}
	statePath := filepath.Join(t.TempDir(), "state.json")
	listener := &recListener{}
	e := NewEngine(conf, &fakeRenderer{}, env, listener, statePath)
	t.Cleanup(e.Close)
	return e, listener, statePath
}

func TestTriggerRefusedWhileRunning(t *testing.T) {
	setSlowRuns(t)
	e, _, _ := newTestEngine(t, newFakeConf(), nil)

	if err := e.TriggerManual(); err != nil {
		t.Fatalf("TriggerManual failed: %v", err)
	}
	if err := e.TriggerManual(); err != ErrRefreshInProgress {
		t.Fatalf("expected ErrRefreshInProgress, got %v", err)
	}
}

func TestTriggerRefusedWhileDisabled(t *testing.T) {
	conf := newFakeConf()
	conf.SetEnabled(false)
	e, _, _ := newTestEngine(t, conf, nil)

	if err := e.TriggerManual(); err != ErrEngineDisabled {
		t.Fatalf("expected ErrEngineDisabled, got %v", err)
	}
	if got := e.Report().Status; got != refresh.StatusDisabled {
		t.Fatalf("disabled engine reports status %s", got)
	}
}

func TestCompletedRunClearsInterruptedState(t *testing.T) {
	setFastRuns(t)
	e, _, statePath := newTestEngine(t, newFakeConf(), nil)

	// A stale marker must not survive a completed run.
	writeState(t, statePath, refresh.InterruptedState{Interrupted: true, ProgressPercent: 10})

	if err := e.TriggerManual(); err != nil {
		t.Fatalf("TriggerManual failed: %v", err)
	}
	waitFor(t, "run completion", func() bool { return e.Report().Status == refresh.StatusIdle })

	if st := readState(t, statePath); st.Interrupted {
		t.Fatalf("interrupted state not cleared after completion: %+v", st)
	}
}

func TestCancelAndResumeRoundTrip(t *testing.T) {
	setSlowRuns(t)
	conf := newFakeConf()
	e, _, statePath := newTestEngine(t, conf, nil)

	// Seed a previously interrupted run at 42%.
	writeState(t, statePath, refresh.InterruptedState{Interrupted: true, ProgressPercent: 42})

	if err := e.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	waitFor(t, "resumed run", func() bool { return e.Report().Running })

	r := e.Report()
	if r.Progress != 42 {
		t.Fatalf("resumed run progress = %d, want 42", r.Progress)
	}
	if r.Phase != "blue" {
		t.Fatalf("progress 0.42 should resume in the blue phase, got %q", r.Phase)
	}

	// The marker is cleared once the resumed run is underway.
	if st := readState(t, statePath); st.Interrupted {
		t.Fatalf("interrupted flag should be cleared after resume: %+v", st)
	}

	// Resuming again without a new interruption is a no-op.
	if err := e.Resume(); err != nil {
		t.Fatalf("second Resume errored: %v", err)
	}

	// Cancel with save: the same progress lands back on disk.
	if err := e.Cancel(true); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	waitFor(t, "cancelled run to settle", func() bool { return !e.Report().Running })

	st := readState(t, statePath)
	if !st.Interrupted || st.ProgressPercent != 42 {
		t.Fatalf("persisted state after cancel = %+v, want interrupted at 42", st)
	}

	// A fresh engine picks the run back up at the same point.
	e2 := NewEngine(conf, &fakeRenderer{}, display.StaticEnvironment{Idle: true}, &recListener{}, statePath)
	t.Cleanup(e2.Close)
	e2.Start()
	waitFor(t, "restart resume", func() bool { return e2.Report().Running })
	if got := e2.Report().Progress; got != 42 {
		t.Fatalf("restarted engine resumed at %d%%, want 42%%", got)
	}
	if st := readState(t, statePath); st.Interrupted {
		t.Fatalf("interrupted flag should be cleared after restart resume")
	}
}

func TestCancelWithoutSaveDoesNotPersist(t *testing.T) {
	setSlowRuns(t)
	e, _, statePath := newTestEngine(t, newFakeConf(), nil)

	if err := e.TriggerManual(); err != nil {
		t.Fatalf("TriggerManual failed: %v", err)
	}
	if err := e.Cancel(false); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	waitFor(t, "cancelled run to settle", func() bool { return !e.Report().Running })

	if _, err := os.Stat(statePath); !os.IsNotExist(err) {
		st := readState(t, statePath)
		if st.Interrupted {
			t.Fatalf("cancel without save persisted state: %+v", st)
		}
	}
}

func TestCancelWhenIdle(t *testing.T) {
	e, _, _ := newTestEngine(t, newFakeConf(), nil)
	if err := e.Cancel(true); err != ErrRefreshNotRunning {
		t.Fatalf("expected ErrRefreshNotRunning, got %v", err)
	}
}

func TestPrepareForSleepSavesAndWakeResumes(t *testing.T) {
	setSlowRuns(t)
	e, _, statePath := newTestEngine(t, newFakeConf(), nil)

	writeState(t, statePath, refresh.InterruptedState{Interrupted: true, ProgressPercent: 60})
	if err := e.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	waitFor(t, "run start", func() bool { return e.Report().Running })

	e.HandlePrepareForSleep(true)
	waitFor(t, "pre-sleep cancel", func() bool { return !e.Report().Running })

	st := readState(t, statePath)
	if !st.Interrupted || st.ProgressPercent != 60 {
		t.Fatalf("pre-sleep state = %+v, want interrupted at 60", st)
	}

	e.HandlePrepareForSleep(false)
	waitFor(t, "post-wake resume", func() bool { return e.Report().Running })
	if got := e.Report().Progress; got != 60 {
		t.Fatalf("post-wake progress = %d, want 60", got)
	}
}

func TestDisableInterruptsRunningSession(t *testing.T) {
	setSlowRuns(t)
	conf := newFakeConf()
	e, _, statePath := newTestEngine(t, conf, nil)

	writeState(t, statePath, refresh.InterruptedState{Interrupted: true, ProgressPercent: 30})
	if err := e.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	waitFor(t, "run start", func() bool { return e.Report().Running })

	conf.SetEnabled(false)
	e.ConfigChanged()
	e.ConfigChanged() // repeated disable must be a no-op
	waitFor(t, "disabled status", func() bool { return e.Report().Status == refresh.StatusDisabled })

	if st := readState(t, statePath); !st.Interrupted {
		t.Fatalf("disable must save the interrupted run, got %+v", st)
	}

	// Re-enabling restores Idle but must not auto-resume.
	conf.SetEnabled(true)
	e.ConfigChanged()
	waitFor(t, "idle status", func() bool { return e.Report().Status == refresh.StatusIdle })
	time.Sleep(50 * time.Millisecond)
	if e.Report().Running {
		t.Fatalf("re-enable must not auto-resume")
	}

	// The saved run is still resumable through the explicit check.
	if err := e.Resume(); err != nil {
		t.Fatalf("Resume after re-enable failed: %v", err)
	}
	waitFor(t, "explicit resume", func() bool { return e.Report().Running })
	if got := e.Report().Progress; got != 30 {
		t.Fatalf("explicit resume progress = %d, want 30", got)
	}
}

// cancelOnRunListener cancels the session with save the moment it
// starts, which is the tightest window a cancel can race a resume.
type cancelOnRunListener struct {
	recListener
	engine *Engine
	once   sync.Once
}

func (l *cancelOnRunListener) OnStatusChange(from, to refresh.Status) {
	l.recListener.OnStatusChange(from, to)
	if to == refresh.StatusRunning {
		l.once.Do(func() { _ = l.engine.Cancel(true) })
	}
}

func TestCancelRacingResumeKeepsSavedProgress(t *testing.T) {
	setSlowRuns(t)
	conf := newFakeConf()
	statePath := filepath.Join(t.TempDir(), "state.json")
	listener := &cancelOnRunListener{}
	e := NewEngine(conf, &fakeRenderer{}, display.StaticEnvironment{Idle: true}, listener, statePath)
	t.Cleanup(e.Close)
	listener.engine = e

	writeState(t, statePath, refresh.InterruptedState{Interrupted: true, ProgressPercent: 42})
	if err := e.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	waitFor(t, "cancelled run to settle", func() bool { return !e.Report().Running })

	st := readState(t, statePath)
	if !st.Interrupted || st.ProgressPercent != 42 {
		t.Fatalf("cancel racing a resume lost the saved progress: %+v", st)
	}
}

func TestFailedResumeKeepsMarker(t *testing.T) {
	setSlowRuns(t)
	e, _, statePath := newTestEngine(t, newFakeConf(), nil)

	if err := e.TriggerManual(); err != nil {
		t.Fatalf("TriggerManual failed: %v", err)
	}

	writeState(t, statePath, refresh.InterruptedState{Interrupted: true, ProgressPercent: 42})
	if err := e.Resume(); err != ErrRefreshInProgress {
		t.Fatalf("expected ErrRefreshInProgress, got %v", err)
	}

	st := readState(t, statePath)
	if !st.Interrupted || st.ProgressPercent != 42 {
		t.Fatalf("failed resume must leave the marker intact, got %+v", st)
	}
}

func TestSmartModeGatesScheduledRuns(t *testing.T) {
	conf := newFakeConf()
	conf.SetSmartMode(true)

	e, _, _ := newTestEngine(t, conf, display.StaticEnvironment{Idle: false})
	if e.shouldRun() {
		t.Fatalf("smart mode must refuse while the session is active")
	}

	e2, _, _ := newTestEngine(t, conf, display.StaticEnvironment{Idle: true, Fullscreen: true})
	if e2.shouldRun() {
		t.Fatalf("smart mode must refuse while a fullscreen app is up")
	}

	e3, _, _ := newTestEngine(t, conf, display.StaticEnvironment{Idle: true})
	if !e3.shouldRun() {
		t.Fatalf("smart mode should allow an idle session with no fullscreen app")
	}
}

func TestScheduleWindowGatesScheduledRuns(t *testing.T) {
	conf := newFakeConf()
	conf.SetSchedule([]string{"00:00"})
	conf.SetIntervalMinutes(1440)

	e, _, _ := newTestEngine(t, conf, nil)
	if !e.shouldRun() {
		t.Fatalf("a full-day window must always be eligible")
	}
}

func TestCloseIdempotent(t *testing.T) {
	setSlowRuns(t)
	conf := newFakeConf()
	listener := &recListener{}
	statePath := filepath.Join(t.TempDir(), "state.json")
	e := NewEngine(conf, &fakeRenderer{}, display.StaticEnvironment{Idle: true}, listener, statePath)

	if err := e.TriggerManual(); err != nil {
		t.Fatalf("TriggerManual failed: %v", err)
	}
	waitFor(t, "run start", func() bool { return e.Report().Running })

	e.Close()
	e.Close() // second close must be a clean no-op

	waitFor(t, "run teardown", func() bool { return !e.Report().Running })
	if n := listener.errorCount(); n != 0 {
		t.Fatalf("idempotent teardown emitted %d error events", n)
	}

	if err := e.TriggerManual(); err != ErrEngineClosed {
		t.Fatalf("expected ErrEngineClosed after close, got %v", err)
	}
}

func TestManualTriggerBypassesGates(t *testing.T) {
	setSlowRuns(t)
	conf := newFakeConf()
	conf.SetSmartMode(true)
	conf.SetSchedule([]string{"00:00"})
	conf.SetIntervalMinutes(60)

	// Environment reports activity and the window almost certainly does
	// not cover "now"; a manual trigger must still start.
	e, _, _ := newTestEngine(t, conf, display.StaticEnvironment{Idle: false, Fullscreen: true})
	if err := e.TriggerManual(); err != nil {
		t.Fatalf("manual trigger must bypass schedule and smart gates: %v", err)
	}
	waitFor(t, "manual run", func() bool { return e.Report().Running })
}
