package daemon

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "8:05", want: 485},
		{in: "23:50", want: 1430},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "nope", wantErr: true},
		{in: "12", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseClock(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("parseClock(%q) expected error, got %d", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseClock(%q) failed: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("parseClock(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func clock(t *testing.T, hhmm string) time.Time {
	t.Helper()
	parsed, err := time.Parse("15:04", hhmm)
	if err != nil {
		t.Fatalf("bad test clock %q: %v", hhmm, err)
	}
	return parsed
}

func TestWithinScheduleWindow(t *testing.T) {
	tests := []struct {
		name     string
		entries  []string
		interval int
		now      string
		want     bool
	}{
		{name: "inside plain window", entries: []string{"08:00"}, interval: 60, now: "08:30", want: true},
		{name: "window start is inclusive", entries: []string{"08:00"}, interval: 60, now: "08:00", want: true},
		{name: "window end is exclusive", entries: []string{"08:00"}, interval: 60, now: "09:00", want: false},
		{name: "before window", entries: []string{"08:00"}, interval: 60, now: "07:59", want: false},
		{name: "wraparound inside", entries: []string{"23:50"}, interval: 30, now: "00:10", want: true},
		{name: "wraparound outside", entries: []string{"23:50"}, interval: 30, now: "00:25", want: false},
		{name: "wraparound before start", entries: []string{"23:50"}, interval: 30, now: "23:49", want: false},
		{name: "second entry matches", entries: []string{"03:00", "15:00"}, interval: 120, now: "16:30", want: true},
		{name: "malformed entry skipped", entries: []string{"garbage", "10:00"}, interval: 60, now: "10:30", want: true},
		{name: "full-day interval always eligible", entries: []string{"12:00"}, interval: 1440, now: "11:59", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := withinScheduleWindow(tt.entries, tt.interval, clock(t, tt.now))
			if got != tt.want {
				t.Fatalf("withinScheduleWindow(%v, %d, %s) = %t, want %t",
					tt.entries, tt.interval, tt.now, got, tt.want)
			}
		})
	}
}

func TestSchedulerRunsEligibleTask(t *testing.T) {
	taskCh := make(chan struct{}, 1)

	s := NewScheduler(
		func() time.Duration { return 30 * time.Millisecond },
		func() bool { return true },
		func() { taskCh <- struct{}{} },
	)
	s.Start()
	defer s.Stop()

	select {
	case <-taskCh:
	case <-time.After(time.Second):
		t.Fatalf("task did not execute in time")
	}
}

func TestSchedulerSkipsIneligibleTask(t *testing.T) {
	var tasks int32

	s := NewScheduler(
		func() time.Duration { return 20 * time.Millisecond },
		func() bool { return false },
		func() { atomic.AddInt32(&tasks, 1) },
	)
	s.Start()
	defer s.Stop()

	time.Sleep(150 * time.Millisecond)
	if n := atomic.LoadInt32(&tasks); n != 0 {
		t.Fatalf("task executed %d times despite ineligibility", n)
	}
}

func TestSchedulerNextRun(t *testing.T) {
	s := NewScheduler(
		func() time.Duration { return time.Hour },
		func() bool { return true },
		func() {},
	)

	if !s.NextRun().IsZero() {
		t.Fatalf("next run should be zero before start")
	}

	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(time.Second)
	for s.NextRun().IsZero() {
		if time.Now().After(deadline) {
			t.Fatalf("next run was not set after start")
		}
		time.Sleep(time.Millisecond)
	}

	next := s.NextRun()
	if until := time.Until(next); until < 55*time.Minute || until > 65*time.Minute {
		t.Fatalf("next run %v is not about an hour away", next)
	}
}

func TestSchedulerRestartRecalculates(t *testing.T) {
	var interval atomic.Int64
	interval.Store(int64(time.Hour))

	s := NewScheduler(
		func() time.Duration { return time.Duration(interval.Load()) },
		func() bool { return true },
		func() {},
	)
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(time.Second)
	for s.NextRun().IsZero() {
		if time.Now().After(deadline) {
			t.Fatalf("next run was not set after start")
		}
		time.Sleep(time.Millisecond)
	}

	interval.Store(int64(10 * time.Minute))
	s.Restart()

	deadline = time.Now().Add(time.Second)
	for {
		if until := time.Until(s.NextRun()); until > 0 && until < 15*time.Minute {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("restart did not recompute next run, still %v away", time.Until(s.NextRun()))
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSchedulerStopIdempotent(t *testing.T) {
	s := NewScheduler(
		func() time.Duration { return time.Hour },
		func() bool { return true },
		func() {},
	)
	s.Start()
	s.Stop()
	s.Stop() // must not panic or double-close

	if !s.NextRun().IsZero() {
		t.Fatalf("next run should be cleared after stop")
	}

	// Start works again after a stop.
	s.Start()
	defer s.Stop()
}

func TestSchedulerInvalidInterval(t *testing.T) {
	errCh := make(chan error, 1)

	s := NewScheduler(
		func() time.Duration { return 0 },
		func() bool { return true },
		func() {},
	)
	s.OnError = func(err error) { errCh <- err }
	s.Start()
	defer s.Stop()

	select {
	case err := <-errCh:
		ee, ok := err.(*EngineError)
		if !ok || ee.Kind != ErrorScheduling {
			t.Fatalf("expected scheduling error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected scheduling error callback")
	}
}
