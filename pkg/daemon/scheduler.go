package daemon

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const minutesPerDay = 24 * 60

// Scheduler owns the repeating interval timer and decides, on each
// fire, whether a refresh run is eligible to start. Eligibility and the
// run itself are supplied as callbacks so the scheduler stays free of
// engine state.
type Scheduler struct {
	Interval  func() time.Duration // scheduler period, re-read on every cycle
	ShouldRun func() bool          // eligibility check, evaluated per fire
	Task      func()               // starts a session
	OnError   func(error)          // scheduling failures, non-fatal

	mu      sync.Mutex
	running bool
	nextRun time.Time

	controlCh chan struct{}
	stopCh    chan struct{}
}

func NewScheduler(interval func() time.Duration, shouldRun func() bool, task func()) *Scheduler {
	if interval == nil || shouldRun == nil || task == nil {
		panic("scheduler callbacks cannot be nil")
	}
	return &Scheduler{
		Interval:  interval,
		ShouldRun: shouldRun,
		Task:      task,
		controlCh: make(chan struct{}, 1),
	}
}

// Start installs the repeating timer. Starting an already-running
// scheduler is a no-op, so there is never more than one timer loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	go s.loop(s.stopCh)
}

// Stop cancels the timer loop. Safe to call multiple times and while
// stopped; teardown happens exactly once per Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.nextRun = time.Time{}
	close(s.stopCh)
}

// Restart recomputes the timer from the current interval. Called when
// the interval or schedule settings change; the prior timer is always
// cancelled first.
func (s *Scheduler) Restart() {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		s.Start()
		return
	}
	select {
	case s.controlCh <- struct{}{}:
	default:
	}
}

// NextRun returns the next time the timer fires, or the zero time when
// the scheduler is stopped.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRun
}

func (s *Scheduler) loop(stopCh chan struct{}) {
	logrus.Debug("scheduler started")
	defer logrus.Debug("scheduler stopped")

	for {
		d := s.Interval()
		if d <= 0 {
			if s.OnError != nil {
				s.OnError(&EngineError{Kind: ErrorScheduling, Err: fmt.Errorf("invalid scheduler interval %v", d)})
			}
			s.mu.Lock()
			s.running = false
			s.nextRun = time.Time{}
			s.mu.Unlock()
			return
		}

		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			return
		}
		s.nextRun = time.Now().Add(d)
		s.mu.Unlock()

		timer := time.NewTimer(d)
		select {
		case <-timer.C:
			if s.ShouldRun() {
				s.Task()
			} else {
				logrus.Debug("scheduled refresh skipped, conditions not met")
			}
		case <-stopCh:
			timer.Stop()
			return
		case <-s.controlCh:
			timer.Stop()
		}
	}
}

// parseClock converts an "HH:MM" string to minutes since midnight.
func parseClock(s string) (int, error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("malformed clock string %q", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("malformed hour in %q", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("malformed minute in %q", s)
	}
	return hour*60 + minute, nil
}

// withinScheduleWindow reports whether now falls inside
// [entry, entry+interval) for at least one schedule entry. Windows wrap
// across midnight: entry 23:50 with a 30-minute interval covers
// 23:50-00:20.
func withinScheduleWindow(entries []string, intervalMinutes int, now time.Time) bool {
	nowMin := now.Hour()*60 + now.Minute()
	for _, e := range entries {
		start, err := parseClock(e)
		if err != nil {
			// Entries are validated at the config boundary; a stray
			// malformed one is skipped, not fatal.
			logrus.Debugf("skipping schedule entry: %v", err)
			continue
		}
		if (nowMin-start+minutesPerDay)%minutesPerDay < intervalMinutes {
			return true
		}
	}
	return false
}
