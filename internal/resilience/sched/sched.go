package sched

import (
	"sort"
	"sync"
	"time"
)

// Scheduler defers a function call by a delay. Implementations must run the
// function at most once; Cancel prevents a run that has not started yet.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) Handle
}

// Handle cancels a scheduled call. Cancel reports whether the call was
// prevented from running.
type Handle interface {
	Cancel() bool
}

// -----------------------------------------------------------------------------
// Wall-clock scheduler
// -----------------------------------------------------------------------------

// Timer schedules on real timers via time.AfterFunc.
type Timer struct{}

// NewTimer creates the production scheduler.
func NewTimer() *Timer {
	return &Timer{}
}

func (s *Timer) Schedule(delay time.Duration, fn func()) Handle {
	return timerHandle{timer: time.AfterFunc(delay, fn)}
}

type timerHandle struct {
	timer *time.Timer
}

func (h timerHandle) Cancel() bool {
	return h.timer.Stop()
}

// -----------------------------------------------------------------------------
// Manual scheduler (virtual clock)
// -----------------------------------------------------------------------------

// Manual is a virtual-clock scheduler for tests. Scheduled calls only fire
// when Advance moves the clock past their due time; they run synchronously on
// the advancing goroutine.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	nextID int
	timers []*manualTimer
}

type manualTimer struct {
	id    int
	due   time.Time
	fn    func()
	fired bool
}

// NewManual creates a manual scheduler starting at an arbitrary fixed instant.
func NewManual() *Manual {
	return &Manual{now: time.Unix(1700000000, 0)}
}

// Now returns the current virtual time.
func (s *Manual) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *Manual) Schedule(delay time.Duration, fn func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	t := &manualTimer{
		id:  s.nextID,
		due: s.now.Add(delay),
		fn:  fn,
	}
	s.timers = append(s.timers, t)
	return &manualHandle{sched: s, timer: t}
}

// Advance moves the clock forward and fires every timer due on the way, in
// due-time order.
func (s *Manual) Advance(d time.Duration) {
	s.mu.Lock()
	s.now = s.now.Add(d)
	target := s.now

	var due []*manualTimer
	remaining := s.timers[:0]
	for _, t := range s.timers {
		if !t.fired && !t.due.After(target) {
			t.fired = true
			due = append(due, t)
		} else if !t.fired {
			remaining = append(remaining, t)
		}
	}
	s.timers = remaining
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].due.Before(due[j].due) })
	for _, t := range due {
		t.fn()
	}
}

// Pending returns the number of timers not yet fired or cancelled.
func (s *Manual) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

type manualHandle struct {
	sched *Manual
	timer *manualTimer
}

func (h *manualHandle) Cancel() bool {
	h.sched.mu.Lock()
	defer h.sched.mu.Unlock()

	if h.timer.fired {
		return false
	}
	h.timer.fired = true

	remaining := h.sched.timers[:0]
	for _, t := range h.sched.timers {
		if t.id != h.timer.id {
			remaining = append(remaining, t)
		}
	}
	h.sched.timers = remaining
	return true
}
