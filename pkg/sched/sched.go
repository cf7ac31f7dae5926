// Package sched provides a schedulable-task abstraction so that refresh and
// inactivity timers can be driven deterministically in tests without real
// wall-clock waits.
package sched

import (
	"sync"
	"time"
)

// Timer is a handle to a scheduled task
type Timer interface {
	// Stop cancels the task. It reports whether the cancellation prevented
	// the task from firing.
	Stop() bool
}

// Scheduler schedules one-shot tasks and reports the current time
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Real is a Scheduler backed by the wall clock
type Real struct{}

// NewReal creates a wall-clock scheduler
func NewReal() *Real {
	return &Real{}
}

// Now returns the current wall-clock time
func (r *Real) Now() time.Time {
	return time.Now()
}

// AfterFunc schedules fn to run after d
func (r *Real) AfterFunc(d time.Duration, fn func()) Timer {
	return realTimer{t: time.AfterFunc(d, fn)}
}

type realTimer struct {
	t *time.Timer
}

func (rt realTimer) Stop() bool {
	return rt.t.Stop()
}

// Fake is a Scheduler driven by explicit Advance calls. Tasks fire in
// deadline order; ties fire in scheduling order.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	nextID int
	tasks  []*fakeTask
}

type fakeTask struct {
	id       int
	deadline time.Time
	fn       func()
	fake     *Fake
	stopped  bool
}

// NewFake creates a fake scheduler starting at the given time
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake clock's current time
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// AfterFunc schedules fn to run once the fake clock advances past d
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	task := &fakeTask{
		id:       f.nextID,
		deadline: f.now.Add(d),
		fn:       fn,
		fake:     f,
	}
	f.tasks = append(f.tasks, task)
	return task
}

// Stop cancels the task if it has not fired yet
func (t *fakeTask) Stop() bool {
	t.fake.mu.Lock()
	defer t.fake.mu.Unlock()

	if t.stopped {
		return false
	}
	t.stopped = true
	for i, task := range t.fake.tasks {
		if task.id == t.id {
			t.fake.tasks = append(t.fake.tasks[:i], t.fake.tasks[i+1:]...)
			return true
		}
	}
	return false
}

// Advance moves the fake clock forward by d, firing every task whose
// deadline is reached. Tasks scheduled by a firing task are honored within
// the same Advance when their deadline also falls inside the window.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		task := f.popDue(target)
		if task == nil {
			break
		}
		task.fn()
	}

	f.mu.Lock()
	f.now = target
	f.mu.Unlock()
}

// popDue removes and returns the earliest task due at or before target,
// moving the clock to its deadline. Returns nil when none remain.
func (f *Fake) popDue(target time.Time) *fakeTask {
	f.mu.Lock()
	defer f.mu.Unlock()

	var earliest *fakeTask
	idx := -1
	for i, task := range f.tasks {
		if task.deadline.After(target) {
			continue
		}
		if earliest == nil || task.deadline.Before(earliest.deadline) ||
			(task.deadline.Equal(earliest.deadline) && task.id < earliest.id) {
			earliest = task
			idx = i
		}
	}
	if earliest == nil {
		return nil
	}

	f.tasks = append(f.tasks[:idx], f.tasks[idx+1:]...)
	earliest.stopped = true
	if earliest.deadline.After(f.now) {
		f.now = earliest.deadline
	}
	return earliest
}

// Pending reports how many tasks are scheduled but not yet fired
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}
