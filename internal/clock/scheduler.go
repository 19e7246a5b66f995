// Package clock provides the timing primitives of an exam session: a
// scheduler abstraction and the countdown built on top of it.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Cancel stops a scheduled callback. It is safe to call more than once and
// from inside the callback itself.
type Cancel func()

// Scheduler runs callbacks after a delay or on an interval.
type Scheduler interface {
	Every(interval time.Duration, fn func()) Cancel
	After(delay time.Duration, fn func()) Cancel
}

// RealScheduler schedules on the wall clock.
type RealScheduler struct{}

// NewRealScheduler returns a wall-clock scheduler.
func NewRealScheduler() RealScheduler { return RealScheduler{} }

// Every runs fn on its own goroutine once per interval until cancelled.
func (RealScheduler) Every(interval time.Duration, fn func()) Cancel {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	var once sync.Once

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				select {
				case <-done:
					return
				default:
				}
				fn()
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }
}

// After runs fn once after delay.
func (RealScheduler) After(delay time.Duration, fn func()) Cancel {
	t := time.AfterFunc(delay, fn)
	return func() { t.Stop() }
}

// ManualScheduler is a Scheduler driven by Advance. Callbacks run on the
// goroutine calling Advance, in due order, with ties broken by registration order.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []*manualTask
}

type manualTask struct {
	seq      int
	due      time.Duration
	interval time.Duration
	fn       func()
}

// NewManualScheduler returns a scheduler at virtual time zero.
func NewManualScheduler() *ManualScheduler { return &ManualScheduler{} }

func (m *ManualScheduler) Every(interval time.Duration, fn func()) Cancel {
	if interval <= 0 {
		interval = time.Nanosecond
	}
	return m.add(interval, interval, fn)
}

func (m *ManualScheduler) After(delay time.Duration, fn func()) Cancel {
	return m.add(delay, 0, fn)
}

func (m *ManualScheduler) add(delay, interval time.Duration, fn func()) Cancel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	task := &manualTask{seq: m.seq, due: m.now + delay, interval: interval, fn: fn}
	m.tasks = append(m.tasks, task)
	return func() { m.remove(task) }
}

func (m *ManualScheduler) remove(task *manualTask) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.tasks {
		if t == task {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			return
		}
	}
}

// Advance moves virtual time forward by d, firing everything that falls due.
func (m *ManualScheduler) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		task := m.nextDue(target)
		if task == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = task.due
		if task.interval > 0 {
			task.due += task.interval
		} else {
			for i, t := range m.tasks {
				if t == task {
					m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
					break
				}
			}
		}
		fn := task.fn
		m.mu.Unlock()

		fn()
	}
}

func (m *ManualScheduler) nextDue(target time.Duration) *manualTask {
	due := make([]*manualTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		if t.due <= target {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].due != due[j].due {
			return due[i].due < due[j].due
		}
		return due[i].seq < due[j].seq
	})
	return due[0]
}

// Now returns the virtual time elapsed since creation.
func (m *ManualScheduler) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending returns the number of live scheduled callbacks.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}
