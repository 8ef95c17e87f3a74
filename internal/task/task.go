// Package task implements the cooperative scheduler that advances the
// firmware's tasks. There is one Scheduler per core; a task is an explicit
// state machine whose Poll method either completes a step or registers a
// wake interest (with a channel or a timer) and reports Pending. Nothing
// preempts a task mid-poll: the only concurrency on a core is between task
// context and interrupt context, and across the two cores.
package task

import (
	"errors"

	"github.com/pferreir/rpico-euro-seq/internal/hal"
)

// Poll is the result of polling a task or a pollable resource.
type Poll uint8

const (
	// Pending means the task cannot make progress; a wake interest was
	// registered and the scheduler will re-poll after the next Wake.
	Pending Poll = iota
	// Ready means the task has run to completion and is never polled
	// again. Long-lived tasks simply never return Ready.
	Ready
)

// Task is a cooperatively scheduled unit of work.
type Task interface {
	// Poll advances the task as far as it can go. A task returning
	// Pending must have handed w to whatever resource it is waiting on.
	Poll(w Waker) Poll
}

// MaxTasks is the size of a core's task table. Task creation happens only
// during system initialization, so this is a sizing constant rather than a
// resource pool.
const MaxTasks = 16

// ErrTooManyTasks is returned by Spawn once the task table is full.
var ErrTooManyTasks = errors.New("task: table full")

// Waker marks its task runnable. A Waker is a plain value and may be
// copied, stored in a channel's waiter list, and invoked from interrupt
// context or from the other core. Waking a task that is already queued,
// already running, or finished is harmless.
type Waker struct {
	s  *Scheduler
	id uint8
}

// Wake enqueues the task on its core's runqueue and unparks the core.
func (w Waker) Wake() {
	if w.s != nil {
		w.s.wake(w.id)
	}
}

// Scheduler runs the tasks of one core. All runqueue state is guarded by
// the shared spinlock so that Wake is safe from any context.
type Scheduler struct {
	lock  hal.Spinlock
	idler hal.Idler
	core  hal.Core

	tasks  [MaxTasks]Task
	n      uint8
	queued [MaxTasks]bool
	done   [MaxTasks]bool

	runq       [MaxTasks]uint8
	head, tail uint8
	count      uint8

	stopped bool
}

// New returns a Scheduler for the given core. The idler may be nil for
// schedulers that are only ever stepped with RunOnce (tests, the
// deterministic simulator loop).
func New(core hal.Core, lock hal.Spinlock, idler hal.Idler) *Scheduler {
	return &Scheduler{lock: lock, idler: idler, core: core}
}

// Core returns the core this scheduler runs on.
func (s *Scheduler) Core() hal.Core {
	return s.core
}

// Spawn adds a task to the table and queues its first poll. Spawning is a
// startup-only operation; tasks are never destroyed.
func (s *Scheduler) Spawn(t Task) (Waker, error) {
	st := s.lock.Lock()
	if s.n == MaxTasks {
		s.lock.Unlock(st)
		return Waker{}, ErrTooManyTasks
	}
	id := s.n
	s.tasks[id] = t
	s.n++
	s.push(id)
	s.lock.Unlock(st)
	return Waker{s: s, id: id}, nil
}

// push appends id to the runqueue. Callers hold the lock and have checked
// that the task is neither queued nor done.
func (s *Scheduler) push(id uint8) {
	s.runq[s.tail] = id
	s.tail = (s.tail + 1) % MaxTasks
	s.count++
	s.queued[id] = true
}

func (s *Scheduler) wake(id uint8) {
	st := s.lock.Lock()
	if !s.queued[id] && !s.done[id] {
		s.push(id)
	}
	idler := s.idler
	s.lock.Unlock(st)
	if idler != nil {
		idler.Unpark()
	}
}

// RunOnce polls every task that was runnable on entry, exactly once each,
// and returns the number of polls performed. Tasks woken during the pass
// are left queued for the next pass, which keeps stepping deterministic.
func (s *Scheduler) RunOnce() int {
	st := s.lock.Lock()
	pending := s.count
	s.lock.Unlock(st)

	polled := 0
	for ; pending > 0; pending-- {
		st = s.lock.Lock()
		if s.count == 0 {
			s.lock.Unlock(st)
			break
		}
		id := s.runq[s.head]
		s.head = (s.head + 1) % MaxTasks
		s.count--
		s.queued[id] = false
		t := s.tasks[id]
		s.lock.Unlock(st)

		if t == nil {
			continue
		}
		// poll outside the lock: the task will take it itself for any
		// channel or timer operation
		if t.Poll(Waker{s: s, id: id}) == Ready {
			st = s.lock.Lock()
			s.done[id] = true
			s.tasks[id] = nil
			s.lock.Unlock(st)
		}
		polled++
	}
	return polled
}

// Run loops RunOnce, parking the core whenever the runqueue drains. It
// returns after Stop, or immediately on an idle pass when no idler was
// provided.
func (s *Scheduler) Run() {
	for {
		st := s.lock.Lock()
		stopped := s.stopped
		s.lock.Unlock(st)
		if stopped {
			return
		}
		if s.RunOnce() == 0 {
			if s.idler == nil {
				return
			}
			s.idler.Park()
		}
	}
}

// Stop makes Run return after the current pass.
func (s *Scheduler) Stop() {
	st := s.lock.Lock()
	s.stopped = true
	idler := s.idler
	s.lock.Unlock(st)
	if idler != nil {
		idler.Unpark()
	}
}

// Func adapts a plain poll function to the Task interface.
type Func func(w Waker) Poll

func (f Func) Poll(w Waker) Poll {
	return f(w)
}
