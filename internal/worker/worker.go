// Package worker implements the second core's job manager. Core 0 submits
// typed jobs on a bounded channel; the manager task on core 1 runs them
// and publishes results on another. In the module this is where the slow
// work lives (SD card flushes, sequence serialization) so the UI core
// never stalls; the channels are the only state the two cores share.
package worker

import (
	"github.com/pferreir/rpico-euro-seq/internal/channel"
	"github.com/pferreir/rpico-euro-seq/internal/hal"
	"github.com/pferreir/rpico-euro-seq/internal/task"
)

// Job is a unit of background work. The closure must not retain state
// owned by core 0 beyond the job's lifetime.
type Job struct {
	ID  uint32
	Run func() error
}

// Result reports a finished job back to core 0.
type Result struct {
	ID  uint32
	Err error
}

// Manager owns the submission and result channels and the core 1 task.
type Manager struct {
	submit  *channel.Chan[Job]
	results *channel.Chan[Result]
}

// New returns a Manager whose channels hold up to capacity jobs and
// results.
func New(lock hal.Spinlock, capacity int) *Manager {
	return &Manager{
		submit:  channel.New[Job](lock, capacity),
		results: channel.New[Result](lock, capacity),
	}
}

// TrySubmit submits a job without suspending; channel.ErrFull applies
// backpressure to the caller.
func (m *Manager) TrySubmit(j Job) error {
	return m.submit.TrySend(j)
}

// Submit is the suspending form, for use from a cooperative task.
func (m *Manager) Submit(j Job, w task.Waker) bool {
	return m.submit.Send(j, w)
}

// Results returns the channel core 0 consumes results from.
func (m *Manager) Results() *channel.Chan[Result] {
	return m.results
}

// Task returns the manager's cooperative task, to be spawned on core 1.
func (m *Manager) Task() task.Task {
	return &managerTask{m: m}
}

const (
	stateRecv = iota
	statePublish
)

type managerTask struct {
	m       *Manager
	state   int
	pending Result
}

func (t *managerTask) Poll(w task.Waker) task.Poll {
	for {
		switch t.state {
		case stateRecv:
			job, ok := t.m.submit.Recv(w)
			if !ok {
				return task.Pending
			}
			t.pending = Result{ID: job.ID, Err: job.Run()}
			t.state = statePublish

		case statePublish:
			// results apply backpressure too: suspend until core 0
			// drains a slot
			if !t.m.results.Send(t.pending, w) {
				return task.Pending
			}
			t.state = stateRecv
		}
	}
}
