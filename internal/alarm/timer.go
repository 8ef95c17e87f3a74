package alarm

import (
	"github.com/pferreir/rpico-euro-seq/internal/hal"
	"github.com/pferreir/rpico-euro-seq/internal/task"
)

// Timer is a poll-style one-shot built on a logical alarm. It is the
// wait(duration) primitive of the task layer: a task calls Start, then
// returns Pending from its poll until Poll reports Ready. A Timer belongs
// to a single task; it keeps one waker.
type Timer struct {
	mux  *Mux
	lock hal.Spinlock
	h    Handle

	expired bool
	waker   task.Waker
	waiting bool
}

// NewTimer allocates a logical alarm for the timer. Like all allocations
// this happens once, at startup.
func NewTimer(m *Mux) (*Timer, error) {
	h, err := m.Allocate()
	if err != nil {
		return nil, err
	}
	t := &Timer{mux: m, lock: m.lock, h: h}
	m.SetCallback(h, t.fire)
	return t, nil
}

// Start arms the timer to expire after d ticks. Restarting an expired
// timer resets it; Start must not be called while a previous Start is
// still pending.
func (t *Timer) Start(d uint64) {
	st := t.lock.Lock()
	t.expired = false
	t.lock.Unlock(st)
	t.mux.Schedule(t.h, t.mux.Now()+d)
}

// Poll reports Ready once the timer has expired, otherwise it registers w
// and reports Pending.
func (t *Timer) Poll(w task.Waker) task.Poll {
	st := t.lock.Lock()
	if t.expired {
		t.waiting = false
		t.lock.Unlock(st)
		return task.Ready
	}
	t.waker = w
	t.waiting = true
	t.lock.Unlock(st)
	return task.Pending
}

// fire runs in interrupt context on expiry.
func (t *Timer) fire() {
	st := t.lock.Lock()
	t.expired = true
	wake := t.waiting
	w := t.waker
	t.waiting = false
	t.lock.Unlock(st)
	if wake {
		w.Wake()
	}
}
