// Package debounce converts noisy GPIO edges into one clean callback per
// quiescence window. The GPIO ISR masks the bouncing source and defers the
// rest of the work to a cooperative task through a bounded channel: the
// task clears whatever edges accumulated while masked, waits out the
// quiescence window on a logical alarm, unmasks the source and finally
// runs the original callback. Between mask and unmask the source cannot
// produce an observable interrupt, so exactly one callback runs per
// accepted request no matter how many physical bounces occurred.
package debounce

import (
	"github.com/pferreir/rpico-euro-seq/internal/alarm"
	"github.com/pferreir/rpico-euro-seq/internal/channel"
	"github.com/pferreir/rpico-euro-seq/internal/hal"
	"github.com/pferreir/rpico-euro-seq/internal/task"
)

// DefaultQuiescence is the default quiescence window in ticks (10 ms at
// one tick per microsecond).
const DefaultQuiescence = 10_000

// Request is one deferred edge: which source bounced and what to run once
// it settles. At most one request is outstanding per physical edge,
// because the source stays masked until the dispatcher re-enables it.
type Request struct {
	Source, Pin uint8
	Callback    func()
}

// Dispatcher owns the request channel and the quiescence timer.
type Dispatcher struct {
	lock       hal.Spinlock
	gpio       hal.GPIOBank
	requests   *channel.Chan[Request]
	timer      *alarm.Timer
	quiescence uint64
}

// New returns a Dispatcher whose request channel holds up to capacity
// deferred edges. It allocates one logical alarm from the multiplexer.
func New(lock hal.Spinlock, gpio hal.GPIOBank, mux *alarm.Mux, quiescence uint64, capacity int) (*Dispatcher, error) {
	t, err := alarm.NewTimer(mux)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		lock:       lock,
		gpio:       gpio,
		requests:   channel.New[Request](lock, capacity),
		timer:      t,
		quiescence: quiescence,
	}, nil
}

// HandleEdge is called from the GPIO ISR for an edge that should be
// debounced. It masks the source and enqueues the deferred work. A full
// request channel would leave the source masked forever, so overflow is a
// capacity-planning violation and panics rather than dropping.
func (d *Dispatcher) HandleEdge(source, pin uint8, cb func()) {
	d.gpio.EnableEdge(source, pin, false)
	if err := d.requests.TrySend(Request{Source: source, Pin: pin, Callback: cb}); err != nil {
		panic("debounce: request channel overflow")
	}
}

// Task returns the dispatcher's cooperative task. Spawn it exactly once.
func (d *Dispatcher) Task() task.Task {
	return &dispatchTask{d: d}
}

const (
	stateRecv = iota
	stateWait
)

// dispatchTask is the debounce loop as a poll state machine.
type dispatchTask struct {
	d     *Dispatcher
	state int
	req   Request
}

func (t *dispatchTask) Poll(w task.Waker) task.Poll {
	d := t.d
	for {
		switch t.state {
		case stateRecv:
			req, ok := d.requests.Recv(w)
			if !ok {
				return task.Pending
			}
			t.req = req
			// edges latched while masked belong to the same bounce
			d.gpio.ClearPending(req.Source, req.Pin)
			d.timer.Start(d.quiescence)
			t.state = stateWait

		case stateWait:
			if d.timer.Poll(w) == task.Pending {
				return task.Pending
			}
			d.gpio.EnableEdge(t.req.Source, t.req.Pin, true)
			// the callback may touch interrupt-shared state
			st := d.lock.Lock()
			t.req.Callback()
			d.lock.Unlock(st)
			t.state = stateRecv
		}
	}
}
