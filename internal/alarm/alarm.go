// Package alarm multiplexes the four hardware comparator alarms of the
// timer block into logical alarms with full 64-bit deadlines. The hardware
// compare register is only 32 bits wide, so a deadline more than 2^32
// ticks away is programmed truncated and fires early on purpose: the
// interrupt handler notices the stored 64-bit deadline has not been
// reached, re-programs the comparator with the remaining distance and
// returns. At one tick per microsecond the cycle repeats every ~71
// minutes until the real deadline falls inside the register's range. This
// is the intended compensation for the narrow register, not a bug.
package alarm

import (
	"errors"
	"fmt"

	"github.com/pferreir/rpico-euro-seq/internal/hal"
)

// ErrOutOfAlarms is returned by Allocate once every hardware comparator
// has been claimed. Allocation is permanent, so hitting this is a startup
// sizing error.
var ErrOutOfAlarms = errors.New("alarm: out of hardware alarms")

// disarmed is the sentinel deadline of an idle slot.
const disarmed = ^uint64(0)

// Callback is invoked in interrupt context when a logical alarm expires.
// The slot is disarmed before the callback runs, so the callback may call
// Schedule to re-arm, including from within itself for periodic timers.
// A callback must not outlive the state it captures.
type Callback func()

// Handle identifies an allocated logical alarm.
type Handle uint8

type slot struct {
	deadline uint64
	cb       Callback
}

// Mux owns the timer block and the logical alarm slots. All slot state is
// guarded by the shared spinlock; the hardware ISR and both cores go
// through the same lock.
type Mux struct {
	lock hal.Spinlock
	hw   hal.TimerUnit

	slots     [hal.NumAlarms]slot
	allocated uint8
}

// New returns a Mux over the given timer unit and installs its interrupt
// handlers for every comparator.
func New(lock hal.Spinlock, hw hal.TimerUnit) *Mux {
	m := &Mux{lock: lock, hw: hw}
	for i := range m.slots {
		m.slots[i].deadline = disarmed
		i := i
		hw.SetISR(i, func() { m.irq(i) })
	}
	return m
}

// Now reads the monotonic counter. It never fails and never blocks beyond
// the critical section.
func (m *Mux) Now() uint64 {
	st := m.lock.Lock()
	now := m.hw.Counter()
	m.lock.Unlock(st)
	return now
}

// Allocate claims the next free comparator and returns its handle. Handles
// are never released; allocation fails permanently once all comparators
// are claimed.
func (m *Mux) Allocate() (Handle, error) {
	st := m.lock.Lock()
	if m.allocated == hal.NumAlarms {
		m.lock.Unlock(st)
		return 0, ErrOutOfAlarms
	}
	h := Handle(m.allocated)
	m.allocated++
	m.lock.Unlock(st)
	return h, nil
}

// SetCallback installs or replaces the expiry callback of h. The change is
// observable at the next expiry.
func (m *Mux) SetCallback(h Handle, cb Callback) {
	st := m.lock.Lock()
	m.slots[h].cb = cb
	m.lock.Unlock(st)
}

// Schedule arms h for the given absolute deadline, replacing any deadline
// already stored. A deadline at or before the current counter fires the
// callback synchronously before Schedule returns. A failure to program the
// comparator is an invariant violation and panics.
func (m *Mux) Schedule(h Handle, deadline uint64) {
	st := m.lock.Lock()
	now := m.hw.Counter()
	if deadline <= now {
		// already due: fire synchronously, dropping any target still
		// armed from an earlier Schedule
		m.hw.Disarm(int(h))
		m.slots[h].deadline = disarmed
		cb := m.slots[h].cb
		m.lock.Unlock(st)
		if cb != nil {
			cb()
		}
		return
	}
	m.slots[h].deadline = deadline
	// the comparator matches the low word of the counter, so programming
	// the low word of the deadline is the 32-bit truncation of the delta
	if err := m.hw.Arm(int(h), uint32(deadline)); err != nil {
		m.lock.Unlock(st)
		panic(fmt.Sprintf("alarm: comparator %d rejected target: %v", h, err))
	}
	m.lock.Unlock(st)
}

// Deadline returns the stored deadline of h and whether it is armed.
func (m *Mux) Deadline(h Handle) (uint64, bool) {
	st := m.lock.Lock()
	d := m.slots[h].deadline
	m.lock.Unlock(st)
	return d, d != disarmed
}

// irq is the comparator interrupt handler. It runs with the pending flag
// latched and decides between a real expiry and a truncation-induced
// early fire.
func (m *Mux) irq(i int) {
	st := m.lock.Lock()
	d := m.slots[i].deadline
	if d == disarmed {
		// disarmed race: Schedule fired synchronously after the
		// comparator had already latched
		m.hw.ClearPending(i)
		m.lock.Unlock(st)
		return
	}
	now := m.hw.Counter()
	if d > now {
		// early fire from the truncated register: re-program for the
		// remaining distance and keep the logical deadline
		if err := m.hw.Arm(i, uint32(d)); err != nil {
			m.lock.Unlock(st)
			panic(fmt.Sprintf("alarm: comparator %d rejected target: %v", i, err))
		}
		m.hw.ClearPending(i)
		m.lock.Unlock(st)
		return
	}
	m.slots[i].deadline = disarmed
	cb := m.slots[i].cb
	m.hw.ClearPending(i)
	// disarm before the callback so it may re-arm
	m.lock.Unlock(st)
	if cb != nil {
		cb()
	}
}
