package sim

import (
	"sync"

	"github.com/pferreir/rpico-euro-seq/internal/hal"
)

type simAlarm struct {
	isr     func()
	target  uint32
	armed   bool
	pending bool
}

// Timer implements hal.TimerUnit. The 64-bit counter advances only when
// Advance is called. Comparator semantics follow the RP2040 TIMER block:
// an armed alarm fires when the low 32 bits of the counter reach the
// target value, disarms itself and latches its pending flag. A target
// equal to the current low word fires only after a full 2^32-tick wrap.
type Timer struct {
	mu       sync.Mutex
	counter  uint64
	alarms   [hal.NumAlarms]simAlarm
	armFault error
}

// NewTimer returns a Timer with the counter at zero and all alarms
// disarmed.
func NewTimer() *Timer {
	return &Timer{}
}

// Counter reads the full 64-bit counter.
func (t *Timer) Counter() uint64 {
	t.mu.Lock()
	c := t.counter
	t.mu.Unlock()
	return c
}

// Arm programs and arms the given alarm. If a fault was injected with
// SetArmFault, that error is returned instead, modelling a peripheral
// rejecting the write.
func (t *Timer) Arm(alarm int, target uint32) error {
	t.mu.Lock()
	if t.armFault != nil {
		err := t.armFault
		t.mu.Unlock()
		return err
	}
	t.alarms[alarm].target = target
	t.alarms[alarm].armed = true
	t.mu.Unlock()
	return nil
}

// Disarm disarms the given alarm.
func (t *Timer) Disarm(alarm int) {
	t.mu.Lock()
	t.alarms[alarm].armed = false
	t.mu.Unlock()
}

// ClearPending clears the alarm's latched pending flag.
func (t *Timer) ClearPending(alarm int) {
	t.mu.Lock()
	t.alarms[alarm].pending = false
	t.mu.Unlock()
}

// Pending reports the alarm's latched pending flag.
func (t *Timer) Pending(alarm int) bool {
	t.mu.Lock()
	p := t.alarms[alarm].pending
	t.mu.Unlock()
	return p
}

// SetISR installs the interrupt handler for the given alarm.
func (t *Timer) SetISR(alarm int, isr func()) {
	t.mu.Lock()
	t.alarms[alarm].isr = isr
	t.mu.Unlock()
}

// SetArmFault makes every subsequent Arm call fail with err. Passing nil
// clears the fault.
func (t *Timer) SetArmFault(err error) {
	t.mu.Lock()
	t.armFault = err
	t.mu.Unlock()
}

// Advance moves the counter forward by the given number of ticks,
// delivering alarm interrupts in due order along the way. Handlers run
// synchronously on the calling goroutine, outside the timer's internal
// lock, so they may re-arm their alarm; a re-armed target is honoured
// within the same Advance if it still falls inside the window.
func (t *Timer) Advance(ticks uint64) {
	remaining := ticks
	for {
		t.mu.Lock()
		low := uint32(t.counter)
		fireIn := uint64(0)
		for i := range t.alarms {
			a := &t.alarms[i]
			if !a.armed {
				continue
			}
			// distance to the next low-word match, full wrap when equal
			diff := uint64(a.target - low)
			if diff == 0 {
				diff = 1 << 32
			}
			if fireIn == 0 || diff < fireIn {
				fireIn = diff
			}
		}
		if fireIn == 0 || fireIn > remaining {
			t.counter += remaining
			t.mu.Unlock()
			return
		}
		t.counter += fireIn
		remaining -= fireIn

		// every comparator matching the new low word fires on this tick;
		// snapshot the set first so an ISR re-arming the same target waits
		// a full wrap like the hardware would
		low = uint32(t.counter)
		var due [hal.NumAlarms]func()
		n := 0
		for i := range t.alarms {
			a := &t.alarms[i]
			if a.armed && a.target == low {
				a.armed = false
				a.pending = true
				due[n] = a.isr
				n++
			}
		}
		t.mu.Unlock()
		for i := 0; i < n; i++ {
			if due[i] != nil {
				due[i]()
			}
		}
		if remaining == 0 {
			return
		}
	}
}

var _ hal.TimerUnit = (*Timer)(nil)
