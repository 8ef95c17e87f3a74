// Package hal declares the hardware capabilities consumed by the firmware
// core: the free-running timer block with its comparator alarms, the GPIO
// banks with edge interrupts, and the SIO-style spinlock used for every
// critical section. The real module backs these with RP2040 registers; the
// host simulator backs them with internal/hal/sim.
package hal

// Core identifies one of the two physical cores.
type Core uint8

const (
	Core0 Core = iota
	Core1
	// NumCores is the number of physical cores on the target.
	NumCores = 2
)

// NumAlarms is the number of comparator alarms in the timer block. The
// RP2040 TIMER peripheral provides exactly four; the alarm multiplexer
// hands out one logical handle per comparator and no more.
const NumAlarms = 4

// IRQState is the opaque interrupt-state token returned by Spinlock.Lock
// and consumed by Spinlock.Unlock. On hardware it holds the PRIMASK value
// saved before interrupts were disabled.
type IRQState uint32

// Spinlock is the critical-section primitive shared by every piece of
// state that is touched from interrupt context, task context, or the
// other core. Lock disables local interrupts and acquires the hardware
// spinlock; Unlock releases the spinlock and restores the saved interrupt
// state. Sections held under the lock must stay O(1) short, as interrupt
// latency on both cores is bounded by the longest holder.
type Spinlock interface {
	Lock() IRQState
	Unlock(IRQState)
}

// TimerUnit is the 64-bit free-running microsecond counter plus its
// comparator alarms.
//
// A comparator fires when the low 32 bits of the counter equal the armed
// target value, then disarms itself and latches its pending flag. The
// register is 32 bits wide while the counter is 64: targets further than
// 2^32 ticks away alias to an earlier fire, which the alarm multiplexer
// compensates for by rescheduling at fire time.
type TimerUnit interface {
	// Counter reads the full 64-bit counter. Reads are strictly
	// non-decreasing.
	Counter() uint64

	// Arm programs the comparator target for the given alarm and arms it.
	// Arming an already armed alarm replaces its target.
	Arm(alarm int, target uint32) error

	// Disarm disarms the given alarm. A disarmed alarm never fires.
	Disarm(alarm int)

	// ClearPending clears the alarm's latched interrupt-pending flag.
	ClearPending(alarm int)

	// SetISR installs the interrupt handler invoked when the alarm fires.
	// Must be called once per alarm before the first Arm.
	SetISR(alarm int, isr func())
}

// GPIOBank is one bank of edge-sensitive pins. The debounce dispatcher
// masks and unmasks sources through it; input drivers sample levels
// through it.
type GPIOBank interface {
	// EnableEdge enables or disables edge interrupts for (source, pin).
	// While disabled, edges still latch the pending flag but do not
	// invoke the ISR.
	EnableEdge(source, pin uint8, enabled bool)

	// Pending reports whether an edge has latched for (source, pin).
	Pending(source, pin uint8) bool

	// ClearPending clears the latched edge flag for (source, pin).
	ClearPending(source, pin uint8)

	// Level samples the current input level of (source, pin).
	Level(source, pin uint8) bool

	// SetISR installs the bank interrupt handler, invoked once per
	// delivered edge with the originating (source, pin).
	SetISR(isr func(source, pin uint8))
}

// Idler lets a core's scheduler sleep when its runqueue is empty and be
// woken by a Waker from interrupt context or from the other core. On
// hardware this is WFE/SEV; the simulator uses a condition variable.
type Idler interface {
	// Park blocks the calling core until the next Unpark. Park may also
	// return spuriously; callers re-check their runqueue in a loop.
	Park()

	// Unpark releases the core if it is parked. Safe from ISR context
	// and from the other core; a no-op when the core is running.
	Unpark()
}
