// Package sim provides the host implementation of the hal capabilities.
// Time only moves when Advance is called, and interrupt handlers run
// synchronously on the advancing goroutine, so tests can reproduce any
// interleaving exactly.
package sim

import (
	"sync"

	"github.com/pferreir/rpico-euro-seq/internal/hal"
)

// NumSources and NumPins bound the simulated GPIO matrix.
const (
	NumSources = 4
	NumPins    = 32
)

// NumSpinlocks mirrors the 32 hardware spinlocks of the RP2040 SIO block.
const NumSpinlocks = 32

// Board bundles the simulated peripherals the firmware is constructed on.
type Board struct {
	Timer *Timer
	GPIO  *GPIO

	mu     sync.Mutex
	locks  uint8
	idlers [hal.NumCores]*Idler
}

// NewBoard returns a Board with a fresh timer, GPIO matrix and one idler
// per core.
func NewBoard() *Board {
	b := &Board{
		Timer: NewTimer(),
		GPIO:  NewGPIO(),
	}
	for i := range b.idlers {
		b.idlers[i] = NewIdler()
	}
	return b
}

// NewLock claims one of the hardware spinlocks. Each subsystem guards its
// own state with its own lock; nesting only ever goes one direction
// (channel or alarm lock, then scheduler lock via a wake), so claiming
// distinct locks keeps the system deadlock-free. Claiming is permanent,
// and exhausting the 32 hardware locks panics the way a double-claim
// faults on hardware.
func (b *Board) NewLock() hal.Spinlock {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.locks == NumSpinlocks {
		panic("sim: out of hardware spinlocks")
	}
	b.locks++
	return &Spinlock{}
}

// Idler returns the idler for the given core.
func (b *Board) Idler(core hal.Core) hal.Idler {
	return b.idlers[core]
}

// Spinlock implements hal.Spinlock with a mutex. It excludes the other
// "core" (goroutine) as well as simulated interrupt delivery, since ISRs
// acquire the same lock before touching shared state.
type Spinlock struct {
	mu sync.Mutex
}

func (l *Spinlock) Lock() hal.IRQState {
	l.mu.Lock()
	return 0
}

func (l *Spinlock) Unlock(hal.IRQState) {
	l.mu.Unlock()
}

// Idler implements hal.Idler with a condition variable.
type Idler struct {
	mu   sync.Mutex
	cond *sync.Cond
	wake bool
}

func NewIdler() *Idler {
	i := &Idler{}
	i.cond = sync.NewCond(&i.mu)
	return i
}

func (i *Idler) Park() {
	i.mu.Lock()
	for !i.wake {
		i.cond.Wait()
	}
	i.wake = false
	i.mu.Unlock()
}

func (i *Idler) Unpark() {
	i.mu.Lock()
	i.wake = true
	i.cond.Signal()
	i.mu.Unlock()
}

var (
	_ hal.Spinlock = (*Spinlock)(nil)
	_ hal.GPIOBank = (*GPIO)(nil)
	_ hal.Idler    = (*Idler)(nil)
)
