// Package channel implements the bounded FIFO used for every piece of
// cross-context communication in the firmware: ISR to task, task to task,
// and core to core. A Chan allocates its ring once at construction and
// never again; every operation is a few O(1) steps under the shared
// spinlock, keeping interrupt latency bounded on both cores.
//
// Suspension follows the poll model of internal/task: the blocking forms
// Send and Recv report failure after registering the caller's Waker, and
// the caller returns Pending to its scheduler. Earlier revisions of this
// design kept a single wake slot per side, which could starve all but the
// most recently blocked waiter; a Chan instead keeps a small FIFO list of
// waiters per side and wakes all of them on every state transition. A
// spurious wake costs one no-op re-poll, and a waiter that stops polling
// can never strand capacity.
package channel

import (
	"errors"

	"github.com/pferreir/rpico-euro-seq/internal/hal"
	"github.com/pferreir/rpico-euro-seq/internal/task"
)

var (
	// ErrFull is returned by TrySend when the ring is at capacity. The
	// value stays with the caller.
	ErrFull = errors.New("channel: full")
	// ErrEmpty is returned by TryRecv when the ring holds no values.
	ErrEmpty = errors.New("channel: empty")
)

// waiters is a fixed-capacity FIFO of wake registrations. Registration is
// idempotent per Waker so a task re-polling the same operation does not
// grow the list.
type waiters struct {
	w [task.MaxTasks]task.Waker
	n uint8
}

func (l *waiters) add(w task.Waker) {
	for i := uint8(0); i < l.n; i++ {
		if l.w[i] == w {
			return
		}
	}
	if int(l.n) == len(l.w) {
		// more blocked tasks than the system can hold: a sizing bug,
		// not a runtime condition
		panic("channel: waiter list overflow")
	}
	l.w[l.n] = w
	l.n++
}

// take empties the list and returns its previous contents.
func (l *waiters) take() ([task.MaxTasks]task.Waker, uint8) {
	w, n := l.w, l.n
	l.n = 0
	return w, n
}

// Chan is a bounded FIFO of T with a capacity fixed at construction.
type Chan[T any] struct {
	lock hal.Spinlock

	buf         []T
	read, write int
	full        bool

	sendq waiters
	recvq waiters
}

// New returns a Chan of the given capacity, guarded by the given spinlock.
// The ring is the only allocation the channel ever performs.
func New[T any](lock hal.Spinlock, capacity int) *Chan[T] {
	if capacity <= 0 {
		panic("channel: capacity must be positive")
	}
	return &Chan[T]{lock: lock, buf: make([]T, capacity)}
}

// Cap returns the channel's capacity.
func (c *Chan[T]) Cap() int {
	return len(c.buf)
}

// Len returns the number of buffered values.
func (c *Chan[T]) Len() int {
	st := c.lock.Lock()
	n := c.len()
	c.lock.Unlock(st)
	return n
}

func (c *Chan[T]) len() int {
	if c.full {
		return len(c.buf)
	}
	return (c.write - c.read + len(c.buf)) % len(c.buf)
}

// TrySend enqueues v without suspending. On ErrFull no state changes and
// the value remains the caller's. Safe from ISR context and either core.
func (c *Chan[T]) TrySend(v T) error {
	st := c.lock.Lock()
	if c.full {
		c.lock.Unlock(st)
		return ErrFull
	}
	c.buf[c.write] = v
	c.write = (c.write + 1) % len(c.buf)
	c.full = c.write == c.read
	wake, n := c.recvq.take()
	c.lock.Unlock(st)
	for i := uint8(0); i < n; i++ {
		wake[i].Wake()
	}
	return nil
}

// Send enqueues v, or registers w and reports false, meaning the caller
// must return Pending and retry on its next poll.
func (c *Chan[T]) Send(v T, w task.Waker) bool {
	st := c.lock.Lock()
	if c.full {
		c.sendq.add(w)
		c.lock.Unlock(st)
		return false
	}
	c.buf[c.write] = v
	c.write = (c.write + 1) % len(c.buf)
	c.full = c.write == c.read
	wake, n := c.recvq.take()
	c.lock.Unlock(st)
	for i := uint8(0); i < n; i++ {
		wake[i].Wake()
	}
	return true
}

// TryRecv dequeues the oldest value without suspending.
func (c *Chan[T]) TryRecv() (T, error) {
	var zero T
	st := c.lock.Lock()
	if !c.full && c.read == c.write {
		c.lock.Unlock(st)
		return zero, ErrEmpty
	}
	v := c.buf[c.read]
	c.buf[c.read] = zero
	c.read = (c.read + 1) % len(c.buf)
	c.full = false
	wake, n := c.sendq.take()
	c.lock.Unlock(st)
	for i := uint8(0); i < n; i++ {
		wake[i].Wake()
	}
	return v, nil
}

// Recv dequeues the oldest value, or registers w and reports !ok, meaning
// the caller must return Pending and retry on its next poll.
func (c *Chan[T]) Recv(w task.Waker) (T, bool) {
	var zero T
	st := c.lock.Lock()
	if !c.full && c.read == c.write {
		c.recvq.add(w)
		c.lock.Unlock(st)
		return zero, false
	}
	v := c.buf[c.read]
	c.buf[c.read] = zero
	c.read = (c.read + 1) % len(c.buf)
	c.full = false
	wake, n := c.sendq.take()
	c.lock.Unlock(st)
	for i := uint8(0); i < n; i++ {
		wake[i].Wake()
	}
	return v, true
}
