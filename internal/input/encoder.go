package input

import (
	"sync/atomic"

	"github.com/pferreir/rpico-euro-seq/internal/channel"
	"github.com/pferreir/rpico-euro-seq/internal/debounce"
	"github.com/pferreir/rpico-euro-seq/internal/event"
	"github.com/pferreir/rpico-euro-seq/internal/hal"
)

// Encoder decodes a detented quadrature encoder. Edges on the A pin go
// through the debounce dispatcher; once quiet, the callback samples both
// phases and derives the direction: A and B differing at the detent edge
// means clockwise.
type Encoder struct {
	ID uint8

	source     uint8
	pinA, pinB uint8

	gpio hal.GPIOBank
	disp *debounce.Dispatcher
	out  *channel.Chan[event.Encoder]

	step    func()
	dropped atomic.Uint64
}

// NewEncoder wires an encoder on (source, pinA, pinB) publishing steps to
// out.
func NewEncoder(id uint8, source, pinA, pinB uint8, gpio hal.GPIOBank, disp *debounce.Dispatcher, out *channel.Chan[event.Encoder]) *Encoder {
	e := &Encoder{
		ID:     id,
		source: source,
		pinA:   pinA,
		pinB:   pinB,
		gpio:   gpio,
		disp:   disp,
		out:    out,
	}
	e.step = e.onStep
	return e
}

// Attach registers the encoder's A pin with the router and enables its
// edge interrupt. Startup only.
func (e *Encoder) Attach(r *Router) {
	r.Handle(e.source, e.pinA, e.onEdge)
	e.gpio.EnableEdge(e.source, e.pinA, true)
}

// onEdge runs in the GPIO ISR.
func (e *Encoder) onEdge(source, pin uint8) {
	e.disp.HandleEdge(source, pin, e.step)
}

// onStep runs in the dispatcher's critical section after the quiescence
// window.
func (e *Encoder) onStep() {
	a := e.gpio.Level(e.source, e.pinA)
	b := e.gpio.Level(e.source, e.pinB)
	delta := int8(1)
	if a == b {
		delta = -1
	}
	if err := e.out.TrySend(event.Encoder{ID: e.ID, Delta: delta}); err != nil {
		// UI events are droppable; the consumer reads absolute state
		e.dropped.Add(1)
	}
}

// Dropped returns the number of steps discarded on a full event channel.
func (e *Encoder) Dropped() uint64 {
	return e.dropped.Load()
}
