package input

import (
	"sync/atomic"

	"github.com/pferreir/rpico-euro-seq/internal/channel"
	"github.com/pferreir/rpico-euro-seq/internal/debounce"
	"github.com/pferreir/rpico-euro-seq/internal/event"
	"github.com/pferreir/rpico-euro-seq/internal/hal"
)

// Switches drives the panel's push buttons. Buttons are wired active low
// with pull-ups: a low level after the debounce window is a press.
type Switches struct {
	source uint8
	pins   []uint8

	gpio hal.GPIOBank
	disp *debounce.Dispatcher
	out  *channel.Chan[event.Switch]

	callbacks []func()
	dropped   atomic.Uint64
}

// NewSwitches wires len(pins) buttons on the given source; the switch ID
// reported in events is the index into pins.
func NewSwitches(source uint8, pins []uint8, gpio hal.GPIOBank, disp *debounce.Dispatcher, out *channel.Chan[event.Switch]) *Switches {
	s := &Switches{
		source: source,
		pins:   pins,
		gpio:   gpio,
		disp:   disp,
		out:    out,
	}
	s.callbacks = make([]func(), len(pins))
	for i := range pins {
		id, pin := uint8(i), pins[i]
		s.callbacks[i] = func() { s.onSettle(id, pin) }
	}
	return s
}

// Attach registers every button pin with the router and enables its edge
// interrupt. Startup only.
func (s *Switches) Attach(r *Router) {
	for i, pin := range s.pins {
		cb := s.callbacks[i]
		r.Handle(s.source, pin, func(source, pin uint8) {
			s.disp.HandleEdge(source, pin, cb)
		})
		s.gpio.EnableEdge(s.source, pin, true)
	}
}

// onSettle runs in the dispatcher's critical section.
func (s *Switches) onSettle(id, pin uint8) {
	pressed := !s.gpio.Level(s.source, pin)
	if err := s.out.TrySend(event.Switch{ID: id, Pressed: pressed}); err != nil {
		s.dropped.Add(1)
	}
}

// Dropped returns the number of presses discarded on a full event channel.
func (s *Switches) Dropped() uint64 {
	return s.dropped.Load()
}
