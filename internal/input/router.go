// Package input implements the module's input drivers: the rotary
// encoders and panel switches (through the debounce dispatcher) and the
// DIN MIDI decoder. All of them are plain consumers of the core
// primitives: edges and bytes arrive in interrupt context, events leave
// on bounded channels.
package input

import (
	"github.com/pferreir/rpico-euro-seq/internal/hal"
)

// Router fans the single GPIO bank interrupt out to per-pin handlers.
// Handlers are registered during system initialization, before interrupts
// are enabled, so dispatch itself needs no locking.
type Router struct {
	handlers map[uint16]func(source, pin uint8)
}

// NewRouter installs itself as the bank ISR.
func NewRouter(gpio hal.GPIOBank) *Router {
	r := &Router{handlers: make(map[uint16]func(source, pin uint8))}
	gpio.SetISR(r.dispatch)
	return r
}

// Handle registers the handler for edges on (source, pin). Startup only.
func (r *Router) Handle(source, pin uint8, fn func(source, pin uint8)) {
	r.handlers[key(source, pin)] = fn
}

func (r *Router) dispatch(source, pin uint8) {
	if fn := r.handlers[key(source, pin)]; fn != nil {
		fn(source, pin)
	}
}

func key(source, pin uint8) uint16 {
	return uint16(source)<<8 | uint16(pin)
}
