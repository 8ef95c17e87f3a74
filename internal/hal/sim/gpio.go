package sim

import (
	"sync"

	"github.com/pferreir/rpico-euro-seq/pkg/bits"
)

// gpioSource models one interrupt source's registers: a pin is one bit in
// each of the enable, pending and level words.
type gpioSource struct {
	enabled uint32
	pending uint32
	level   uint32
}

// GPIO implements hal.GPIOBank over a fixed matrix of simulated pins.
// RaiseEdge stands in for a physical edge: it always latches the pending
// bit, and delivers the bank ISR only while the source's edge interrupt
// is enabled. Handlers run synchronously on the raising goroutine.
type GPIO struct {
	mu      sync.Mutex
	sources [NumSources]gpioSource
	isr     func(source, pin uint8)

	// EdgesSeen counts every RaiseEdge, delivered or masked. Tests use
	// it to assert that masked windows still observed physical bounces.
	EdgesSeen uint64
}

// NewGPIO returns a GPIO matrix with all edge interrupts disabled and all
// levels low.
func NewGPIO() *GPIO {
	return &GPIO{}
}

// EnableEdge enables or disables edge interrupts for (source, pin).
func (g *GPIO) EnableEdge(source, pin uint8, enabled bool) {
	g.mu.Lock()
	if enabled {
		g.sources[source].enabled = bits.Set(g.sources[source].enabled, pin)
	} else {
		g.sources[source].enabled = bits.Reset(g.sources[source].enabled, pin)
	}
	g.mu.Unlock()
}

// EdgeEnabled reports whether edge interrupts are enabled for (source, pin).
func (g *GPIO) EdgeEnabled(source, pin uint8) bool {
	g.mu.Lock()
	e := bits.Test(g.sources[source].enabled, pin)
	g.mu.Unlock()
	return e
}

// Pending reports the latched edge flag for (source, pin).
func (g *GPIO) Pending(source, pin uint8) bool {
	g.mu.Lock()
	p := bits.Test(g.sources[source].pending, pin)
	g.mu.Unlock()
	return p
}

// ClearPending clears the latched edge flag for (source, pin).
func (g *GPIO) ClearPending(source, pin uint8) {
	g.mu.Lock()
	g.sources[source].pending = bits.Reset(g.sources[source].pending, pin)
	g.mu.Unlock()
}

// Level samples the input level of (source, pin).
func (g *GPIO) Level(source, pin uint8) bool {
	g.mu.Lock()
	l := bits.Test(g.sources[source].level, pin)
	g.mu.Unlock()
	return l
}

// SetLevel drives the simulated input level of (source, pin). It does not
// deliver an edge by itself; pair it with RaiseEdge.
func (g *GPIO) SetLevel(source, pin uint8, level bool) {
	g.mu.Lock()
	if level {
		g.sources[source].level = bits.Set(g.sources[source].level, pin)
	} else {
		g.sources[source].level = bits.Reset(g.sources[source].level, pin)
	}
	g.mu.Unlock()
}

// SetISR installs the bank interrupt handler.
func (g *GPIO) SetISR(isr func(source, pin uint8)) {
	g.mu.Lock()
	g.isr = isr
	g.mu.Unlock()
}

// RaiseEdge simulates a physical edge on (source, pin). The pending flag
// latches unconditionally; the ISR is invoked only if the source is
// enabled and a handler is installed.
func (g *GPIO) RaiseEdge(source, pin uint8) {
	g.mu.Lock()
	g.EdgesSeen++
	g.sources[source].pending = bits.Set(g.sources[source].pending, pin)
	deliver := bits.Test(g.sources[source].enabled, pin)
	isr := g.isr
	g.mu.Unlock()
	if deliver && isr != nil {
		isr(source, pin)
	}
}
