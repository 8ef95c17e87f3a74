// Package event defines the values carried on the firmware's channels
// between input drivers and the UI/sequencer loop.
package event

import "gitlab.com/gomidi/midi/v2"

// Encoder is one detent step of a rotary encoder.
type Encoder struct {
	ID    uint8
	Delta int8
}

// Switch is a debounced press or release of a panel switch.
type Switch struct {
	ID      uint8
	Pressed bool
}

// MIDI is one decoded MIDI message from the DIN input.
type MIDI struct {
	Message midi.Message
}
