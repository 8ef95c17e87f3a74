package input

import (
	"sync/atomic"

	"gitlab.com/gomidi/midi/v2"

	"github.com/pferreir/rpico-euro-seq/internal/channel"
	"github.com/pferreir/rpico-euro-seq/internal/event"
	"github.com/pferreir/rpico-euro-seq/internal/task"
)

// MIDIIn decodes the DIN input's raw byte stream into midi.Message values.
// The UART ISR feeds bytes into the raw channel; the decoder runs as a
// cooperative task and publishes complete channel-voice messages, with
// running status honoured. System exclusive and system common traffic is
// skipped; single-byte realtime messages pass through immediately, even
// mid-message.
type MIDIIn struct {
	raw *channel.Chan[byte]
	out *channel.Chan[event.MIDI]

	status byte
	data   [2]byte
	have   uint8
	need   uint8

	dropped atomic.Uint64
}

// NewMIDIIn returns a decoder reading from raw and publishing to out.
func NewMIDIIn(raw *channel.Chan[byte], out *channel.Chan[event.MIDI]) *MIDIIn {
	return &MIDIIn{raw: raw, out: out}
}

// Raw returns the byte channel the UART ISR writes into.
func (m *MIDIIn) Raw() *channel.Chan[byte] {
	return m.raw
}

// Dropped returns the number of decoded messages discarded on a full
// event channel.
func (m *MIDIIn) Dropped() uint64 {
	return m.dropped.Load()
}

// Task returns the decoder's cooperative task. Spawn it exactly once.
func (m *MIDIIn) Task() task.Task {
	return task.Func(m.poll)
}

func (m *MIDIIn) poll(w task.Waker) task.Poll {
	for {
		b, ok := m.raw.Recv(w)
		if !ok {
			return task.Pending
		}
		if msg, complete := m.feed(b); complete {
			m.publish(msg)
		}
	}
}

func (m *MIDIIn) publish(msg midi.Message) {
	if err := m.out.TrySend(event.MIDI{Message: msg}); err != nil {
		m.dropped.Add(1)
	}
}

// dataLen returns the data-byte count of a channel-voice status.
func dataLen(status byte) uint8 {
	switch status & 0xF0 {
	case 0xC0, 0xD0: // program change, channel pressure
		return 1
	default: // note on/off, poly pressure, control change, pitch bend
		return 2
	}
}

// feed consumes one wire byte and returns a complete message when one
// forms.
func (m *MIDIIn) feed(b byte) (midi.Message, bool) {
	switch {
	case b >= 0xF8:
		// realtime bytes are transparent to the running message
		return midi.Message{b}, true
	case b >= 0xF0:
		// system common / sysex: cancel running status and skip
		m.status = 0
		m.have = 0
		return nil, false
	case b >= 0x80:
		m.status = b
		m.need = dataLen(b)
		m.have = 0
		return nil, false
	default:
		if m.status == 0 {
			// stray data byte with no status to attach to
			return nil, false
		}
		m.data[m.have] = b
		m.have++
		if m.have < m.need {
			return nil, false
		}
		m.have = 0 // running status: keep m.status armed
		if m.need == 1 {
			return midi.Message{m.status, m.data[0]}, true
		}
		return midi.Message{m.status, m.data[0], m.data[1]}, true
	}
}
