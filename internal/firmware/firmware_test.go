package firmware

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"gitlab.com/gomidi/midi/v2"

	"github.com/pferreir/rpico-euro-seq/internal/channel"
	"github.com/pferreir/rpico-euro-seq/internal/config"
	"github.com/pferreir/rpico-euro-seq/internal/hal/sim"
	"github.com/pferreir/rpico-euro-seq/internal/worker"
)

func newSystem(t *testing.T) (*System, *sim.Board, config.Config) {
	t.Helper()
	b := sim.NewBoard()
	cfg := config.Default()
	sys, err := New(FromBoard(b), cfg)
	if err != nil {
		t.Fatal(err)
	}
	// buttons idle high (active low with pull-ups)
	for _, pin := range cfg.Switches.Pins {
		b.GPIO.SetLevel(cfg.Switches.Source, pin, true)
	}
	return sys, b, cfg
}

func settle(sys *System, cfg config.Config) {
	sys.Step(cfg.QuiescenceUs + 10)
}

func TestConstruction(t *testing.T) {
	sys, _, cfg := newSystem(t)

	if len(sys.Encoders) != len(cfg.Encoders) {
		t.Errorf("built %d encoders, want %d", len(sys.Encoders), len(cfg.Encoders))
	}
	if sys.Now() != 0 {
		t.Errorf("Now() = %d at boot", sys.Now())
	}
	sys.Step(500)
	if sys.Now() != 500 {
		t.Errorf("Now() = %d after 500 ticks", sys.Now())
	}
	if sys.Config().QuiescenceUs != cfg.QuiescenceUs {
		t.Error("Config() does not round-trip")
	}
}

func TestEncoderTurn(t *testing.T) {
	sys, b, cfg := newSystem(t)
	enc := cfg.Encoders[0]

	// clockwise detent: phases differ when A's edge settles
	b.GPIO.SetLevel(enc.Source, enc.PinA, true)
	b.GPIO.SetLevel(enc.Source, enc.PinB, false)
	b.GPIO.RaiseEdge(enc.Source, enc.PinA)
	settle(sys, cfg)

	ev, err := sys.EncoderEvents.TryRecv()
	if err != nil {
		t.Fatal(err)
	}
	if ev.ID != 0 || ev.Delta != 1 {
		t.Errorf("event = %+v, want id 0 delta +1", ev)
	}

	// counter-clockwise: phases equal
	b.GPIO.SetLevel(enc.Source, enc.PinB, true)
	b.GPIO.RaiseEdge(enc.Source, enc.PinA)
	settle(sys, cfg)

	ev, err = sys.EncoderEvents.TryRecv()
	if err != nil {
		t.Fatal(err)
	}
	if ev.Delta != -1 {
		t.Errorf("event = %+v, want delta -1", ev)
	}
}

func TestSwitchPressAndRelease(t *testing.T) {
	sys, b, cfg := newSystem(t)
	pin := cfg.Switches.Pins[2]

	b.GPIO.SetLevel(cfg.Switches.Source, pin, false)
	b.GPIO.RaiseEdge(cfg.Switches.Source, pin)
	settle(sys, cfg)

	ev, err := sys.SwitchEvents.TryRecv()
	if err != nil {
		t.Fatal(err)
	}
	if ev.ID != 2 || !ev.Pressed {
		t.Errorf("event = %+v, want id 2 pressed", ev)
	}

	b.GPIO.SetLevel(cfg.Switches.Source, pin, true)
	b.GPIO.RaiseEdge(cfg.Switches.Source, pin)
	settle(sys, cfg)

	ev, err = sys.SwitchEvents.TryRecv()
	if err != nil {
		t.Fatal(err)
	}
	if ev.ID != 2 || ev.Pressed {
		t.Errorf("event = %+v, want id 2 released", ev)
	}
}

func TestSwitchBouncesCoalesce(t *testing.T) {
	sys, b, cfg := newSystem(t)
	pin := cfg.Switches.Pins[0]

	b.GPIO.SetLevel(cfg.Switches.Source, pin, false)
	for i := 0; i < 6; i++ {
		b.GPIO.RaiseEdge(cfg.Switches.Source, pin)
		sys.Step(200)
	}
	settle(sys, cfg)

	if _, err := sys.SwitchEvents.TryRecv(); err != nil {
		t.Fatal(err)
	}
	if _, err := sys.SwitchEvents.TryRecv(); err != channel.ErrEmpty {
		t.Errorf("second recv = %v, want ErrEmpty (bounces must coalesce)", err)
	}
	if b.GPIO.EdgesSeen != 6 {
		t.Errorf("EdgesSeen = %d, want 6", b.GPIO.EdgesSeen)
	}
}

func TestMIDIDecode(t *testing.T) {
	sys, _, _ := newSystem(t)

	for _, bt := range midi.NoteOn(3, 64, 90) {
		if err := sys.MIDI.Raw().TrySend(bt); err != nil {
			t.Fatal(err)
		}
	}
	sys.Step(1)

	ev, err := sys.MIDIEvents.TryRecv()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ev.Message, midi.NoteOn(3, 64, 90)) {
		t.Errorf("decoded % X", ev.Message)
	}
}

func TestWorkerRoundTrip(t *testing.T) {
	sys, _, _ := newSystem(t)

	ran := false
	err := sys.Worker.TrySubmit(worker.Job{ID: 42, Run: func() error {
		ran = true
		return nil
	}})
	if err != nil {
		t.Fatal(err)
	}
	sys.Step(1)

	if !ran {
		t.Error("job never ran on core 1")
	}
	res, err := sys.Worker.Results().TryRecv()
	if err != nil {
		t.Fatal(err)
	}
	if res.ID != 42 || res.Err != nil {
		t.Errorf("result = %+v", res)
	}
}

func TestStepRequiresSimulatedTimer(t *testing.T) {
	b := sim.NewBoard()
	hw := FromBoard(b)
	hw.Advance = nil
	sys, err := New(hw, config.Default())
	if err != nil {
		t.Fatal(err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("Step without a simulated timer must panic")
		}
	}()
	sys.Step(1)
}

func TestWithLogger(t *testing.T) {
	var rec recordingLogger
	b := sim.NewBoard()
	if _, err := New(FromBoard(b), config.Default(), WithLogger(&rec)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rec.buf.String(), "firmware up") {
		t.Errorf("boot line not logged, got %q", rec.buf.String())
	}
}

type recordingLogger struct{ buf bytes.Buffer }

func (l *recordingLogger) Infof(format string, a ...interface{}) {
	fmt.Fprintf(&l.buf, format+"\n", a...)
}
func (l *recordingLogger) Errorf(format string, a ...interface{}) {
	fmt.Fprintf(&l.buf, format+"\n", a...)
}
func (l *recordingLogger) Debugf(format string, a ...interface{}) {
	fmt.Fprintf(&l.buf, format+"\n", a...)
}

func TestEventDemultiplexing(t *testing.T) {
	// encoder, switch and midi traffic land on separate channels and do
	// not interleave.
	sys, b, cfg := newSystem(t)
	enc := cfg.Encoders[0]

	b.GPIO.SetLevel(enc.Source, enc.PinA, true)
	b.GPIO.RaiseEdge(enc.Source, enc.PinA)
	pin := cfg.Switches.Pins[1]
	b.GPIO.SetLevel(cfg.Switches.Source, pin, false)
	b.GPIO.RaiseEdge(cfg.Switches.Source, pin)
	for _, bt := range midi.NoteOff(0, 60) {
		if err := sys.MIDI.Raw().TrySend(bt); err != nil {
			t.Fatal(err)
		}
	}
	settle(sys, cfg)
	settle(sys, cfg) // the two debounce windows are serviced in turn

	if _, err := sys.EncoderEvents.TryRecv(); err != nil {
		t.Errorf("encoder event missing: %v", err)
	}
	if _, err := sys.SwitchEvents.TryRecv(); err != nil {
		t.Errorf("switch event missing: %v", err)
	}
	if _, err := sys.MIDIEvents.TryRecv(); err != nil {
		t.Errorf("midi event missing: %v", err)
	}
}
