// Package firmware assembles the module: the alarm multiplexer, the
// debounce dispatcher, both cores' schedulers, the input drivers and the
// second-core worker, all owned by a single System built once at startup.
// Nothing in the firmware reaches for ambient globals; every consumer
// holds a reference handed out here.
package firmware

import (
	"fmt"

	"github.com/pferreir/rpico-euro-seq/internal/alarm"
	"github.com/pferreir/rpico-euro-seq/internal/channel"
	"github.com/pferreir/rpico-euro-seq/internal/config"
	"github.com/pferreir/rpico-euro-seq/internal/debounce"
	"github.com/pferreir/rpico-euro-seq/internal/event"
	"github.com/pferreir/rpico-euro-seq/internal/hal"
	"github.com/pferreir/rpico-euro-seq/internal/hal/sim"
	"github.com/pferreir/rpico-euro-seq/internal/input"
	"github.com/pferreir/rpico-euro-seq/internal/task"
	"github.com/pferreir/rpico-euro-seq/internal/worker"
	"github.com/pferreir/rpico-euro-seq/pkg/log"
)

// Hardware is the set of capabilities the System is built on. Advance is
// non-nil only for simulated timers and enables Step.
type Hardware struct {
	Timer   hal.TimerUnit
	GPIO    hal.GPIOBank
	NewLock func() hal.Spinlock
	Idlers  [hal.NumCores]hal.Idler
	Advance func(ticks uint64)
}

// FromBoard adapts a simulated board.
func FromBoard(b *sim.Board) Hardware {
	return Hardware{
		Timer:   b.Timer,
		GPIO:    b.GPIO,
		NewLock: b.NewLock,
		Idlers:  [hal.NumCores]hal.Idler{b.Idler(hal.Core0), b.Idler(hal.Core1)},
		Advance: b.Timer.Advance,
	}
}

// System owns every firmware object. Construct it once; components live
// for the process lifetime.
type System struct {
	log.Logger

	Clock      *alarm.Mux
	Dispatcher *debounce.Dispatcher
	Router     *input.Router
	Encoders   []*input.Encoder
	Switches   *input.Switches
	MIDI       *input.MIDIIn
	Worker     *worker.Manager

	EncoderEvents *channel.Chan[event.Encoder]
	SwitchEvents  *channel.Chan[event.Switch]
	MIDIEvents    *channel.Chan[event.MIDI]

	cfg     config.Config
	cores   [hal.NumCores]*task.Scheduler
	advance func(uint64)
}

// Opt is a function that modifies a System during construction.
type Opt func(*System)

// WithLogger installs the given logger.
func WithLogger(l log.Logger) Opt {
	return func(s *System) {
		s.Logger = l
	}
}

// New builds the System on the given hardware. All allocation happens
// here; after New returns, the firmware runs allocation-free.
func New(hw Hardware, cfg config.Config, opts ...Opt) (*System, error) {
	s := &System{
		Logger:  log.NewNullLogger(),
		cfg:     cfg,
		advance: hw.Advance,
	}
	for _, opt := range opts {
		opt(s)
	}

	for c := hal.Core(0); c < hal.NumCores; c++ {
		s.cores[c] = task.New(c, hw.NewLock(), hw.Idlers[c])
	}

	s.Clock = alarm.New(hw.NewLock(), hw.Timer)

	var err error
	s.Dispatcher, err = debounce.New(hw.NewLock(), hw.GPIO, s.Clock, cfg.QuiescenceUs, cfg.DebounceQueue)
	if err != nil {
		return nil, fmt.Errorf("firmware: debounce dispatcher: %w", err)
	}

	s.EncoderEvents = channel.New[event.Encoder](hw.NewLock(), cfg.EventQueue)
	s.SwitchEvents = channel.New[event.Switch](hw.NewLock(), cfg.EventQueue)
	s.MIDIEvents = channel.New[event.MIDI](hw.NewLock(), cfg.MIDIQueue)

	s.Router = input.NewRouter(hw.GPIO)
	for i, enc := range cfg.Encoders {
		e := input.NewEncoder(uint8(i), enc.Source, enc.PinA, enc.PinB, hw.GPIO, s.Dispatcher, s.EncoderEvents)
		e.Attach(s.Router)
		s.Encoders = append(s.Encoders, e)
	}
	s.Switches = input.NewSwitches(cfg.Switches.Source, cfg.Switches.Pins, hw.GPIO, s.Dispatcher, s.SwitchEvents)
	s.Switches.Attach(s.Router)

	raw := channel.New[byte](hw.NewLock(), cfg.MIDIQueue)
	s.MIDI = input.NewMIDIIn(raw, s.MIDIEvents)

	s.Worker = worker.New(hw.NewLock(), cfg.WorkerQueue)

	// core 0 runs the UI-facing tasks, core 1 the background worker
	if _, err := s.cores[hal.Core0].Spawn(s.Dispatcher.Task()); err != nil {
		return nil, fmt.Errorf("firmware: spawning debounce task: %w", err)
	}
	if _, err := s.cores[hal.Core0].Spawn(s.MIDI.Task()); err != nil {
		return nil, fmt.Errorf("firmware: spawning midi task: %w", err)
	}
	if _, err := s.cores[hal.Core1].Spawn(s.Worker.Task()); err != nil {
		return nil, fmt.Errorf("firmware: spawning worker task: %w", err)
	}

	s.Infof("firmware up: %d encoders, %d switches, quiescence %dus",
		len(s.Encoders), len(cfg.Switches.Pins), cfg.QuiescenceUs)
	return s, nil
}

// Config returns the configuration the System was built with.
func (s *System) Config() config.Config {
	return s.cfg
}

// Core returns the scheduler of the given core.
func (s *System) Core(c hal.Core) *task.Scheduler {
	return s.cores[c]
}

// Now returns the current tick count.
func (s *System) Now() uint64 {
	return s.Clock.Now()
}

// RunCores polls both cores until neither has runnable tasks, returning
// the number of polls performed. This is the deterministic single-thread
// rendition of the two cores used by Step and by tests.
func (s *System) RunCores() int {
	total := 0
	for {
		n := s.cores[hal.Core0].RunOnce() + s.cores[hal.Core1].RunOnce()
		if n == 0 {
			return total
		}
		total += n
	}
}

// Step advances simulated time by the given ticks, running both cores to
// quiescence before and after. Only valid on simulated hardware.
func (s *System) Step(ticks uint64) {
	if s.advance == nil {
		panic("firmware: Step requires a simulated timer")
	}
	s.RunCores()
	s.advance(ticks)
	s.RunCores()
}
