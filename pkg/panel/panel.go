// Package panel implements the host simulator's terminal front panel: a
// bubbletea program that steps the firmware in simulated time, feeds
// keypresses in as GPIO edges and MIDI bytes, and renders what comes back
// out of the event channels. Everything runs inside the bubbletea update
// loop, so a session is as deterministic as a test.
package panel

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"gitlab.com/gomidi/midi/v2"

	"github.com/pferreir/rpico-euro-seq/internal/config"
	"github.com/pferreir/rpico-euro-seq/internal/firmware"
	"github.com/pferreir/rpico-euro-seq/internal/hal/sim"
	"github.com/pferreir/rpico-euro-seq/internal/worker"
)

var (
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#fff"))
	gateOnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5f5")).Bold(true)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
)

const (
	framesPerSecond = 30
	midiLogDepth    = 6
)

type tickMsg time.Time

// Model is the bubbletea model wrapping a running System.
type Model struct {
	sys   *firmware.System
	board *sim.Board
	cfg   config.Config

	ticksPerFrame uint64

	encoderPos []int
	switches   []bool
	midiLog    []string
	jobs       uint32
	jobsDone   uint32
	quitting   bool
}

// New returns a Model driving sys on board.
func New(sys *firmware.System, board *sim.Board, cfg config.Config) Model {
	// buttons idle high (active low)
	for _, pin := range cfg.Switches.Pins {
		board.GPIO.SetLevel(cfg.Switches.Source, pin, true)
	}
	return Model{
		sys:           sys,
		board:         board,
		cfg:           cfg,
		ticksPerFrame: uint64(cfg.TickHz / framesPerSecond),
		encoderPos:    make([]int, len(cfg.Encoders)),
		switches:      make([]bool, len(cfg.Switches.Pins)),
	}
}

func frame() tea.Cmd {
	return tea.Tick(time.Second/framesPerSecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return frame()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tickMsg:
		m.sys.Step(m.ticksPerFrame)
		m.drain()
		return m, frame()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "right", "l":
		m.turnEncoder(0, true)
	case "left", "h":
		m.turnEncoder(0, false)

	case "1", "2", "3", "4":
		m.toggleSwitch(int(msg.String()[0] - '1'))

	case "n":
		m.injectMIDI(midi.NoteOn(0, 60, 100))
	case "m":
		m.injectMIDI(midi.NoteOff(0, 60))

	case "j":
		m.jobs++
		id := m.jobs
		_ = m.sys.Worker.TrySubmit(worker.Job{ID: id, Run: func() error { return nil }})
	}
	return m, nil
}

// turnEncoder drives the quadrature phases of one detent step, then the
// edge the hardware would deliver on the A pin.
func (m *Model) turnEncoder(idx int, clockwise bool) {
	if idx >= len(m.cfg.Encoders) {
		return
	}
	enc := m.cfg.Encoders[idx]
	// at the settled sample, A != B reads as clockwise
	m.board.GPIO.SetLevel(enc.Source, enc.PinA, true)
	m.board.GPIO.SetLevel(enc.Source, enc.PinB, !clockwise)
	m.board.GPIO.RaiseEdge(enc.Source, enc.PinA)
}

// toggleSwitch flips a button's level and delivers the edge. Buttons are
// active low.
func (m *Model) toggleSwitch(idx int) {
	if idx >= len(m.cfg.Switches.Pins) {
		return
	}
	source, pin := m.cfg.Switches.Source, m.cfg.Switches.Pins[idx]
	m.board.GPIO.SetLevel(source, pin, !m.board.GPIO.Level(source, pin))
	m.board.GPIO.RaiseEdge(source, pin)
}

// injectMIDI feeds the wire bytes of msg into the DIN decoder, the way
// the UART ISR would.
func (m *Model) injectMIDI(msg midi.Message) {
	for _, b := range msg {
		if err := m.sys.MIDI.Raw().TrySend(b); err != nil {
			return
		}
	}
}

// drain consumes everything the firmware published since the last frame.
func (m *Model) drain() {
	for {
		ev, err := m.sys.EncoderEvents.TryRecv()
		if err != nil {
			break
		}
		if int(ev.ID) < len(m.encoderPos) {
			m.encoderPos[ev.ID] += int(ev.Delta)
		}
	}
	for {
		ev, err := m.sys.SwitchEvents.TryRecv()
		if err != nil {
			break
		}
		if int(ev.ID) < len(m.switches) {
			m.switches[ev.ID] = ev.Pressed
		}
	}
	for {
		ev, err := m.sys.MIDIEvents.TryRecv()
		if err != nil {
			break
		}
		m.midiLog = append(m.midiLog, ev.Message.String())
		if len(m.midiLog) > midiLogDepth {
			m.midiLog = m.midiLog[1:]
		}
	}
	for {
		res, err := m.sys.Worker.Results().TryRecv()
		if err != nil {
			break
		}
		_ = res
		m.jobsDone++
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(activeStyle.Render("euroseq — simulated front panel"))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("t = %s\n\n", statusStyle.Render(fmt.Sprintf("%d us", m.sys.Now()))))

	for i, pos := range m.encoderPos {
		b.WriteString(fmt.Sprintf("enc %d  %s\n", i, activeStyle.Render(fmt.Sprintf("%+d", pos))))
	}
	b.WriteString("\n")

	for i, on := range m.switches {
		label := fmt.Sprintf("[sw%d]", i+1)
		if on {
			b.WriteString(gateOnStyle.Render(label))
		} else {
			b.WriteString(dimStyle.Render(label))
		}
		b.WriteString(" ")
	}
	b.WriteString("\n\n")

	b.WriteString(statusStyle.Render("midi in:"))
	b.WriteString("\n")
	if len(m.midiLog) == 0 {
		b.WriteString(dimStyle.Render("  (none)"))
		b.WriteString("\n")
	}
	for _, line := range m.midiLog {
		b.WriteString("  " + line + "\n")
	}
	b.WriteString("\n")

	b.WriteString(statusStyle.Render(fmt.Sprintf("jobs: %d submitted, %d done", m.jobs, m.jobsDone)))
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("←/→ encoder · 1-4 switches · n/m note on/off · j job · q quit"))
	b.WriteString("\n")

	return b.String()
}
