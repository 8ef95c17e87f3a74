package main

import (
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pferreir/rpico-euro-seq/internal/config"
	"github.com/pferreir/rpico-euro-seq/internal/firmware"
	"github.com/pferreir/rpico-euro-seq/internal/hal/sim"
	"github.com/pferreir/rpico-euro-seq/pkg/log"
	"github.com/pferreir/rpico-euro-seq/pkg/panel"
)

func main() {
	// start pprof
	go func() {
		err := http.ListenAndServe("localhost:6060", nil)
		if err != nil {
			return
		}
	}()

	configFile := flag.String("config", "", "Simulator config YAML (defaults match hardware)")
	headless := flag.Bool("headless", false, "Run without the TUI front panel")
	steps := flag.Uint64("steps", 1_000_000, "Ticks to run in headless mode")
	debug := flag.Bool("debug", false, "Enable debug logging (headless only)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	board := sim.NewBoard()

	var opts []firmware.Opt
	if *headless {
		if *debug {
			opts = append(opts, firmware.WithLogger(log.NewDebug()))
		} else {
			opts = append(opts, firmware.WithLogger(log.New()))
		}
	}

	sys, err := firmware.New(firmware.FromBoard(board), cfg, opts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *headless {
		sys.Step(*steps)
		sys.Infof("ran %d ticks, t=%dus", *steps, sys.Now())
		return
	}

	p := tea.NewProgram(panel.New(sys, board, cfg), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
