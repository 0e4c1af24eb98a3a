package main

import (
	"fmt"
	"os"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-transport/midi"
	"go-transport/tempo"
	"go-transport/ticker"
	"go-transport/timeline"
	"go-transport/transport"
)

func main() {
	defer gomidi.CloseDriver()

	if len(os.Args) < 2 {
		usage()
		return
	}

	port := ""
	if len(os.Args) > 2 {
		port = os.Args[2]
	}

	var err error
	switch os.Args[1] {
	case "list":
		err = listPorts()
	case "phrase":
		err = playPhrase(port)
	case "sweep":
		err = sweep(port)
	default:
		usage()
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list          - List MIDI output ports")
	fmt.Println("  phrase [port] - Play a scheduled scale through a transport")
	fmt.Println("  sweep [port]  - Ramp CC 74 up and down")
}

func listPorts() error {
	fmt.Println("=== MIDI Output Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")
	names, err := midi.PortNames(midi.DefaultPortTimeout)
	if err != nil {
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
		return err
	}
	for i, n := range names {
		fmt.Printf("  %d: %s\n", i, n)
	}
	return nil
}

// setup opens port and builds a transport on the shared ticker
func setup(port string) (*transport.Transport, *midi.Instrument, error) {
	send, name, err := midi.Open(port, midi.DefaultPortTimeout)
	if err != nil {
		return nil, nil, err
	}
	fmt.Printf("Sending to %s\n", name)

	clock := ticker.Default()
	tr := transport.New(tempo.Default(), clock, transport.WithLookahead(0.1), transport.WithName("miditest"))
	return tr, midi.NewInstrument(send, 0, clock.Now), nil
}

func playPhrase(port string) error {
	tr, inst, err := setup(port)
	if err != nil {
		return err
	}
	defer inst.Close()

	scale := []uint8{60, 62, 64, 65, 67, 69, 71, 72}
	for i, n := range scale {
		note, err := timeline.NewNote(timeline.NoteSpec{
			Placement: timeline.Placement{Time: float64(i) * 0.5, Duration: 0.4},
			Pitch:     n,
			Velocity:  0.8,
		}, inst)
		if err != nil {
			return err
		}
		if _, err := note.Schedule(tr); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	end := float64(len(scale)) * 0.5
	if _, err := tr.Schedule(transport.Event{Time: end + 0.5, OnStart: func(float64) { close(done) }}); err != nil {
		return err
	}

	tr.Start()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		fmt.Println("timed out waiting for the phrase")
	}
	tr.Stop()
	fmt.Printf("Played %d notes at %.0f bpm\n", len(scale), tr.Context().BPM())
	return nil
}

func sweep(port string) error {
	tr, inst, err := setup(port)
	if err != nil {
		return err
	}
	defer inst.Close()

	auto, err := timeline.NewAutomation(timeline.Placement{Duration: 8}, inst.Param(74),
		[]timeline.Point{{Time: 0, Value: 0}, {Time: 4, Value: 1}, {Time: 8, Value: 0}})
	if err != nil {
		return err
	}
	if _, err := auto.Schedule(tr); err != nil {
		return err
	}

	tr.Start()
	time.Sleep(time.Duration(tr.Context().BeatsToSeconds(8)*float64(time.Second)) + 200*time.Millisecond)
	tr.Stop()
	fmt.Println("Sweep done")
	return nil
}
