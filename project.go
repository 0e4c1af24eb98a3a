package main

import (
	"path/filepath"

	"go-transport/audio"
	"go-transport/debug"
	"go-transport/midi"
	"go-transport/sequence"
	"go-transport/ticker"
	"go-transport/timeline"
	"go-transport/transport"
	"go-transport/tui"
)

// project holds what the demo arrangement plays through
type project struct {
	transport *transport.Transport
	clock     *ticker.Ticker
	notes     timeline.Instrument
	synth     *midi.Instrument // nil without a midi port
	engine    *audio.Engine    // nil with audio disabled
	samples   []string
}

const (
	bars      = 8
	beatsPer  = 4
	cutoffCC  = 74
	bassRow   = 0
	leadRow   = 1
	sweepRow  = 2
	sampleRow = 3
)

// buildProject lays out a short loop: a one bar bass pattern placed every
// bar, a lead line, a filter sweep and any configured samples.
func buildProject(p project) ([]tui.Track, error) {
	log := debug.Logger("project")
	tr := p.transport

	bass := timeline.NewPattern("bass", beatsPer, tr.Context(), p.clock)
	for i, pitch := range []uint8{36, 36, 43, 41} {
		if _, err := bass.AddNote(timeline.NoteSpec{
			Placement: timeline.Placement{Time: float64(i), Duration: 0.5},
			Pitch:     pitch,
			Velocity:  0.9,
		}, p.notes); err != nil {
			return nil, err
		}
	}

	patterns := sequence.New[*timeline.Item](tr)
	for bar := 0; bar < bars; bar++ {
		it, err := bass.Place(bassRow, float64(bar*beatsPer))
		if err != nil {
			return nil, err
		}
		if err := patterns.Push(it); err != nil {
			return nil, err
		}
	}

	lead := sequence.New[*timeline.Item](tr)
	phrase := []uint8{72, 74, 76, 79, 76, 74, 72, 67}
	for i, pitch := range phrase {
		it, err := timeline.NewNote(timeline.NoteSpec{
			Placement: timeline.Placement{Row: leadRow, Time: float64(i * beatsPer), Duration: 3},
			Pitch:     pitch,
			Velocity:  0.7,
		}, p.notes)
		if err != nil {
			return nil, err
		}
		if err := lead.Push(it); err != nil {
			return nil, err
		}
	}

	tracks := []tui.Track{
		{Name: bass.Name(), Items: patterns},
		{Name: "lead", Items: lead},
	}

	// The sweep drives synth cutoff, or master gain when only audio is up
	var param timeline.Param
	switch {
	case p.synth != nil:
		param = p.synth.Param(cutoffCC)
	case p.engine != nil:
		param = p.engine.Gain()
	}
	if param != nil {
		sweep := sequence.New[*timeline.Item](tr)
		length := float64(bars * beatsPer)
		it, err := timeline.NewAutomation(timeline.Placement{Row: sweepRow, Duration: length}, param, []timeline.Point{
			{Time: 0, Value: 0.2},
			{Time: length / 2, Value: 1},
			{Time: length, Value: 0.2},
		})
		if err != nil {
			return nil, err
		}
		if err := sweep.Push(it); err != nil {
			return nil, err
		}
		tracks = append(tracks, tui.Track{Name: "sweep", Items: sweep})
	}

	if p.engine != nil && len(p.samples) > 0 {
		clips := sequence.New[*timeline.Item](tr)
		for i, path := range p.samples {
			s, err := p.engine.Load(path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("skip sample")
				continue
			}
			beats := tr.Context().SecondsToBeats(s.Seconds())
			it, err := timeline.NewSample(timeline.Placement{
				Row:      sampleRow,
				Time:     float64(i * 2 * beatsPer),
				Duration: beats,
			}, s)
			if err != nil {
				return nil, err
			}
			if err := clips.Push(it); err != nil {
				return nil, err
			}
			log.Debug().Str("sample", filepath.Base(path)).Float64("beats", beats).Msg("placed")
		}
		tracks = append(tracks, tui.Track{Name: "samples", Items: clips})
	}
	return tracks, nil
}
