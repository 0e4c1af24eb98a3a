package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/faiface/beep"
	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-transport/audio"
	"go-transport/config"
	"go-transport/debug"
	"go-transport/history"
	"go-transport/midi"
	"go-transport/tempo"
	"go-transport/theme"
	"go-transport/ticker"
	"go-transport/transport"
	"go-transport/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	defer gomidi.CloseDriver()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := setupLog(cfg.Log); err != nil {
		return err
	}
	log := debug.Logger("main")

	ctx, err := tempo.NewContext(cfg.Transport.BPM, cfg.Transport.PPQ)
	if err != nil {
		return err
	}
	clock := ticker.New(cfg.Transport.TickInterval)
	defer clock.Close()

	tr := transport.New(ctx, clock,
		transport.WithName("playlist"),
		transport.WithLookahead(cfg.Transport.Lookahead))

	// Without a synth the activity display still shows what would play
	var synth *midi.Instrument
	send, port, err := midi.Open(cfg.MIDI.Port, cfg.MIDI.Timeout)
	if err != nil {
		log.Warn().Err(err).Msg("no midi output, notes are display only")
	} else {
		log.Info().Str("port", port).Msg("midi output")
		synth = midi.NewInstrument(send, uint8(cfg.MIDI.Channel), clock.Now)
		defer synth.Close()
	}
	act := tui.NewActivity(nil, 8)
	if synth != nil {
		act.Next = synth
	}

	var engine *audio.Engine
	if cfg.Audio.Enabled {
		engine = audio.NewEngine(beep.SampleRate(cfg.Audio.SampleRate), clock.Now)
		if err := engine.Start(); err != nil {
			log.Warn().Err(err).Msg("audio disabled")
			engine = nil
		} else {
			defer engine.Close()
		}
	}

	tracks, err := buildProject(project{
		transport: tr,
		clock:     clock,
		notes:     act,
		synth:     synth,
		engine:    engine,
		samples:   cfg.Audio.Samples,
	})
	if err != nil {
		return err
	}

	palette, err := theme.LoadOrDefault(cfg.UI.Palette)
	if err != nil {
		log.Warn().Err(err).Str("palette", cfg.UI.Palette).Msg("using built-in palette")
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchConfig(watchCtx, ctx)

	m := tui.NewModel(tr, tracks, history.NewStack(0), theme.New(palette), cfg.UI.FPS)
	m.Activity = act
	m.Degraded = clock.Degraded
	p := tea.NewProgram(m, tea.WithAltScreen())

	_, err = p.Run()
	tr.Stop()
	if synth != nil {
		synth.Panic()
	}
	return err
}

func setupLog(c config.LogConfig) error {
	opts := debug.Options{Level: c.Level, Console: c.Console}
	if c.File {
		dir, err := config.ConfigDir()
		if err != nil {
			return err
		}
		opts.File = filepath.Join(dir, "debug.log")
	}
	return debug.Setup(opts)
}

// watchConfig applies tempo and log changes from the config file while running
func watchConfig(ctx context.Context, tc *tempo.Context) {
	log := debug.Logger("main")
	path, err := config.ConfigPath()
	if err != nil {
		return
	}
	err = config.Watch(ctx, path, func(cfg *config.Config) {
		if err := tc.SetBPM(cfg.Transport.BPM); err != nil {
			log.Warn().Err(err).Msg("reload tempo")
		}
		if err := setupLog(cfg.Log); err != nil {
			log.Warn().Err(err).Msg("reload log")
		}
		log.Info().Float64("bpm", cfg.Transport.BPM).Msg("config reloaded")
	})
	if err != nil {
		log.Debug().Err(err).Msg("config watch disabled")
	}
}
