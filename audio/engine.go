package audio

import (
	"os"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"go-transport/debug"
)

// DefaultSampleRate is used when no sample dictates one
const DefaultSampleRate beep.SampleRate = 44100

// Engine mixes every voice started by its samplers into one output. Voices
// are started with leading silence so they sound at their requested second.
type Engine struct {
	format beep.Format
	now    func() float64
	lock   func(func())
	log    zerolog.Logger

	mixer  *beep.Mixer
	gain   *Curve
	output beep.Streamer
}

// Option configures an Engine
type Option func(*Engine)

// WithLocker replaces speaker.Lock/Unlock around mixer changes
func WithLocker(lock func(func())) Option {
	return func(e *Engine) { e.lock = lock }
}

func speakerLock(f func()) {
	speaker.Lock()
	defer speaker.Unlock()
	f()
}

// NewEngine creates an engine at rate. now must be the clock the transport
// stamps callbacks with.
func NewEngine(rate beep.SampleRate, now func() float64, opts ...Option) *Engine {
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	e := &Engine{
		format: beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2},
		now:    now,
		lock:   speakerLock,
		log:    debug.Logger("audio"),
		mixer:  &beep.Mixer{},
		gain:   NewCurve(1),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.output = &GainStreamer{Streamer: e.mixer, Curve: e.gain, Now: now}
	return e
}

// Format is the output format
func (e *Engine) Format() beep.Format { return e.format }

// Gain is the master gain, automatable as a timeline param
func (e *Engine) Gain() *Curve { return e.gain }

// Streamer is the mixed output
func (e *Engine) Streamer() beep.Streamer { return e.output }

// Start opens the speaker with a 100ms buffer and plays the mix
func (e *Engine) Start() error {
	rate := e.format.SampleRate
	if err := speaker.Init(rate, rate.N(time.Second/10)); err != nil {
		return errors.Wrap(err, "init speaker")
	}
	speaker.Play(e.output)
	e.log.Info().Int("rate", int(rate)).Msg("speaker started")
	return nil
}

// Close silences the output
func (e *Engine) Close() {
	e.lock(func() { e.mixer.Clear() })
}

// Voices returns the number of voices in the mix
func (e *Engine) Voices() int {
	n := 0
	e.lock(func() { n = e.mixer.Len() })
	return n
}

func (e *Engine) add(s beep.Streamer) {
	e.lock(func() { e.mixer.Add(s) })
}

// Load decodes a wav file into a sampler, resampling to the engine rate
func (e *Engine) Load(path string) (*Sampler, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open sample")
	}
	streamer, format, err := wav.Decode(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	defer streamer.Close()

	var src beep.Streamer = streamer
	if format.SampleRate != e.format.SampleRate {
		src = beep.Resample(4, format.SampleRate, e.format.SampleRate, streamer)
	}
	buf := beep.NewBuffer(e.format)
	buf.Append(src)
	e.log.Debug().Str("path", path).Int("frames", buf.Len()).Msg("sample loaded")
	return e.Sampler(buf), nil
}

// Sampler wraps an already decoded buffer in the engine format
func (e *Engine) Sampler(buf *beep.Buffer) *Sampler {
	return &Sampler{engine: e, buf: buf}
}

// GainStreamer scales its source by a curve evaluated once per chunk
type GainStreamer struct {
	Streamer beep.Streamer
	Curve    *Curve
	Now      func() float64
}

func (g *GainStreamer) Stream(samples [][2]float64) (int, bool) {
	n, ok := g.Streamer.Stream(samples)
	now := g.Now()
	gain := g.Curve.ValueAt(now)
	g.Curve.Prune(now)
	for i := range samples[:n] {
		samples[i][0] *= gain
		samples[i][1] *= gain
	}
	return n, ok
}

func (g *GainStreamer) Err() error { return g.Streamer.Err() }

// Volume wraps s with a decibel style volume control, silent below -10
func Volume(s beep.Streamer, volume float64) *effects.Volume {
	return &effects.Volume{
		Streamer: s,
		Base:     2,
		Volume:   volume,
		Silent:   volume <= -10,
	}
}
