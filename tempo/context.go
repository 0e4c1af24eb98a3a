package tempo

import (
	"math"
	"sync"

	"github.com/pkg/errors"
)

// Defaults used when no project settings are available
const (
	DefaultBPM = 120.0
	DefaultPPQ = 192
)

var (
	ErrInvalidBPM = errors.New("tempo: bpm must be positive")
	ErrInvalidPPQ = errors.New("tempo: ppq must be positive")
)

// Context converts between ticks, beats and seconds using the current tempo.
// Every conversion reads the BPM at call time; nothing is frozen when an
// event is scheduled.
type Context struct {
	mu   sync.RWMutex
	bpm  float64
	ppq  int
	subs map[int]func(bpm float64)
	seq  int
}

// NewContext creates a tempo context
func NewContext(bpm float64, ppq int) (*Context, error) {
	if !(bpm > 0) || math.IsInf(bpm, 0) {
		return nil, errors.Wrapf(ErrInvalidBPM, "got %v", bpm)
	}
	if ppq <= 0 {
		return nil, errors.Wrapf(ErrInvalidPPQ, "got %d", ppq)
	}
	return &Context{bpm: bpm, ppq: ppq, subs: make(map[int]func(float64))}, nil
}

// Default returns a context at 120 BPM / 192 PPQ
func Default() *Context {
	c, _ := NewContext(DefaultBPM, DefaultPPQ)
	return c
}

// BPM returns the current tempo
func (c *Context) BPM() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bpm
}

// PPQ returns the resolution in ticks per beat
func (c *Context) PPQ() int {
	return c.ppq
}

// SetBPM changes the tempo. Times already computed are not touched.
func (c *Context) SetBPM(bpm float64) error {
	if !(bpm > 0) || math.IsInf(bpm, 0) {
		return errors.Wrapf(ErrInvalidBPM, "got %v", bpm)
	}
	c.mu.Lock()
	if c.bpm == bpm {
		c.mu.Unlock()
		return nil
	}
	c.bpm = bpm
	listeners := make([]func(float64), 0, len(c.subs))
	for i := 0; i <= c.seq; i++ {
		if fn, ok := c.subs[i]; ok {
			listeners = append(listeners, fn)
		}
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(bpm)
	}
	return nil
}

// OnTempoChange registers fn to be called after every BPM change
func (c *Context) OnTempoChange(fn func(bpm float64)) func() {
	c.mu.Lock()
	c.seq++
	id := c.seq
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

func (c *Context) TicksToSeconds(ticks float64) float64 {
	return ticks * 60 / (float64(c.ppq) * c.BPM())
}

func (c *Context) SecondsToTicks(seconds float64) float64 {
	return seconds * c.BPM() * float64(c.ppq) / 60
}

func (c *Context) BeatsToSeconds(beats float64) float64 {
	return beats * 60 / c.BPM()
}

func (c *Context) SecondsToBeats(seconds float64) float64 {
	return seconds * c.BPM() / 60
}

func (c *Context) BeatsToTicks(beats float64) float64 {
	return beats * float64(c.ppq)
}

func (c *Context) TicksToBeats(ticks float64) float64 {
	return ticks / float64(c.ppq)
}

// Round snaps beats to the nearest tick
func (c *Context) Round(beats float64) float64 {
	return math.Round(beats*float64(c.ppq)) / float64(c.ppq)
}

// Convert expresses t in the given unit
func (c *Context) Convert(t Time, unit Unit) Time {
	if t.Unit == unit {
		return t
	}
	var beats float64
	switch t.Unit {
	case UnitTicks:
		beats = c.TicksToBeats(t.Value)
	case UnitSeconds:
		beats = c.SecondsToBeats(t.Value)
	default:
		beats = t.Value
	}
	switch unit {
	case UnitTicks:
		return Ticks(c.BeatsToTicks(beats))
	case UnitSeconds:
		return Seconds(c.BeatsToSeconds(beats))
	default:
		return Beats(beats)
	}
}
