package audio

import (
	"sync"
	"time"

	"github.com/faiface/beep"

	"go-transport/timeline"
)

// Sampler plays slices of a decoded buffer. It is a timeline.Source.
type Sampler struct {
	engine *Engine
	buf    *beep.Buffer

	mu     sync.Mutex
	volume float64
}

// SetVolume sets the volume of voices started afterwards (0 is unity,
// -10 or below is silent)
func (s *Sampler) SetVolume(v float64) {
	s.mu.Lock()
	s.volume = v
	s.mu.Unlock()
}

// Seconds is the length of the material
func (s *Sampler) Seconds() float64 {
	return s.buf.Format().SampleRate.D(s.buf.Len()).Seconds()
}

// Start plays offset..offset+duration seconds of the material at the
// absolute second at. duration <= 0 plays to the end.
func (s *Sampler) Start(at, offset, duration float64) timeline.Voice {
	rate := s.engine.format.SampleRate
	frames := s.buf.Len()
	from := clamp(rate.N(seconds(offset)), 0, frames)
	to := frames
	if duration > 0 {
		to = clamp(from+rate.N(seconds(duration)), from, frames)
	}

	v := &voice{
		rate:   rate,
		t0:     s.engine.now(),
		stopAt: -1,
	}
	v.delay = rate.N(seconds(at - v.t0))
	if v.delay < 0 {
		v.delay = 0
	}
	var src beep.Streamer = s.buf.Streamer(from, to)
	s.mu.Lock()
	if vol := s.volume; vol != 0 {
		src = Volume(src, vol)
	}
	s.mu.Unlock()
	v.src = src

	s.engine.add(v)
	return v
}

// voice streams silence until its start, then the source, until its stop
// frame or the end of the source
type voice struct {
	rate beep.SampleRate
	t0   float64

	mu     sync.Mutex
	src    beep.Streamer
	delay  int
	pos    int
	stopAt int
	done   bool
}

// Stop ends the voice at the absolute second at
func (v *voice) Stop(at float64) {
	frame := v.rate.N(seconds(at - v.t0))
	if frame < 0 {
		frame = 0
	}
	v.mu.Lock()
	if v.stopAt < 0 || frame < v.stopAt {
		v.stopAt = frame
	}
	v.mu.Unlock()
}

func (v *voice) Stream(samples [][2]float64) (int, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	n := 0
	for n < len(samples) && !v.done {
		chunk := samples[n:]
		if v.stopAt >= 0 {
			left := v.stopAt - v.pos
			if left <= 0 {
				v.done = true
				break
			}
			if len(chunk) > left {
				chunk = chunk[:left]
			}
		}
		if v.delay > 0 {
			k := min(len(chunk), v.delay)
			clear(chunk[:k])
			v.delay -= k
			v.pos += k
			n += k
			continue
		}
		k, ok := v.src.Stream(chunk)
		v.pos += k
		n += k
		if !ok || k == 0 {
			v.done = true
		}
	}
	if n == 0 && v.done {
		return 0, false
	}
	return n, true
}

func (v *voice) Err() error { return nil }

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
