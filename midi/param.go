package midi

import (
	"math"
	"sync"
)

// rampStep is the spacing of controller messages along a ramp
const rampStep = 0.02

// maxRampSteps bounds the messages a single ramp may queue
const maxRampSteps = 500

// CCParam drives a control change as an automation target. Values are 0..1.
type CCParam struct {
	out        *output
	controller uint8

	mu      sync.Mutex
	lastAt  float64
	lastVal float64
	last    uint8
	set     bool
}

// SetValueAtTime sends value at the second at
func (p *CCParam) SetValueAtTime(value, at float64) {
	p.mu.Lock()
	p.lastAt, p.lastVal, p.set = at, value, true
	p.mu.Unlock()
	p.emit(at, value)
}

// LinearRampToValueAtTime sends evenly spaced steps from the previous point
// to value at the second at. Without a previous point it jumps.
func (p *CCParam) LinearRampToValueAtTime(value, at float64) {
	p.mu.Lock()
	fromAt, fromVal, set := p.lastAt, p.lastVal, p.set
	p.lastAt, p.lastVal, p.set = at, value, true
	p.mu.Unlock()

	span := at - fromAt
	if !set || span <= 0 {
		p.emit(at, value)
		return
	}
	steps := int(math.Ceil(span / rampStep))
	if steps > maxRampSteps {
		steps = maxRampSteps
	}
	prev := toByte(fromVal)
	for s := 1; s <= steps; s++ {
		frac := float64(s) / float64(steps)
		v := toByte(fromVal + (value-fromVal)*frac)
		if v == prev && s < steps {
			continue
		}
		prev = v
		p.emit(fromAt+span*frac, fromVal+(value-fromVal)*frac)
	}
}

func (p *CCParam) emit(at, value float64) {
	v := toByte(value)
	p.out.at(at, func() {
		p.mu.Lock()
		p.last = v
		p.mu.Unlock()
		p.out.write(Event{Type: CC, Note: p.controller, Velocity: v})
	})
}

// Last returns the most recently sent controller value
func (p *CCParam) Last() uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
