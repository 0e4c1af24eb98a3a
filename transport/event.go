package transport

import (
	"sync"

	"github.com/pkg/errors"
)

// Event describes one timed activation. Times are in beats; Duration 0 is
// an instant trigger. Nil callbacks are skipped.
//
// Per activation exactly one of OnStart or OnMidStart runs, followed by
// exactly one OnEnd unless the event is removed before it starts.
type Event struct {
	Time     float64
	Duration float64
	Offset   float64

	// OnStart receives the absolute second of Time
	OnStart func(at float64)
	// OnMidStart runs instead of OnStart when playback begins inside the
	// event; elapsed is the seconds already played since Time.
	OnMidStart func(at, elapsed float64)
	// OnEnd receives the absolute second of Time+Duration, or the stop time
	OnEnd func(at float64)
}

// Info is a read-only view of a registration
type Info struct {
	ID       int
	Time     float64
	Duration float64
	Offset   float64
	Active   bool
	Embedded bool
}

type phase int

const (
	phaseIdle phase = iota
	phaseActive
	phaseDone
)

// synthetic ends (stop, removal, restart) sort ahead of every real tick
const syntheticTick = -1

type scheduled struct {
	id     int
	ev     Event
	start  float64 // ticks
	end    float64 // ticks
	offset float64 // ticks
	phase  phase
	child  *Transport
}

func validate(at, duration, offset float64) error {
	if !(at >= 0) {
		return errors.Wrapf(ErrNegativeTime, "time %v", at)
	}
	if !(duration >= 0) {
		return errors.Wrapf(ErrNegativeDuration, "duration %v", duration)
	}
	if !(offset >= 0) {
		return errors.Wrapf(ErrNegativeOffset, "offset %v", offset)
	}
	return nil
}

// Schedule registers ev and returns a function deregistering it. Negative
// times are rejected, never clamped.
func (t *Transport) Schedule(ev Event) (func(), error) {
	if err := validate(ev.Time, ev.Duration, ev.Offset); err != nil {
		return nil, err
	}
	s := &scheduled{
		ev:     ev,
		start:  t.ctx.BeatsToTicks(ev.Time),
		end:    t.ctx.BeatsToTicks(ev.Time + ev.Duration),
		offset: t.ctx.BeatsToTicks(ev.Offset),
	}
	return t.add(s), nil
}

func (t *Transport) add(s *scheduled) func() {
	t.mu.Lock()
	t.nextID++
	s.id = t.nextID
	t.events = append(t.events, s)
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { t.remove(s) })
	}
}

// remove deregisters s, ending it first if it is sounding
func (t *Transport) remove(s *scheduled) {
	t.serial.Lock()
	defer t.serial.Unlock()

	at := t.now()
	t.mu.Lock()
	idx := -1
	for i, e := range t.events {
		if e == s {
			idx = i
			break
		}
	}
	if idx < 0 {
		t.mu.Unlock()
		return
	}
	t.events = append(t.events[:idx], t.events[idx+1:]...)
	var acts []action
	if s.phase == phaseActive {
		s.phase = phaseDone
		acts = append(acts, s.endAction(at, syntheticTick))
	}
	t.mu.Unlock()
	run(acts)
}

// Len returns the number of registrations
func (t *Transport) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.events)
}

// Events returns a snapshot of registrations in registration order
func (t *Transport) Events() []Info {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Info, len(t.events))
	for i, s := range t.events {
		out[i] = Info{
			ID:       s.id,
			Time:     t.ctx.TicksToBeats(s.start),
			Duration: t.ctx.TicksToBeats(s.end - s.start),
			Offset:   t.ctx.TicksToBeats(s.offset),
			Active:   s.phase == phaseActive,
			Embedded: s.child != nil,
		}
	}
	return out
}

// process fires everything in [horizon, to). Caller holds mu.
func (t *Transport) process(to, now float64, secondsAt func(float64) float64) []action {
	from := t.horizon
	if !(to > from) {
		return nil
	}

	var acts []action
	for _, s := range t.events {
		switch s.phase {
		case phaseIdle:
			if s.start < from || s.start >= to {
				continue
			}
			at := secondsAt(s.start)
			if s.end <= s.start {
				s.phase = phaseDone
				acts = append(acts, s.instantAction(at))
				continue
			}
			s.phase = phaseActive
			acts = append(acts, s.startAction(at, t.cut(s, from, to), now, secondsAt))
		case phaseActive:
			if s.child != nil {
				acts = append(acts, s.driveAction(from, t.cut(s, from, to), now, secondsAt))
			}
		default:
			continue
		}
		if s.phase == phaseActive && s.end < to {
			s.phase = phaseDone
			acts = append(acts, s.endAction(secondsAt(s.end), s.end))
		}
	}
	t.horizon = to
	return acts
}

// cut is where driving placement s stops in the window [from, to): its end,
// or the start of a later placement relaunching the same child. Caller holds
// mu.
func (t *Transport) cut(s *scheduled, from, to float64) float64 {
	limit := min(to, s.end)
	if s.child == nil {
		return limit
	}
	for _, e := range t.events {
		if e == s || e.child != s.child || e.start < from {
			continue
		}
		later := e.start > s.start || (e.start == s.start && e.id > s.id)
		if later && e.start < limit {
			limit = e.start
		}
	}
	return limit
}

func (s *scheduled) startAction(at, limit, now float64, secondsAt func(float64) float64) action {
	a := action{tick: s.start, start: true, path: []int{s.id}}
	if s.child == nil {
		onStart := s.ev.OnStart
		a.fn = func() {
			if onStart != nil {
				onStart(at)
			}
		}
		return a
	}
	child, offset := s.child, s.offset
	local := s.local(limit)
	mapped := s.childSeconds(secondsAt)
	a.expand = func() []action {
		acts := child.launch(s, at, offset)
		acts = append(acts, child.drive(s, local, now, mapped)...)
		return s.adopt(acts, s.start)
	}
	return a
}

func (s *scheduled) driveAction(from, limit, now float64, secondsAt func(float64) float64) action {
	child := s.child
	local := s.local(limit)
	mapped := s.childSeconds(secondsAt)
	return action{tick: from, start: true, path: []int{s.id}, expand: func() []action {
		return s.adopt(child.drive(s, local, now, mapped), from)
	}}
}

func (s *scheduled) midStartAction(t *Transport, at, pos float64) action {
	a := action{tick: pos, start: true, path: []int{s.id}}
	elapsedTicks := pos - s.start
	if s.child != nil {
		child, local := s.child, s.offset+elapsedTicks
		a.expand = func() []action {
			return s.adopt(child.launch(s, at, local), pos)
		}
		return a
	}
	onMidStart := s.ev.OnMidStart
	elapsed := t.ctx.TicksToSeconds(elapsedTicks)
	a.fn = func() {
		if onMidStart != nil {
			onMidStart(at, elapsed)
		}
	}
	return a
}

func (s *scheduled) endAction(at, tick float64) action {
	a := action{tick: tick, path: []int{s.id}}
	if s.child != nil {
		child := s.child
		a.fn = func() { child.release(s, at) }
		return a
	}
	onEnd := s.ev.OnEnd
	a.fn = func() {
		if onEnd != nil {
			onEnd(at)
		}
	}
	return a
}

func (s *scheduled) instantAction(at float64) action {
	a := action{tick: s.start, start: true, path: []int{s.id}}
	if s.child != nil {
		child, offset := s.child, s.offset
		a.fn = func() {
			run(child.launch(s, at, offset))
			child.release(s, at)
		}
		return a
	}
	onStart, onEnd := s.ev.OnStart, s.ev.OnEnd
	a.fn = func() {
		if onStart != nil {
			onStart(at)
		}
		if onEnd != nil {
			onEnd(at)
		}
	}
	return a
}

// adopt moves child actions onto this placement's ticks so they sort with
// the parent's own. Synthetic child ends sort at base.
func (s *scheduled) adopt(acts []action, base float64) []action {
	for i := range acts {
		a := &acts[i]
		if a.tick == syntheticTick {
			a.tick = base
		} else {
			a.tick = s.start + a.tick - s.offset
		}
		a.path = append([]int{s.id}, a.path...)
		if inner := a.expand; inner != nil {
			a.expand = func() []action { return s.adopt(inner(), base) }
		}
	}
	return acts
}

// local maps a parent tick into the embedded child's timeline
func (s *scheduled) local(parentTick float64) float64 {
	return parentTick - s.start + s.offset
}

// childSeconds stamps child ticks through the parent's tick-to-second mapping
func (s *scheduled) childSeconds(secondsAt func(float64) float64) func(float64) float64 {
	start, offset := s.start, s.offset
	return func(childTick float64) float64 {
		return secondsAt(start + childTick - offset)
	}
}
