package transport

import (
	"github.com/pkg/errors"
)

// Embed places child on this timeline for duration beats from start. The
// child plays from its own position 0.
func (t *Transport) Embed(child *Transport, start, duration float64) (func(), error) {
	return t.EmbedWithOffset(child, start, duration, 0)
}

// EmbedWithOffset places child at start and begins its playback offset beats
// into the child's timeline. Starting the parent inside the placement begins
// the child at offset plus the elapsed beats; the placement end stops it.
//
// The same child may be placed several times. Overlapping placements restart
// it.
func (t *Transport) EmbedWithOffset(child *Transport, start, duration, offset float64) (func(), error) {
	if child == nil {
		return nil, errors.New("transport: nil child")
	}
	if err := validate(start, duration, offset); err != nil {
		return nil, err
	}
	if child == t || child.contains(t) {
		return nil, errors.Wrapf(ErrEmbedCycle, "%s into %s", child.name, t.name)
	}
	s := &scheduled{
		child:  child,
		start:  t.ctx.BeatsToTicks(start),
		end:    t.ctx.BeatsToTicks(start + duration),
		offset: t.ctx.BeatsToTicks(offset),
	}
	t.log.Debug().Str("child", child.name).Float64("start", start).Float64("duration", duration).Msg("embedded")
	return t.add(s), nil
}

// contains reports whether target is embedded anywhere below t
func (t *Transport) contains(target *Transport) bool {
	seen := map[*Transport]bool{}
	stack := []*Transport{t}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		for _, c := range cur.children() {
			if c == target {
				return true
			}
			stack = append(stack, c)
		}
	}
	return false
}

func (t *Transport) children() []*Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*Transport
	for _, s := range t.events {
		if s.child != nil {
			out = append(out, s.child)
		}
	}
	return out
}

// launch (re)starts a child under parent placement owner at local tick pos.
// The returned callbacks are run by the parent.
func (t *Transport) launch(owner *scheduled, at, pos float64) []action {
	t.serial.Lock()
	defer t.serial.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	acts := t.flush(at)
	t.unsubscribeLocked()
	acts = append(acts, t.begin(at, pos, true)...)
	t.driver = owner
	return acts
}

// drive advances a launched child up to local tick to and returns the
// callbacks due. A placement that no longer owns the child drives nothing.
func (t *Transport) drive(owner *scheduled, to, now float64, secondsAt func(float64) float64) []action {
	t.serial.Lock()
	defer t.serial.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Started || !t.driven || t.driver != owner {
		return nil
	}
	t.lastNow = now
	if to > t.ticks {
		t.ticks = to
	}
	return t.process(to, now, secondsAt)
}

// rewind pulls a driven child back to local tick pos when its parent pauses
func (t *Transport) rewind(owner *scheduled, at, pos float64) {
	t.serial.Lock()
	defer t.serial.Unlock()

	t.mu.Lock()
	if t.state != Started || !t.driven || t.driver != owner {
		t.mu.Unlock()
		return
	}
	acts, kids := t.rewindLocked(at, pos)
	t.ticks = pos
	t.mu.Unlock()

	for _, k := range kids {
		k.child.rewind(k.owner, at, k.pos)
	}
	run(acts)
}

// release stops a child at the end of its placement, unless a later
// placement has relaunched it since
func (t *Transport) release(owner *scheduled, at float64) {
	t.serial.Lock()
	defer t.serial.Unlock()

	t.mu.Lock()
	owned := t.driven && t.driver == owner
	t.mu.Unlock()
	if owned {
		t.halt(at)
	}
}
