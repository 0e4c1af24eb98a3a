package timeline

import (
	"sync"

	"go-transport/transport"
)

// Instrument plays pitched notes. *midi.Instrument satisfies it.
type Instrument interface {
	// TriggerAttackRelease starts note at the absolute second at and
	// releases it duration seconds later. velocity is 0..1.
	TriggerAttackRelease(note uint8, duration, at, velocity float64)
}

// Source starts playback of recorded material. offset and duration are
// seconds into the material; duration <= 0 plays to the end.
type Source interface {
	Start(at, offset, duration float64) Voice
}

// Voice is one running playback of a Source
type Voice interface {
	Stop(at float64)
}

// Param is an automatable value
type Param interface {
	SetValueAtTime(value, at float64)
	LinearRampToValueAtTime(value, at float64)
}

// NoteSpec describes a note. Velocity 0 means full velocity.
type NoteSpec struct {
	Placement
	Pitch    uint8
	Velocity float64
}

// Releaser is an Instrument that can cut a triggered note short.
// *midi.Instrument satisfies it.
type Releaser interface {
	Release(note uint8, at float64)
}

// releaseSlack absorbs rounding between the trigger's release time and the
// end stamp of the same placement
const releaseSlack = 1e-6

type notePayload struct {
	pitch     uint8
	velocity  float64
	inst      Instrument
	releaseAt float64 // natural release of the last trigger, 0 if none
}

var noteBehavior = behavior{
	onStart: func(it *Item, tr *transport.Transport, at float64) {
		n := it.note
		seconds := tr.Context().BeatsToSeconds(it.duration.Get())
		n.releaseAt = at + seconds
		n.inst.TriggerAttackRelease(n.pitch, seconds, at, n.velocity)
	},
	onMidStart: func(it *Item, _ *transport.Transport, _, _ float64) {
		it.note.releaseAt = 0
	},
	// An end before the natural release comes from stop, pause or removal
	onEnd: func(it *Item, at float64) {
		n := it.note
		r, ok := n.inst.(Releaser)
		if ok && at < n.releaseAt-releaseSlack {
			r.Release(n.pitch, at)
		}
		n.releaseAt = 0
	},
}

// NewNote creates a note played on inst. Starting playback inside a note
// does not sound it. If inst is a Releaser, ending the note early (stop,
// pause or removal) releases it at that time.
func NewNote(spec NoteSpec, inst Instrument) (*Item, error) {
	if inst == nil {
		return nil, ErrNilPayload
	}
	it, err := newItem(KindNote, spec.Placement, noteBehavior)
	if err != nil {
		return nil, err
	}
	velocity := spec.Velocity
	if velocity <= 0 || velocity > 1 {
		velocity = 1
	}
	it.note = &notePayload{pitch: spec.Pitch, velocity: velocity, inst: inst}
	return it, nil
}

// Pitch returns the note number of a note item, 0 otherwise
func (it *Item) Pitch() uint8 {
	if it.note == nil {
		return 0
	}
	return it.note.pitch
}

type samplePayload struct {
	src Source

	mu    sync.Mutex
	voice Voice
}

func (s *samplePayload) start(at, offset, duration float64) {
	v := s.src.Start(at, offset, duration)
	s.mu.Lock()
	prev := s.voice
	s.voice = v
	s.mu.Unlock()
	if prev != nil {
		prev.Stop(at)
	}
}

func (s *samplePayload) stop(at float64) {
	s.mu.Lock()
	v := s.voice
	s.voice = nil
	s.mu.Unlock()
	if v != nil {
		v.Stop(at)
	}
}

var sampleBehavior = behavior{
	onStart: func(it *Item, tr *transport.Transport, at float64) {
		ctx := tr.Context()
		it.sample.start(at, ctx.BeatsToSeconds(it.offset.Get()), ctx.BeatsToSeconds(it.duration.Get()))
	},
	onMidStart: func(it *Item, tr *transport.Transport, at, elapsed float64) {
		ctx := tr.Context()
		offset := ctx.BeatsToSeconds(it.offset.Get()) + elapsed
		it.sample.start(at, offset, ctx.BeatsToSeconds(it.duration.Get())-elapsed)
	},
	onEnd: func(it *Item, at float64) {
		it.sample.stop(at)
	},
}

// NewSample creates a clip of src. Offset skips into the material and
// starting inside the clip resumes at offset plus the elapsed time.
func NewSample(p Placement, src Source) (*Item, error) {
	if src == nil {
		return nil, ErrNilPayload
	}
	it, err := newItem(KindSample, p, sampleBehavior)
	if err != nil {
		return nil, err
	}
	it.sample = &samplePayload{src: src}
	return it, nil
}

var patternBehavior = behavior{
	register: func(it *Item, tr *transport.Transport, p Placement) (func(), error) {
		return tr.EmbedWithOffset(it.pattern.Transport(), p.Time, p.Duration, p.Offset)
	},
}

// NewPatternItem places pat on a timeline. The pattern's own transport is
// embedded, so one pattern can be placed many times.
func NewPatternItem(p Placement, pat *Pattern) (*Item, error) {
	if pat == nil {
		return nil, ErrNilPayload
	}
	it, err := newItem(KindPattern, p, patternBehavior)
	if err != nil {
		return nil, err
	}
	it.pattern = pat
	return it, nil
}

// Pattern returns the placed pattern of a pattern item, nil otherwise
func (it *Item) Pattern() *Pattern { return it.pattern }
