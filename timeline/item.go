package timeline

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"go-transport/debug"
	"go-transport/history"
	"go-transport/transport"
)

var (
	ErrAlreadyScheduled = errors.New("timeline: item already scheduled")
	ErrNilPayload       = errors.New("timeline: missing instrument, source, pattern or param")
)

// Kind selects the variant of an Item
type Kind int

const (
	KindNote Kind = iota
	KindSample
	KindPattern
	KindAutomation
)

func (k Kind) String() string {
	switch k {
	case KindNote:
		return "note"
	case KindSample:
		return "sample"
	case KindPattern:
		return "pattern"
	case KindAutomation:
		return "automation"
	default:
		return "unknown"
	}
}

// Placement is the part every variant shares. Times are in beats.
type Placement struct {
	Row      int
	Time     float64
	Duration float64
	Offset   float64
}

func (p Placement) validate() error {
	if !(p.Time >= 0) {
		return errors.Wrapf(transport.ErrNegativeTime, "time %v", p.Time)
	}
	if !(p.Duration >= 0) {
		return errors.Wrapf(transport.ErrNegativeDuration, "duration %v", p.Duration)
	}
	if !(p.Offset >= 0) {
		return errors.Wrapf(transport.ErrNegativeOffset, "offset %v", p.Offset)
	}
	return nil
}

// behavior is the per-variant table consulted when an Item registers
type behavior struct {
	// register places the item on tr; nil means a plain transport.Event
	// built from the hooks below
	register   func(it *Item, tr *transport.Transport, p Placement) (func(), error)
	onStart    func(it *Item, tr *transport.Transport, at float64)
	onMidStart func(it *Item, tr *transport.Transport, at, elapsed float64)
	onEnd      func(it *Item, at float64)
}

// Item is one schedulable object on a timeline. Its placement fields are
// observable; changing them while scheduled re-registers the item.
type Item struct {
	ID   uuid.UUID
	Kind Kind

	row      *history.Cell[int]
	time     *history.Cell[float64]
	duration *history.Cell[float64]
	offset   *history.Cell[float64]
	// reverting is set while a rejected edit is rolled back
	reverting atomic.Bool

	behavior behavior
	log      zerolog.Logger

	note       *notePayload
	sample     *samplePayload
	pattern    *Pattern
	automation *automationPayload

	mu       sync.Mutex
	tr       *transport.Transport
	dispose  func()
	watchers []watcher
	seq      int
}

type watcher struct {
	id int
	fn func() func()
}

func newItem(kind Kind, p Placement, b behavior) (*Item, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	it := &Item{
		ID:       uuid.New(),
		Kind:     kind,
		row:      history.NewCell(p.Row),
		time:     history.NewCell(p.Time),
		duration: history.NewCell(p.Duration),
		offset:   history.NewCell(p.Offset),
		behavior: b,
	}
	it.log = debug.Logger("timeline").With().Str("kind", kind.String()).Str("id", it.ID.String()).Logger()

	it.watch(it.time)
	it.watch(it.duration)
	it.watch(it.offset)
	return it, nil
}

// watch re-registers after every change of c. A change the transport
// rejects is rolled back so the registration keeps matching the fields.
func (it *Item) watch(c *history.Cell[float64]) {
	c.Subscribe(func(old, _ float64) {
		err := it.reregister()
		if err == nil || !it.reverting.CompareAndSwap(false, true) {
			return
		}
		it.log.Warn().Err(err).Float64("restored", old).Msg("edit rejected")
		c.Set(old)
		it.reverting.Store(false)
	})
}

// Row is the lane the item is drawn on
func (it *Item) Row() history.Value[int] { return it.row }

// Time is the start in beats
func (it *Item) Time() history.Value[float64] { return it.time }

// Duration is the length in beats
func (it *Item) Duration() history.Value[float64] { return it.duration }

// Offset is where playback enters the item's content, in beats
func (it *Item) Offset() history.Value[float64] { return it.offset }

// Placement returns the current placement values
func (it *Item) Placement() Placement {
	return Placement{
		Row:      it.row.Get(),
		Time:     it.time.Get(),
		Duration: it.duration.Get(),
		Offset:   it.offset.Get(),
	}
}

// Scheduled reports whether the item is registered on a transport
func (it *Item) Scheduled() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.tr != nil
}

// Schedule registers the item on tr. The returned function deregisters it
// without notifying removal watchers.
func (it *Item) Schedule(tr *transport.Transport) (func(), error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.tr != nil {
		return nil, errors.Wrapf(ErrAlreadyScheduled, "%s %s", it.Kind, it.ID)
	}
	dispose, err := it.registerLocked(tr)
	if err != nil {
		return nil, err
	}
	it.tr = tr
	it.dispose = dispose

	var once sync.Once
	return func() {
		once.Do(func() {
			it.mu.Lock()
			defer it.mu.Unlock()
			if it.tr == tr {
				it.unscheduleLocked()
			}
		})
	}, nil
}

func (it *Item) registerLocked(tr *transport.Transport) (func(), error) {
	p := it.Placement()
	if it.behavior.register != nil {
		return it.behavior.register(it, tr, p)
	}
	ev := transport.Event{Time: p.Time, Duration: p.Duration, Offset: p.Offset}
	b := it.behavior
	if b.onStart != nil {
		ev.OnStart = func(at float64) { b.onStart(it, tr, at) }
	}
	if b.onMidStart != nil {
		ev.OnMidStart = func(at, elapsed float64) { b.onMidStart(it, tr, at, elapsed) }
	}
	if b.onEnd != nil {
		ev.OnEnd = func(at float64) { b.onEnd(it, at) }
	}
	return tr.Schedule(ev)
}

func (it *Item) unscheduleLocked() {
	if it.dispose != nil {
		it.dispose()
	}
	it.dispose = nil
	it.tr = nil
}

// reregister swaps the live registration after a placement edit
func (it *Item) reregister() error {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.tr == nil {
		return nil
	}
	if it.dispose != nil {
		it.dispose()
	}
	dispose, err := it.registerLocked(it.tr)
	if err != nil {
		it.dispose = nil
		return err
	}
	it.dispose = dispose
	return nil
}

// SetTime moves the item
func (it *Item) SetTime(beat float64) (history.Command, error) {
	if !(beat >= 0) {
		return nil, errors.Wrapf(transport.ErrNegativeTime, "time %v", beat)
	}
	return it.time.Update(beat), nil
}

// SetDuration resizes the item
func (it *Item) SetDuration(beats float64) (history.Command, error) {
	if !(beats >= 0) {
		return nil, errors.Wrapf(transport.ErrNegativeDuration, "duration %v", beats)
	}
	return it.duration.Update(beats), nil
}

// SetOffset changes where playback enters the item's content
func (it *Item) SetOffset(beats float64) (history.Command, error) {
	if !(beats >= 0) {
		return nil, errors.Wrapf(transport.ErrNegativeOffset, "offset %v", beats)
	}
	return it.offset.Update(beats), nil
}

func (it *Item) SetRow(row int) history.Command {
	return it.row.Update(row)
}

// OnRemove registers fn to run when Remove deregisters the item. fn may
// return a restore hook, run when the removal is undone.
func (it *Item) OnRemove(fn func() (restore func())) func() {
	it.mu.Lock()
	it.seq++
	id := it.seq
	it.watchers = append(it.watchers, watcher{id: id, fn: fn})
	it.mu.Unlock()

	return func() {
		it.mu.Lock()
		defer it.mu.Unlock()
		for i, w := range it.watchers {
			if w.id == id {
				it.watchers = append(it.watchers[:i], it.watchers[i+1:]...)
				return
			}
		}
	}
}

// Remove deregisters the item and notifies removal watchers. The returned
// command re-schedules on Undo and removes again on Execute. An item that is
// not scheduled yields history.Noop.
func (it *Item) Remove() history.Command {
	it.mu.Lock()
	tr := it.tr
	if tr == nil {
		it.mu.Unlock()
		return history.Noop
	}
	it.unscheduleLocked()
	watchers := append([]watcher(nil), it.watchers...)
	it.mu.Unlock()

	var restores []func()
	for _, w := range watchers {
		if r := w.fn(); r != nil {
			restores = append(restores, r)
		}
	}
	it.log.Debug().Int("watchers", len(watchers)).Msg("removed")

	return history.Func{
		Do: func() { it.Remove() },
		Back: func() {
			if _, err := it.Schedule(tr); err != nil {
				it.log.Warn().Err(err).Msg("restore failed")
				return
			}
			for i := len(restores) - 1; i >= 0; i-- {
				restores[i]()
			}
		},
	}
}
