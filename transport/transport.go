package transport

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"go-transport/debug"
	"go-transport/tempo"
)

// State of the transport
type State int

const (
	Stopped State = iota
	Started
	Paused
)

func (s State) String() string {
	switch s {
	case Started:
		return "started"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

var (
	ErrNegativeTime     = errors.New("transport: negative time")
	ErrNegativeDuration = errors.New("transport: negative duration")
	ErrNegativeOffset   = errors.New("transport: negative offset")
	ErrNegativePosition = errors.New("transport: negative position")
	ErrNotStarted       = errors.New("transport: not started")
	ErrEmbedCycle       = errors.New("transport: embedding would create a cycle")
)

// Clock provides absolute seconds and periodic ticks. *ticker.Ticker
// satisfies it.
type Clock interface {
	Now() float64
	OnDidTick(fn func(now float64)) func()
}

// Transport advances a tick position against a tempo Context and fires the
// callbacks of its scheduled events.
//
// Tick processing and Start/Pause/Stop/Seek/dispose are serialized. Callbacks
// run outside the state lock, so they may Schedule or Embed on the transport
// that fired them, but must not Start, Pause, Stop, Seek or dispose it.
type Transport struct {
	name      string
	ctx       *tempo.Context
	clock     Clock
	lookahead float64
	log       zerolog.Logger

	serial sync.Mutex // held across a whole tick or state change, callbacks included

	mu          sync.Mutex
	state       State
	ticks       float64 // playhead
	horizon     float64 // events before this tick have been processed
	lastNow     float64 // clock seconds at the playhead
	resume      bool    // paused without seeking since
	driven      bool    // started by a parent embedding
	driver      *scheduled
	events      []*scheduled
	nextID      int
	unsubscribe func()
}

// Option configures a Transport
type Option func(*Transport)

// WithLookahead processes events this many seconds ahead of the playhead, so
// callbacks receive future times the audio host can schedule exactly.
func WithLookahead(seconds float64) Option {
	return func(t *Transport) {
		if seconds > 0 {
			t.lookahead = seconds
		}
	}
}

// WithName labels the transport in logs
func WithName(name string) Option {
	return func(t *Transport) { t.name = name }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(t *Transport) { t.log = l }
}

// New creates a stopped transport at position 0
func New(ctx *tempo.Context, clock Clock, opts ...Option) *Transport {
	t := &Transport{
		name:  "transport",
		ctx:   ctx,
		clock: clock,
	}
	t.log = debug.Logger("transport")
	for _, opt := range opts {
		opt(t)
	}
	t.log = t.log.With().Str("transport", t.name).Logger()
	return t
}

// Context returns the tempo context shared by this transport
func (t *Transport) Context() *tempo.Context { return t.ctx }

// Name returns the label given at construction
func (t *Transport) Name() string { return t.name }

// State returns the current state
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Ticks returns the playhead position in ticks
func (t *Transport) Ticks() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticks
}

// Beats returns the playhead position in beats
func (t *Transport) Beats() float64 {
	return t.ctx.TicksToBeats(t.Ticks())
}

// Seconds returns the playhead position in seconds at the current tempo
func (t *Transport) Seconds() float64 {
	return t.ctx.TicksToSeconds(t.Ticks())
}

// Position formats the playhead as bar:beat:tick
func (t *Transport) Position() string {
	return tempo.BarsBeatsTicks(t.Ticks(), t.ctx.PPQ())
}

func (t *Transport) now() float64 {
	if t.clock != nil {
		return t.clock.Now()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastNow
}

// Start resumes from a pause, or starts from the current position (0 after
// Stop, or wherever Seek put it).
func (t *Transport) Start() {
	t.serial.Lock()
	defer t.serial.Unlock()

	at := t.now()
	t.mu.Lock()
	switch {
	case t.state == Started:
		t.mu.Unlock()
		return
	case t.state == Paused && t.resume:
		t.state = Started
		t.lastNow = at
		t.subscribe()
		t.mu.Unlock()
		t.log.Debug().Float64("ticks", t.Ticks()).Msg("resumed")
		return
	}
	acts := t.begin(at, t.ticks, false)
	t.mu.Unlock()
	t.log.Debug().Float64("beat", t.ctx.TicksToBeats(t.Ticks())).Msg("started")
	run(acts)
}

// StartFrom starts playback at beat. Events spanning beat receive
// OnMidStart; an event starting exactly at beat receives OnStart on the
// first tick.
func (t *Transport) StartFrom(beat float64) error {
	if beat < 0 {
		return errors.Wrapf(ErrNegativePosition, "beat %v", beat)
	}
	t.serial.Lock()
	defer t.serial.Unlock()

	at := t.now()
	t.mu.Lock()
	acts := t.flush(at)
	acts = append(acts, t.begin(at, t.ctx.BeatsToTicks(beat), false)...)
	t.mu.Unlock()
	t.log.Debug().Float64("beat", beat).Msg("started")
	run(acts)
	return nil
}

// Pause freezes the playhead. Events already sounding keep their activation
// and end normally after resume. Events the lookahead started ahead of the
// playhead are ended and fire again on resume.
func (t *Transport) Pause() error {
	t.serial.Lock()
	defer t.serial.Unlock()

	at := t.now()
	t.mu.Lock()
	if t.state != Started {
		state := t.state
		t.mu.Unlock()
		return errors.Wrapf(ErrNotStarted, "pause while %s", state)
	}
	t.state = Paused
	t.resume = true
	t.unsubscribeLocked()
	acts, kids := t.rewindLocked(at, t.ticks)
	t.mu.Unlock()

	t.log.Debug().Float64("ticks", t.Ticks()).Int("rewound", len(acts)).Msg("paused")
	for _, k := range kids {
		k.child.rewind(k.owner, at, k.pos)
	}
	run(acts)
	return nil
}

// placement is an active child, the registration driving it and the local
// tick it is rewound to
type placement struct {
	child *Transport
	owner *scheduled
	pos   float64
}

// rewindLocked pulls the horizon back to pos. Events processed ahead of pos
// become idle again, with a synthetic end if they were sounding. Active
// children are returned so the caller can rewind them once mu is released.
func (t *Transport) rewindLocked(at, pos float64) ([]action, []placement) {
	var acts []action
	var kids []placement
	for _, s := range t.events {
		switch {
		case s.phase == phaseIdle:
		case s.start >= pos:
			if s.phase == phaseActive {
				acts = append(acts, s.endAction(at, syntheticTick))
			}
			s.phase = phaseIdle
		case s.phase == phaseActive && s.child != nil:
			kids = append(kids, placement{child: s.child, owner: s, pos: s.local(pos)})
		}
	}
	t.horizon = pos
	return acts, kids
}

// Stop ends every active event with a synthetic OnEnd before returning and
// rewinds to 0.
func (t *Transport) Stop() {
	t.serial.Lock()
	defer t.serial.Unlock()
	t.halt(t.now())
}

// Seek moves the position. While started it restarts playback at beat.
func (t *Transport) Seek(beat float64) error {
	if beat < 0 {
		return errors.Wrapf(ErrNegativePosition, "beat %v", beat)
	}
	if t.State() == Started {
		return t.StartFrom(beat)
	}

	t.serial.Lock()
	defer t.serial.Unlock()
	at := t.now()
	t.mu.Lock()
	acts := t.flush(at)
	t.ticks = t.ctx.BeatsToTicks(beat)
	t.horizon = t.ticks
	t.resume = false
	t.resetPhases()
	t.mu.Unlock()
	run(acts)
	return nil
}

// halt stops without taking the serial lock (caller holds it)
func (t *Transport) halt(at float64) {
	t.mu.Lock()
	if t.state == Stopped {
		t.mu.Unlock()
		return
	}
	acts := t.flush(at)
	t.state = Stopped
	t.ticks = 0
	t.horizon = 0
	t.resume = false
	t.driven = false
	t.driver = nil
	t.resetPhases()
	t.unsubscribeLocked()
	t.mu.Unlock()

	t.log.Debug().Int("flushed", len(acts)).Msg("stopped")
	run(acts)
}

// begin enters Started at pos. Caller holds mu.
func (t *Transport) begin(at, pos float64, driven bool) []action {
	t.resetPhases()
	t.state = Started
	t.ticks = pos
	t.horizon = pos
	t.lastNow = at
	t.resume = false
	t.driven = driven

	var acts []action
	for _, s := range t.events {
		if s.start < pos && pos < s.end {
			s.phase = phaseActive
			acts = append(acts, s.midStartAction(t, at, pos))
		}
	}
	if !driven {
		t.subscribe()
	}
	return acts
}

// flush ends all active events at. Caller holds mu.
func (t *Transport) flush(at float64) []action {
	var acts []action
	for _, s := range t.events {
		if s.phase == phaseActive {
			s.phase = phaseDone
			acts = append(acts, s.endAction(at, syntheticTick))
		}
	}
	return acts
}

func (t *Transport) resetPhases() {
	for _, s := range t.events {
		s.phase = phaseIdle
	}
}

// subscribe must be called with mu held
func (t *Transport) subscribe() {
	if t.clock == nil || t.unsubscribe != nil {
		return
	}
	t.unsubscribe = t.clock.OnDidTick(t.onTick)
}

func (t *Transport) unsubscribeLocked() {
	if t.unsubscribe != nil {
		t.unsubscribe()
		t.unsubscribe = nil
	}
}

// onTick advances the playhead to now and fires everything up to the
// lookahead horizon.
func (t *Transport) onTick(now float64) {
	t.serial.Lock()
	defer t.serial.Unlock()

	t.mu.Lock()
	if t.state != Started || t.driven {
		t.mu.Unlock()
		return
	}
	if dt := now - t.lastNow; dt > 0 {
		t.ticks += t.ctx.SecondsToTicks(dt)
	}
	t.lastNow = now
	playhead := t.ticks
	to := playhead + t.ctx.SecondsToTicks(t.lookahead)
	// Events between the old horizon and the playhead get past timestamps
	if late := playhead - t.horizon; late > 0 && debug.Limited("transport-late", 1) {
		t.log.Warn().Float64("seconds", t.ctx.TicksToSeconds(late)).Msg("tick later than lookahead")
	}

	ctx := t.ctx
	secondsAt := func(tick float64) float64 {
		return now + ctx.TicksToSeconds(tick-playhead)
	}
	acts := t.process(to, now, secondsAt)
	t.mu.Unlock()

	if len(acts) > 0 {
		debug.LogEvery(100, "transport", "%s window fired %d callbacks", t.name, len(acts))
	}
	run(acts)
}

// action is one deferred callback invocation, ordered by tick, then ends
// before starts, then registration path. Actions of embedded children carry
// expand, which collects the child's own actions.
type action struct {
	tick   float64
	start  bool
	path   []int // registration ids from the outermost transport down
	fn     func()
	expand func() []action
}

func (a action) before(b action) bool {
	if a.tick != b.tick {
		return a.tick < b.tick
	}
	if a.start != b.start {
		return !a.start
	}
	for i := 0; i < len(a.path) && i < len(b.path); i++ {
		if a.path[i] != b.path[i] {
			return a.path[i] < b.path[i]
		}
	}
	return len(a.path) < len(b.path)
}

func sortActions(acts []action) {
	sort.SliceStable(acts, func(i, j int) bool { return acts[i].before(acts[j]) })
}

// expand replaces child actions with the callbacks they collect, visiting
// them in order so earlier placements drive a shared child first
func expand(acts []action) []action {
	out := make([]action, 0, len(acts))
	for _, a := range acts {
		if a.expand == nil {
			out = append(out, a)
			continue
		}
		more := a.expand()
		sortActions(more)
		out = append(out, expand(more)...)
	}
	return out
}

func run(acts []action) {
	sortActions(acts)
	acts = expand(acts)
	sortActions(acts)
	for _, a := range acts {
		if a.fn != nil {
			a.fn()
		}
	}
}
