package ticker

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"go-transport/debug"
)

// DefaultInterval is the polling cadence used by Default()
const DefaultInterval = 30 * time.Millisecond

// Timer is the periodic wake-up source behind a Ticker
type Timer interface {
	C() <-chan time.Time
	Stop()
}

// TimerFunc creates a Timer firing every d. An error puts the Ticker in
// degraded mode.
type TimerFunc func(d time.Duration) (Timer, error)

type stdTimer struct{ t *time.Ticker }

func (s stdTimer) C() <-chan time.Time { return s.t.C }
func (s stdTimer) Stop()               { s.t.Stop() }

// NewStdTimer wraps time.NewTicker
func NewStdTimer(d time.Duration) (Timer, error) {
	return stdTimer{t: time.NewTicker(d)}, nil
}

type listener struct {
	id int
	fn func(now float64)
}

// Ticker calls its listeners at a fixed wall clock cadence from its own
// goroutine, independent of UI rendering.
type Ticker struct {
	interval time.Duration
	newTimer TimerFunc
	clock    func() time.Time
	epoch    time.Time
	log      zerolog.Logger

	mu        sync.Mutex
	listeners []listener
	nextID    int
	running   bool
	degraded  bool
	stopChan  chan struct{}
}

// Option configures a Ticker
type Option func(*Ticker)

// WithTimer replaces the timer factory
func WithTimer(f TimerFunc) Option {
	return func(t *Ticker) { t.newTimer = f }
}

// WithClock replaces the wall clock
func WithClock(clock func() time.Time) Option {
	return func(t *Ticker) { t.clock = clock }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(t *Ticker) { t.log = l }
}

// New creates a stopped ticker; it starts with the first listener
func New(interval time.Duration, opts ...Option) *Ticker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	t := &Ticker{
		interval: interval,
		newTimer: NewStdTimer,
		clock:    time.Now,
		log:      debug.Logger("ticker"),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.epoch = t.clock()
	return t
}

var (
	defaultOnce   sync.Once
	defaultTicker *Ticker
)

// Default returns the process-wide ticker
func Default() *Ticker {
	defaultOnce.Do(func() {
		defaultTicker = New(DefaultInterval)
	})
	return defaultTicker
}

// Now returns seconds since the ticker was created
func (t *Ticker) Now() float64 {
	return t.clock().Sub(t.epoch).Seconds()
}

// Interval returns the tick cadence
func (t *Ticker) Interval() time.Duration {
	return t.interval
}

// Degraded reports whether the timer could not be started. A degraded
// ticker never fires, so positions go stale instead of crashing.
func (t *Ticker) Degraded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.degraded
}

// OnDidTick registers fn and returns a function removing it
func (t *Ticker) OnDidTick(fn func(now float64)) func() {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.listeners = append(t.listeners, listener{id: id, fn: fn})
	t.ensureRunning()
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { t.remove(id) })
	}
}

func (t *Ticker) remove(id int) {
	t.mu.Lock()
	for i, l := range t.listeners {
		if l.id == id {
			t.listeners = append(t.listeners[:i], t.listeners[i+1:]...)
			break
		}
	}
	if len(t.listeners) == 0 && t.running {
		close(t.stopChan)
		t.running = false
	}
	t.mu.Unlock()
}

// ensureRunning must be called with mu held
func (t *Ticker) ensureRunning() {
	if t.running || t.degraded {
		return
	}
	timer, err := t.newTimer(t.interval)
	if err != nil || timer == nil {
		t.degraded = true
		t.log.Warn().Err(err).Msg("timer unavailable, ticking disabled")
		return
	}
	t.running = true
	t.stopChan = make(chan struct{})
	go t.loop(timer, t.stopChan)
}

// loop never waits on its callers, so listeners may dispose themselves
func (t *Ticker) loop(timer Timer, stop chan struct{}) {
	defer timer.Stop()
	for {
		select {
		case <-stop:
			return
		case <-timer.C():
			t.Tick()
		}
	}
}

// Tick invokes every listener once with the current time. The timer
// goroutine calls it; offline renderers and tests may call it directly.
func (t *Ticker) Tick() {
	t.mu.Lock()
	fns := make([]func(float64), len(t.listeners))
	for i, l := range t.listeners {
		fns[i] = l.fn
	}
	t.mu.Unlock()

	now := t.Now()
	start := time.Now()
	for _, fn := range fns {
		fn(now)
	}
	if elapsed := time.Since(start); elapsed > t.interval && debug.Limited("ticker-overrun", 1) {
		t.log.Warn().Dur("elapsed", elapsed).Dur("interval", t.interval).Msg("tick listeners overran cadence")
	}
}

// Close stops the timer goroutine and drops all listeners
func (t *Ticker) Close() {
	t.mu.Lock()
	t.listeners = nil
	if t.running {
		close(t.stopChan)
		t.running = false
	}
	t.mu.Unlock()
}
