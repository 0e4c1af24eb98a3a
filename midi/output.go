package midi

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	gomidi "gitlab.com/gomidi/midi/v2"

	"go-transport/debug"
)

// Send writes one message to a port. gomidi.SendTo returns one.
type Send func(msg gomidi.Message) error

// Stopper is a pending timer. *time.Timer satisfies it.
type Stopper interface {
	Stop() bool
}

// AfterFunc runs f after d. time.AfterFunc is the default.
type AfterFunc func(d time.Duration, f func()) Stopper

func stdAfter(d time.Duration, f func()) Stopper { return time.AfterFunc(d, f) }

// Option configures an output
type Option func(*output)

// WithAfterFunc replaces the timer used to delay messages
func WithAfterFunc(f AfterFunc) Option {
	return func(o *output) { o.after = f }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(o *output) { o.log = l }
}

// output delays channel messages until the absolute second they were
// scheduled for, measured on the same clock the transport uses
type output struct {
	send    Send
	channel uint8
	now     func() float64
	after   AfterFunc
	log     zerolog.Logger

	mu      sync.Mutex
	pending map[int]Stopper
	seq     int
	closed  bool
}

func newOutput(send Send, channel uint8, now func() float64, opts []Option) *output {
	o := &output{
		send:    send,
		channel: channel & 0x0F,
		now:     now,
		after:   stdAfter,
		log:     debug.Logger("midi"),
		pending: make(map[int]Stopper),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// at runs f at the absolute second when. Late requests run immediately.
// The returned id cancels it through stop; 0 means the output is closed.
func (o *output) at(when float64, f func()) int {
	delay := when - o.now()
	if delay < 0 {
		delay = 0
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return 0
	}
	o.seq++
	id := o.seq
	o.pending[id] = o.after(time.Duration(delay*float64(time.Second)), func() {
		o.mu.Lock()
		_, live := o.pending[id]
		delete(o.pending, id)
		o.mu.Unlock()
		if live {
			f()
		}
	})
	return id
}

// stop cancels one pending message and reports whether it had not run yet
func (o *output) stop(id int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.pending[id]
	if !ok {
		return false
	}
	t.Stop()
	delete(o.pending, id)
	return true
}

func (o *output) write(e Event) {
	e.Channel = o.channel
	if err := o.send(e.Message()); err != nil && debug.Limited("midi-send", 1) {
		o.log.Warn().Err(err).Uint8("type", e.Type).Msg("send failed")
	}
}

// cancel drops every pending message
func (o *output) cancel() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := len(o.pending)
	for id, t := range o.pending {
		t.Stop()
		delete(o.pending, id)
	}
	return n
}

func (o *output) close() {
	o.cancel()
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}

// Pending returns the number of messages waiting to be sent
func (o *output) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}
