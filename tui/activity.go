package tui

import (
	"sync"

	"go-transport/timeline"
)

// Hit is one note seen by an Activity
type Hit struct {
	Note     uint8
	At       float64
	Duration float64
}

// Activity records recent notes for display and passes them on to Next
type Activity struct {
	Next timeline.Instrument

	mu    sync.Mutex
	hits  []Hit
	limit int
	total int
}

// NewActivity keeps the last limit hits
func NewActivity(next timeline.Instrument, limit int) *Activity {
	if limit <= 0 {
		limit = 8
	}
	return &Activity{Next: next, limit: limit}
}

func (a *Activity) TriggerAttackRelease(note uint8, duration, at, velocity float64) {
	a.mu.Lock()
	a.hits = append(a.hits, Hit{Note: note, At: at, Duration: duration})
	if len(a.hits) > a.limit {
		a.hits = a.hits[len(a.hits)-a.limit:]
	}
	a.total++
	a.mu.Unlock()

	if a.Next != nil {
		a.Next.TriggerAttackRelease(note, duration, at, velocity)
	}
}

// Recent returns the retained hits, oldest first
func (a *Activity) Recent() []Hit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Hit(nil), a.hits...)
}

// Total counts every hit since creation
func (a *Activity) Total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

// Release passes an early release on to Next when it supports one
func (a *Activity) Release(note uint8, at float64) {
	if r, ok := a.Next.(timeline.Releaser); ok {
		r.Release(note, at)
	}
}
