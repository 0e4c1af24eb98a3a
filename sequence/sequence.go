package sequence

import (
	"sync"

	"go-transport/history"
	"go-transport/transport"
)

// Item is anything a Sequence can keep registered on its transport.
// *timeline.Item satisfies it.
type Item interface {
	comparable
	Schedule(tr *transport.Transport) (func(), error)
	Remove() history.Command
	OnRemove(fn func() (restore func())) (unwatch func())
}

// ChangeKind tells subscribers what happened
type ChangeKind int

const (
	Added ChangeKind = iota
	Removed
)

func (k ChangeKind) String() string {
	if k == Removed {
		return "removed"
	}
	return "added"
}

// Change is delivered to subscribers after membership changes
type Change[T Item] struct {
	Kind  ChangeKind
	Item  T
	Index int
}

type entry[T Item] struct {
	item    T
	unwatch func()
}

// Sequence is an ordered collection whose members are exactly the items
// registered through it on one transport. Items leave by calling their own
// Remove; undoing the removal puts them back at the same index.
type Sequence[T Item] struct {
	tr *transport.Transport

	mu      sync.Mutex
	entries []entry[T]
	subs    []subscriber[T]
	seq     int
}

type subscriber[T Item] struct {
	id int
	fn func(Change[T])
}

// New creates an empty sequence bound to tr
func New[T Item](tr *transport.Transport) *Sequence[T] {
	return &Sequence[T]{tr: tr}
}

// Transport returns the transport members are registered on
func (s *Sequence[T]) Transport() *transport.Transport { return s.tr }

// Push schedules item and appends it. A scheduling error leaves the
// sequence unchanged.
func (s *Sequence[T]) Push(item T) error {
	if _, err := item.Schedule(s.tr); err != nil {
		return err
	}
	s.insert(-1, item)
	return nil
}

func (s *Sequence[T]) insert(idx int, item T) {
	e := entry[T]{item: item}
	e.unwatch = item.OnRemove(func() func() {
		return s.removed(item)
	})

	s.mu.Lock()
	if idx < 0 || idx > len(s.entries) {
		idx = len(s.entries)
	}
	s.entries = append(s.entries, entry[T]{})
	copy(s.entries[idx+1:], s.entries[idx:])
	s.entries[idx] = e
	s.mu.Unlock()

	s.notify(Change[T]{Kind: Added, Item: item, Index: idx})
}

// removed splices item out and returns the hook that reinserts it
func (s *Sequence[T]) removed(item T) func() {
	s.mu.Lock()
	idx := s.indexLocked(item)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	e := s.entries[idx]
	s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
	s.mu.Unlock()

	e.unwatch()
	s.notify(Change[T]{Kind: Removed, Item: item, Index: idx})
	return func() { s.insert(idx, item) }
}

func (s *Sequence[T]) indexLocked(item T) int {
	for i, e := range s.entries {
		if e.item == item {
			return i
		}
	}
	return -1
}

// Items returns a copy of the members in order
func (s *Sequence[T]) Items() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]T, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.item
	}
	return out
}

func (s *Sequence[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// At returns the i-th member
func (s *Sequence[T]) At(i int) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[i].item
}

// Index returns the position of item or -1
func (s *Sequence[T]) Index(item T) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(item)
}

// Clear removes every member and returns one command undoing all of it
func (s *Sequence[T]) Clear() history.Command {
	items := s.Items()
	var batch history.Batch
	for i := len(items) - 1; i >= 0; i-- {
		if c := items[i].Remove(); c != history.Noop {
			batch = append(batch, c)
		}
	}
	if len(batch) == 0 {
		return history.Noop
	}
	return batch
}

// Subscribe calls fn after every membership change
func (s *Sequence[T]) Subscribe(fn func(Change[T])) func() {
	s.mu.Lock()
	s.seq++
	id := s.seq
	s.subs = append(s.subs, subscriber[T]{id: id, fn: fn})
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Sequence[T]) notify(c Change[T]) {
	s.mu.Lock()
	subs := append([]subscriber[T](nil), s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(c)
	}
}
