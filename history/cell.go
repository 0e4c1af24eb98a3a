package history

import "sync"

// Cell is an observable value. Set notifies subscribers directly; Update
// does the same and hands back a Command for the history sink.
type Cell[T comparable] struct {
	mu    sync.Mutex
	value T
	subs  []cellSub[T]
	seq   int
}

type cellSub[T comparable] struct {
	id int
	fn func(old, new T)
}

// Value is the read side of a Cell, handed out where writes must go through
// an owner that validates them
type Value[T comparable] interface {
	Get() T
	Subscribe(fn func(old, new T)) func()
}

// NewCell creates a cell holding v
func NewCell[T comparable](v T) *Cell[T] {
	return &Cell[T]{value: v}
}

func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set stores v and notifies subscribers if it changed
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	old := c.value
	if old == v {
		c.mu.Unlock()
		return
	}
	c.value = v
	subs := append([]cellSub[T](nil), c.subs...)
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(old, v)
	}
}

// Update sets v and returns a command restoring the previous value on Undo
func (c *Cell[T]) Update(v T) Command {
	old := c.Get()
	if old == v {
		return Noop
	}
	c.Set(v)
	return Func{
		Do:   func() { c.Set(v) },
		Back: func() { c.Set(old) },
	}
}

// Subscribe calls fn after every change
func (c *Cell[T]) Subscribe(fn func(old, new T)) func() {
	c.mu.Lock()
	c.seq++
	id := c.seq
	c.subs = append(c.subs, cellSub[T]{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				return
			}
		}
	}
}
