package history

import "sync"

const defaultDepth = 100

// Stack is a bounded undo/redo history
type Stack struct {
	mu    sync.Mutex
	depth int
	undo  []Command
	redo  []Command
}

// NewStack creates a history keeping at most depth commands (<= 0 uses 100)
func NewStack(depth int) *Stack {
	if depth <= 0 {
		depth = defaultDepth
	}
	return &Stack{depth: depth}
}

// Push records a command that has already been applied and clears redo
func (s *Stack) Push(c Command) {
	if c == nil || c == Noop {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.undo = append(s.undo, c)
	if len(s.undo) > s.depth {
		s.undo = s.undo[len(s.undo)-s.depth:]
	}
	s.redo = nil
}

// Do executes c and records it
func (s *Stack) Do(c Command) {
	c.Execute()
	s.Push(c)
}

// Undo reverts the latest command. Returns false if nothing to undo.
func (s *Stack) Undo() bool {
	s.mu.Lock()
	if len(s.undo) == 0 {
		s.mu.Unlock()
		return false
	}
	c := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	s.redo = append(s.redo, c)
	s.mu.Unlock()

	c.Undo()
	return true
}

// Redo re-applies the latest undone command
func (s *Stack) Redo() bool {
	s.mu.Lock()
	if len(s.redo) == 0 {
		s.mu.Unlock()
		return false
	}
	c := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	s.undo = append(s.undo, c)
	s.mu.Unlock()

	c.Execute()
	return true
}

func (s *Stack) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undo) > 0
}

func (s *Stack) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.redo) > 0
}
