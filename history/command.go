package history

// Command is one undoable edit
type Command interface {
	Execute()
	Undo()
}

// Func adapts a pair of closures to Command
type Func struct {
	Do   func()
	Back func()
}

func (f Func) Execute() {
	if f.Do != nil {
		f.Do()
	}
}

func (f Func) Undo() {
	if f.Back != nil {
		f.Back()
	}
}

type noop struct{}

func (noop) Execute() {}
func (noop) Undo()    {}

// Noop is returned for edits that changed nothing
var Noop Command = noop{}

// Batch executes commands in order and undoes them in reverse
type Batch []Command

func (b Batch) Execute() {
	for _, c := range b {
		c.Execute()
	}
}

func (b Batch) Undo() {
	for i := len(b) - 1; i >= 0; i-- {
		b[i].Undo()
	}
}

// Sink receives commands that were already applied
type Sink interface {
	Push(c Command)
}
