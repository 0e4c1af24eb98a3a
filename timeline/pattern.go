package timeline

import (
	"go-transport/sequence"
	"go-transport/tempo"
	"go-transport/transport"
)

// Pattern is a reusable block of notes with its own transport. Placing it on
// a playlist embeds that transport.
type Pattern struct {
	name   string
	length float64
	tr     *transport.Transport
	notes  *sequence.Sequence[*Item]
}

// NewPattern creates an empty pattern of length beats sharing ctx and clock
// with the rest of the project
func NewPattern(name string, length float64, ctx *tempo.Context, clock transport.Clock) *Pattern {
	tr := transport.New(ctx, clock, transport.WithName(name))
	return &Pattern{
		name:   name,
		length: length,
		tr:     tr,
		notes:  sequence.New[*Item](tr),
	}
}

func (p *Pattern) Name() string { return p.name }

// Length is the natural placement duration in beats
func (p *Pattern) Length() float64 { return p.length }

// Transport returns the pattern's own transport
func (p *Pattern) Transport() *transport.Transport { return p.tr }

// Notes returns the sequence holding the pattern's notes
func (p *Pattern) Notes() *sequence.Sequence[*Item] { return p.notes }

// AddNote creates a note on inst and pushes it into the pattern
func (p *Pattern) AddNote(spec NoteSpec, inst Instrument) (*Item, error) {
	it, err := NewNote(spec, inst)
	if err != nil {
		return nil, err
	}
	if err := p.notes.Push(it); err != nil {
		return nil, err
	}
	return it, nil
}

// Place creates a placement of the whole pattern at beat on row
func (p *Pattern) Place(row int, beat float64) (*Item, error) {
	return NewPatternItem(Placement{Row: row, Time: beat, Duration: p.length}, p)
}
