package widgets

import (
	"testing"

	"go-transport/theme"
	"go-transport/timeline"
)

func TestLaneCells(t *testing.T) {
	sym := theme.New(nil).Symbols
	cases := []struct {
		name     string
		spans    []Span
		playhead float64
		want     string
	}{
		{"empty", nil, -1, "········"},
		{"note under playhead", []Span{{Start: 0, End: 2}}, 0.5, "●─······"},
		{"instant", []Span{{Start: 4, End: 4}}, 2, "··▶·■···"},
		{"clipped start", []Span{{Start: -2, End: 1}}, -1, "─·······"},
		{"pattern past the edge", []Span{{Start: 6, End: 10, Kind: timeline.KindPattern}}, -1, "······▤─"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Plain(LaneCells(c.spans, c.playhead, 0, 8, 8, sym))
			if got != c.want {
				t.Fatalf("lane = %q, want %q", got, c.want)
			}
		})
	}
}

func TestWindow(t *testing.T) {
	from, to := Window(17.5, 16)
	if from != 16 || to != 32 {
		t.Fatalf("window = %v..%v", from, to)
	}
}

func TestSpansOf(t *testing.T) {
	note, err := timeline.NewNote(timeline.NoteSpec{Placement: timeline.Placement{Time: 1, Duration: 0.5}}, nopInstrument{})
	if err != nil {
		t.Fatal(err)
	}
	spans := SpansOf([]*timeline.Item{note})
	if len(spans) != 1 || spans[0].Start != 1 || spans[0].End != 1.5 || spans[0].Kind != timeline.KindNote {
		t.Fatalf("spans = %+v", spans)
	}
}

type nopInstrument struct{}

func (nopInstrument) TriggerAttackRelease(uint8, float64, float64, float64) {}
