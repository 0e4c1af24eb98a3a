package widgets

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-transport/theme"
	"go-transport/timeline"
)

// Span is one item drawn on a lane, in beats
type Span struct {
	Start float64
	End   float64
	Kind  timeline.Kind
}

// SpansOf converts items to spans. Instant items cover one cell.
func SpansOf(items []*timeline.Item) []Span {
	spans := make([]Span, 0, len(items))
	for _, it := range items {
		p := it.Placement()
		spans = append(spans, Span{Start: p.Time, End: p.Time + p.Duration, Kind: it.Kind})
	}
	return spans
}

// Window returns the page of width beats containing playhead
func Window(playhead, width float64) (from, to float64) {
	from = math.Floor(playhead/width) * width
	return from, from + width
}

// Cell is one character of a lane
type Cell struct {
	Rune rune
	Kind timeline.Kind
	Set  bool // covered by a span
}

// LaneCells lays spans over cols cells covering [from, to) beats and marks
// the playhead column
func LaneCells(spans []Span, playhead, from, to float64, cols int, sym theme.Symbols) []Cell {
	cells := make([]Cell, cols)
	for i := range cells {
		cells[i].Rune = sym.Empty
	}
	if cols == 0 || !(to > from) {
		return cells
	}
	per := (to - from) / float64(cols)
	col := func(beat float64) int {
		return int(math.Floor((beat - from) / per))
	}

	for _, s := range spans {
		if s.End < from || s.Start >= to {
			continue
		}
		first := max(col(s.Start), 0)
		last := col(s.End)
		if s.End > s.Start && last > first && float64(last)*per+from == s.End {
			last--
		}
		last = min(max(last, first), cols-1)
		for c := first; c <= last; c++ {
			r := sym.Span
			if c == col(s.Start) {
				r = sym.Onset
				if s.Kind == timeline.KindPattern {
					r = sym.Embed
				}
			}
			cells[c] = Cell{Rune: r, Kind: s.Kind, Set: true}
		}
	}

	if playhead >= from && playhead < to {
		c := min(col(playhead), cols-1)
		if cells[c].Set {
			cells[c].Rune = sym.Sounding
		} else {
			cells[c].Rune = sym.Playhead
		}
	}
	return cells
}

// RenderLane colors cells by item kind
func RenderLane(cells []Cell, th *theme.Theme) string {
	var out strings.Builder
	empty := lipgloss.NewStyle().Foreground(th.Muted())
	for _, c := range cells {
		style := empty
		if c.Set {
			style = lipgloss.NewStyle().Foreground(th.KindColor(c.Kind))
		}
		out.WriteString(style.Render(string(c.Rune)))
	}
	return out.String()
}

// Plain renders cells without color
func Plain(cells []Cell) string {
	rs := make([]rune, len(cells))
	for i, c := range cells {
		rs[i] = c.Rune
	}
	return string(rs)
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}
