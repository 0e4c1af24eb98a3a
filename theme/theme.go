package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"go-transport/timeline"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	Empty    rune // · nothing scheduled
	Span     rune // ─ inside an item
	Onset    rune // ■ item start
	Sounding rune // ● item under the playhead
	Playhead rune // ▶ playhead over empty space
	Embed    rune // ▤ pattern placement
}

func New(palette *Palette) *Theme {
	if palette == nil {
		palette = DefaultPalette()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			Empty:    '·',
			Span:     '─',
			Onset:    '■',
			Sounding: '●',
			Playhead: '▶',
			Embed:    '▤',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0
	RoleMuted   = 0.2
	RoleFG      = 0.4
	RoleAccent  = 0.5
	RoleActive  = 0.7
	RoleWarning = 0.8
	RoleSuccess = 1.0
)

func (t *Theme) BG() lipgloss.Color      { return t.Color(RoleBG) }
func (t *Theme) FG() lipgloss.Color      { return t.Color(RoleFG) }
func (t *Theme) Accent() lipgloss.Color  { return t.Color(RoleAccent) }
func (t *Theme) Muted() lipgloss.Color   { return t.Color(RoleMuted) }
func (t *Theme) Active() lipgloss.Color  { return t.Color(RoleActive) }
func (t *Theme) Warning() lipgloss.Color { return t.Color(RoleWarning) }
func (t *Theme) Success() lipgloss.Color { return t.Color(RoleSuccess) }

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return Hex(t.Palette.Lookup(norm))
}

// KindColor picks a distinct palette position per item kind
func (t *Theme) KindColor(k timeline.Kind) lipgloss.Color {
	switch k {
	case timeline.KindPattern:
		return t.Color(0.55)
	case timeline.KindSample:
		return t.Color(0.75)
	case timeline.KindAutomation:
		return t.Color(0.9)
	default:
		return t.Color(0.65)
	}
}

// Hex formats c as a lipgloss color
func Hex(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
