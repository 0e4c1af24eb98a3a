package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-transport/history"
	"go-transport/sequence"
	"go-transport/theme"
	"go-transport/timeline"
	"go-transport/transport"
	"go-transport/widgets"
)

// Track is one row of the arrangement
type Track struct {
	Name  string
	Items *sequence.Sequence[*timeline.Item]
}

// pageBeats is the span shown across a lane
const pageBeats = 16

type Model struct {
	Transport *transport.Transport
	Tracks    []Track
	History   *history.Stack
	Theme     *theme.Theme
	Activity  *Activity

	// Degraded reports the clock running without a timer
	Degraded func() bool

	fps      int
	width    int
	selected int
	status   string
	quitting bool
}

type frameMsg time.Time

func NewModel(tr *transport.Transport, tracks []Track, hist *history.Stack, th *theme.Theme, fps int) Model {
	if fps <= 0 {
		fps = 30
	}
	return Model{
		Transport: tr,
		Tracks:    tracks,
		History:   hist,
		Theme:     th,
		fps:       fps,
		width:     64,
	}
}

func (m Model) frame() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.fps), func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return m.frame()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case tea.WindowSizeMsg:
		m.width = max(msg.Width-16, 16)

	case frameMsg:
		return m, m.frame()
	}
	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	tr := m.Transport
	m.status = ""
	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		tr.Stop()
		return m, tea.Quit

	case " ", "p":
		if tr.State() == transport.Started {
			if err := tr.Pause(); err != nil {
				m.status = err.Error()
			}
		} else {
			tr.Start()
		}

	case "s":
		tr.Stop()

	case "left", "h":
		m.seek(-4)

	case "right", "l":
		m.seek(4)

	case "+", "=":
		m.nudgeTempo(5)

	case "-", "_":
		m.nudgeTempo(-5)

	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}

	case "down", "j":
		if m.selected < len(m.Tracks)-1 {
			m.selected++
		}

	case "d", "backspace":
		m.deleteLast()

	case "c":
		if len(m.Tracks) > 0 {
			m.History.Push(m.Tracks[m.selected].Items.Clear())
			m.status = "cleared " + m.Tracks[m.selected].Name
		}

	case "u":
		if !m.History.Undo() {
			m.status = "nothing to undo"
		}

	case "r", "ctrl+r":
		if !m.History.Redo() {
			m.status = "nothing to redo"
		}
	}
	return m, nil
}

func (m *Model) seek(beats float64) {
	pos := m.Transport.Beats() + beats
	if pos < 0 {
		pos = 0
	}
	if err := m.Transport.Seek(pos); err != nil {
		m.status = err.Error()
	}
}

func (m *Model) nudgeTempo(delta float64) {
	ctx := m.Transport.Context()
	if err := ctx.SetBPM(ctx.BPM() + delta); err != nil {
		m.status = err.Error()
	}
}

func (m *Model) deleteLast() {
	if len(m.Tracks) == 0 {
		return
	}
	t := m.Tracks[m.selected]
	n := t.Items.Len()
	if n == 0 {
		m.status = t.Name + " is empty"
		return
	}
	m.History.Push(t.Items.At(n - 1).Remove())
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	th := m.Theme
	tr := m.Transport

	headerStyle := lipgloss.NewStyle().Foreground(th.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(th.Muted())
	warnStyle := lipgloss.NewStyle().Foreground(th.Warning())
	selStyle := lipgloss.NewStyle().Foreground(th.FG()).Bold(true)

	state := strings.ToUpper(tr.State().String())
	header := headerStyle.Render(fmt.Sprintf("go-transport  %s  %3.0fbpm  %s",
		state, tr.Context().BPM(), tr.Position()))
	if m.Degraded != nil && m.Degraded() {
		header += "  " + warnStyle.Render("NO TIMER")
	}

	playhead := tr.Beats()
	from, to := widgets.Window(playhead, pageBeats)

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	for i, t := range m.Tracks {
		name := fmt.Sprintf("%-10s", t.Name)
		if i == m.selected {
			name = selStyle.Render(name)
		} else {
			name = dimStyle.Render(name)
		}
		cells := widgets.LaneCells(widgets.SpansOf(t.Items.Items()), playhead, from, to, m.width, th.Symbols)
		out.WriteString(fmt.Sprintf("%s %s %s\n", name, widgets.RenderLane(cells, th), dimStyle.Render(fmt.Sprintf("%d", t.Items.Len()))))
	}

	if m.Activity != nil {
		out.WriteString("\n")
		out.WriteString(dimStyle.Render(fmt.Sprintf("notes %d  %s", m.Activity.Total(), recentNotes(m.Activity.Recent()))))
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(dimStyle.Render("space:play/pause  s:stop  h/l:seek  +/-:tempo  j/k:track  d:delete  c:clear  u/r:undo/redo  q:quit"))
	if m.status != "" {
		out.WriteString("\n")
		out.WriteString(warnStyle.Render(m.status))
	}
	return out.String()
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName formats a MIDI note number, 60 is C4
func NoteName(n uint8) string {
	return fmt.Sprintf("%s%d", noteNames[n%12], int(n)/12-1)
}

func recentNotes(hits []Hit) string {
	names := make([]string, len(hits))
	for i, h := range hits {
		names[i] = NoteName(h.Note)
	}
	return strings.Join(names, " ")
}
