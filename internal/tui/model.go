package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"hstress/internal/stats"
	"hstress/internal/tui/live"
	"hstress/internal/tui/styles"
)

// Model is the watch screen: a title, the live dashboard and a key hint.
type Model struct {
	Source string
	Live   live.Model

	Quitting bool
}

func NewModel(source string, buckets stats.Buckets, count int64) Model {
	return Model{
		Source: source,
		Live:   live.NewModel(buckets, count),
	}
}

func (m Model) Init() tea.Cmd {
	return m.Live.Init()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.Quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.Live, cmd = m.Live.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.Quitting {
		return ""
	}

	s := strings.Builder{}
	s.WriteString(styles.Title.Render("hstress watch"))
	s.WriteString(" ")
	s.WriteString(styles.Subtle.Render(m.Source))
	s.WriteString("\n\n")
	s.WriteString(m.Live.View())
	s.WriteString("\n")
	s.WriteString(styles.RenderKey("q", "quit"))
	return s.String()
}
