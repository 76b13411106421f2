package live

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"hstress/internal/report"
	"hstress/internal/stats"
	"hstress/internal/tui/components"
	"hstress/internal/tui/styles"
)

// LineMsg carries one merged interval.
type LineMsg report.MergedLine

// EndMsg reports that the input stream ended, with the read error if any.
type EndMsg struct {
	Err error
}

// Model renders the merged timeline as it arrives.
type Model struct {
	Labels []string
	Count  int64 // expected requests, zero or negative when unknown

	Totals    stats.Counters
	Intervals int
	LastTs    int64
	LastRate  int64
	PeakRate  int64
	Skipped   int
	Done      bool
	Err       error

	RateLine components.Sparkline
	FailLine components.Sparkline
	Progress progress.Model
	Bar      progress.Model

	Width  int
	Height int
}

func NewModel(buckets stats.Buckets, count int64) Model {
	return Model{
		Labels:   buckets.Labels(),
		Count:    count,
		RateLine: components.NewSparkline(40, "Rate (hz)", styles.Active),
		FailLine: components.NewSparkline(40, "Errors + timeouts", styles.Warn),
		Progress: progress.New(progress.WithDefaultGradient()),
		Bar:      progress.New(progress.WithSolidFill(string(styles.ColorSuccess)), progress.WithoutPercentage()),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) label(i int) string {
	if len(m.Labels) == len(m.Totals.Buckets) {
		return m.Labels[i]
	}
	return "#" + strconv.Itoa(i)
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LineMsg:
		c := msg.Counters
		if m.Totals.Buckets == nil {
			m.Totals = *stats.NewCounters(len(c.Buckets))
		}
		if len(c.Buckets) != len(m.Totals.Buckets) {
			m.Skipped++
			return m, nil
		}

		m.Totals.Add(c)
		m.Intervals++
		m.LastTs = msg.Timestamp
		m.LastRate = msg.Rate
		m.PeakRate = max(m.PeakRate, msg.Rate)

		m.RateLine.Add(msg.Rate)
		m.FailLine.Add(c.Errors + c.Timeouts)

		if m.Count > 0 {
			pct := float64(m.Totals.Completed()) / float64(m.Count)
			cmd := m.Progress.SetPercent(min(pct, 1.0))
			return m, cmd
		}
		return m, nil

	case EndMsg:
		m.Done = true
		m.Err = msg.Err
		return m, nil

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = max(msg.Width-4, 10)
		m.Bar.Width = max(msg.Width/2-16, 10)

		half := max(msg.Width/2-6, 10)
		m.RateLine.Resize(half)
		m.FailLine.Resize(half)
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func fraction(n, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(n) / float64(total)
}

func (m Model) View() string {
	s := strings.Builder{}

	total := m.Totals.Completed()
	failed := m.Totals.Errors + m.Totals.Timeouts

	col1 := fmt.Sprintf("INTERVALS: %d\nCOMPLETED: %d\nSUCCESS:   %d",
		m.Intervals, total, m.Totals.Successes())
	col2 := fmt.Sprintf("ERRORS:   %d\nTIMEOUTS: %d\nCLOSES:   %d",
		m.Totals.Errors, m.Totals.Timeouts, m.Totals.Closes)
	col3 := fmt.Sprintf("RATE: %s hz\nPEAK: %d hz\nLAST: %d",
		styles.Value.Render(strconv.FormatInt(m.LastRate, 10)), m.PeakRate, m.LastTs)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(styles.ForFraction(fraction(failed, total)).Render(col2)),
		styles.Box.Render(col3),
	))
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.RateLine.View()),
		styles.Box.Render(m.FailLine.View()),
	))
	s.WriteString("\n\n")

	successes := m.Totals.Successes()
	var dist strings.Builder
	dist.WriteString(styles.Active.Render("Latency buckets (ms)"))
	for i, n := range m.Totals.Buckets {
		f := fraction(n, successes)
		fmt.Fprintf(&dist, "\n%-8s %s %6.2f%%  %d", m.label(i), m.Bar.ViewAs(f), f*100, n)
	}
	s.WriteString(styles.Box.Render(dist.String()))
	s.WriteString("\n\n")

	if m.Count > 0 {
		s.WriteString(m.Progress.View())
		s.WriteString("\n\n")
	}

	switch {
	case m.Err != nil:
		s.WriteString(styles.Error.Render("input failed: " + m.Err.Error()))
		s.WriteString("\n")
	case m.Done:
		s.WriteString(styles.Subtle.Render("run finished"))
		s.WriteString("\n")
	}
	if m.Skipped > 0 {
		s.WriteString(styles.Warn.Render(fmt.Sprintf("%d lines with a different bucket count skipped", m.Skipped)))
		s.WriteString("\n")
	}

	return s.String()
}
