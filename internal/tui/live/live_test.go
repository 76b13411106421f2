package live

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hstress/internal/report"
	"hstress/internal/stats"
)

func line(ts int64, errs, timeouts int64, buckets ...int64) LineMsg {
	return LineMsg(report.MergedLine{
		Timestamp: ts,
		Counters:  stats.Counters{Errors: errs, Timeouts: timeouts, Buckets: buckets},
		Rate:      buckets[0] + buckets[1],
	})
}

func TestModel_AccumulatesLines(t *testing.T) {
	m := NewModel(stats.DefaultBuckets, 0)

	m, _ = m.Update(line(100, 1, 0, 5, 3, 0, 0))
	m, _ = m.Update(line(101, 0, 2, 1, 1, 1, 1))

	assert.Equal(t, 2, m.Intervals)
	assert.Equal(t, int64(101), m.LastTs)
	assert.Equal(t, int64(2), m.LastRate)
	assert.Equal(t, int64(8), m.PeakRate)
	assert.Equal(t, []int64{6, 4, 1, 1}, m.Totals.Buckets)
	assert.Equal(t, int64(1), m.Totals.Errors)
	assert.Equal(t, int64(2), m.Totals.Timeouts)
	assert.Equal(t, []int64{8, 2}, m.RateLine.Data)
	assert.Equal(t, []int64{1, 2}, m.FailLine.Data)

	view := m.View()
	assert.Contains(t, view, "INTERVALS: 2")
	assert.Contains(t, view, "<10")
	assert.Contains(t, view, ">=100")
	assert.NotContains(t, view, "run finished")
}

func TestModel_SkipsMismatchedBuckets(t *testing.T) {
	m := NewModel(stats.DefaultBuckets, 0)

	m, _ = m.Update(line(100, 0, 0, 1, 1, 1, 1))
	m, _ = m.Update(line(101, 0, 0, 1, 1))

	assert.Equal(t, 1, m.Intervals)
	assert.Equal(t, 1, m.Skipped)
	assert.Contains(t, m.View(), "1 lines with a different bucket count skipped")
}

func TestModel_GenericLabels(t *testing.T) {
	m := NewModel(stats.DefaultBuckets, 0)
	m, _ = m.Update(line(100, 0, 0, 1, 1))

	assert.Contains(t, m.View(), "#1")
}

func TestModel_Progress(t *testing.T) {
	m := NewModel(stats.DefaultBuckets, 10)

	m, cmd := m.Update(line(100, 0, 0, 2, 3, 0, 0))
	assert.NotNil(t, cmd)
	assert.InDelta(t, 0.5, m.Progress.Percent(), 1e-9)
}

func TestModel_End(t *testing.T) {
	m := NewModel(stats.DefaultBuckets, 0)

	m, _ = m.Update(EndMsg{})
	assert.True(t, m.Done)
	assert.Contains(t, m.View(), "run finished")

	m, _ = m.Update(EndMsg{Err: errors.New("line too long")})
	assert.Contains(t, m.View(), "input failed: line too long")
}

func TestModel_WindowSize(t *testing.T) {
	m := NewModel(stats.DefaultBuckets, 0)
	for i := 0; i < 60; i++ {
		m, _ = m.Update(line(int64(i), 0, 0, 1, 0, 0, 0))
	}

	m, _ = m.Update(tea.WindowSizeMsg{Width: 40, Height: 20})
	require.Equal(t, 14, m.RateLine.Width)
	assert.Len(t, m.RateLine.Data, 14)
}
