package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hstress/internal/log"
	"hstress/internal/stats"
	"hstress/internal/tui/live"
)

func TestFeed(t *testing.T) {
	in := strings.Join([]string{
		"# params: c=1 p=1 n=-1 r=-1",
		"1700000001\t1\t0\t0\t3\t0\t0\t0\t3",
		"",
		"not a report line",
		"1700000002\t0\t0\t0\t1\t1\t0\t0\t2",
	}, "\n") + "\n"

	var msgs []tea.Msg
	Feed(strings.NewReader(in), func(m tea.Msg) { msgs = append(msgs, m) }, log.Discard())

	require.Len(t, msgs, 3)

	first, ok := msgs[0].(live.LineMsg)
	require.True(t, ok)
	assert.Equal(t, int64(1700000001), first.Timestamp)
	assert.Equal(t, int64(3), first.Rate)

	second, ok := msgs[1].(live.LineMsg)
	require.True(t, ok)
	assert.Equal(t, []int64{1, 1, 0, 0}, second.Buckets)

	end, ok := msgs[2].(live.EndMsg)
	require.True(t, ok)
	assert.NoError(t, end.Err)
}

func TestModel_Quit(t *testing.T) {
	m := NewModel("stdin", stats.DefaultBuckets, 0)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, next.View())
}

func TestModel_ForwardsToLive(t *testing.T) {
	m := NewModel("stdin", stats.DefaultBuckets, 0)

	next, _ := m.Update(live.EndMsg{})
	view := next.View()

	assert.Contains(t, view, "hstress watch")
	assert.Contains(t, view, "stdin")
	assert.Contains(t, view, "run finished")
}
