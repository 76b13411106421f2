// Package tui is the terminal dashboard for a running hstress: it reads
// merged report lines and draws rate, failures and the latency distribution.
package tui

import (
	"context"
	"io"
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"hstress/internal/report"
	"hstress/internal/stats"
	"hstress/internal/tui/live"
)

type WatchConfig struct {
	Source  string // shown in the title
	Buckets stats.Buckets
	Count   int64 // expected total requests, enables the progress bar
}

// Feed turns merged lines from r into messages. Comment lines and lines that
// do not parse are skipped. The last message is always a live.EndMsg.
func Feed(r io.Reader, send func(tea.Msg), logger *slog.Logger) {
	sc := report.NewLineScanner(r)
	for sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		l, err := report.ParseMergedLine(text)
		if err != nil {
			logger.Debug("skipping line", "line", text, "error", err)
			continue
		}
		send(live.LineMsg(l))
	}
	send(live.EndMsg{Err: sc.Err()})
}

// Watch runs the dashboard until the user quits or ctx is done. The screen
// stays up after r ends so the final numbers can be read.
func Watch(ctx context.Context, r io.Reader, cfg WatchConfig, logger *slog.Logger, opts ...tea.ProgramOption) error {
	m := NewModel(cfg.Source, cfg.Buckets, cfg.Count)

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(m, opts...)

	go Feed(r, p.Send, logger)

	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
