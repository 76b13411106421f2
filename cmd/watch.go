package cmd

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hstress/internal/stats"
	"hstress/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch [FILE]",
	Short: "Live dashboard for merged report lines",
	Long: `Watch reads merged report lines from FILE or stdin and draws them:

  hstress -c 16 example.com 80 | hstress watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		buckets, err := stats.ParseBuckets(viper.GetString("buckets"))
		if err != nil {
			return err
		}

		var (
			in     io.Reader = os.Stdin
			source           = "stdin"
			opts   []tea.ProgramOption
		)
		if len(args) == 0 {
			// Keys come from the terminal, stdin carries the reports.
			opts = append(opts, tea.WithInputTTY())
		} else {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open report stream: %w", err)
			}
			defer f.Close()
			in, source = f, args[0]
		}

		return tui.Watch(cmd.Context(), in, tui.WatchConfig{
			Source:  source,
			Buckets: buckets,
			Count:   viper.GetInt64("count"),
		}, logger, opts...)
	},
}

func init() {
	f := watchCmd.Flags()
	f.StringP("buckets", "b", stats.DefaultBuckets.String(), "bucket boundaries the stream was produced with")
	f.Int64P("count", "n", 0, "expected total requests, shows a progress bar")
}
