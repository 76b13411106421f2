package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hstress/internal/cli"
)

// workerCmd is what fork mode executes once per worker. It writes raw
// sequence-numbered report lines to stdout for the parent to merge.
var workerCmd = &cobra.Command{
	Use:    "worker [HOST] [PORT]",
	Short:  "Run a single worker (used by --fork)",
	Hidden: true,
	Args:   cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper(), cmd, args)
		if err != nil {
			return err
		}

		id := viper.GetInt("id")
		budget := viper.GetInt64("budget")

		return cli.StartWorker(cmd.Context(), cfg, id, budget,
			cli.WithLogger(logger.With("worker", id)),
			cli.WithRunID(runID),
		)
	},
}

func init() {
	f := workerCmd.Flags()
	addWorkloadFlags(f)
	f.Int("id", 0, "worker index")
	f.Int64("budget", -1, "requests this worker issues, negative for unbounded")
}
