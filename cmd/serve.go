package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hstress/internal/dummy"
)

var serveCmd = &cobra.Command{
	Use:   "serve [PORT]",
	Short: "Serve a fixed 6 KiB body to load test against",
	Long: `Serve answers every path with 6 KiB of 'Z' bytes. /fast, /medium, /slow,
/spike and /error add known latency and failure profiles.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		port := viper.GetInt("port")
		if len(args) == 1 {
			p, err := strconv.Atoi(args[0])
			if err != nil || p <= 0 || p > 65535 {
				return fmt.Errorf("invalid port %q", args[0])
			}
			port = p
		}

		return dummy.Start(cmd.Context(), dummy.ServerConfig{
			Host: viper.GetString("host"),
			Port: port,
		}, logger)
	},
}

func init() {
	serveCmd.Flags().String("host", "127.0.0.1", "address to listen on")
	serveCmd.Flags().Int("port", 8080, "port to listen on")
}
