package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hstress/internal/banner"
	"hstress/internal/cli"
	"hstress/internal/log"
)

var (
	cfgFile string
	runID   string
	logger  = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "hstress [HOST] [PORT]",
	Short: "hstress - HTTP load generator with latency buckets",
	Long: `
hstress keeps a fixed number of HTTP requests in flight against HOST:PORT
(default 127.0.0.1:80) and prints one line per reporting interval to stdout:

  timestamp  errors  timeouts  closes  bucket0 ... bucketN  rate

Buckets count successful requests by latency in milliseconds (-b). Workers
(-p) split the request budget (-n) evenly; their reports are merged into one
timeline. Parameters and the final summary go to stderr.`,
	Args:              cobra.MaximumNArgs(2),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	RunE:              runLoad,
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), banner.GetString())
		cmd.Usage()
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "hstress:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(workerCmd, serveCmd, watchCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.hstress.yaml)")
	pf.String("log-level", "info", "diagnostic log level: debug, info, warn, error")
	pf.String("log-format", "text", "diagnostic log format: text, json")
	pf.String("log-color", "auto", "colorize text logs: auto, always, never")
	pf.StringVar(&runID, "run-id", "", "identifier attached to logs and metrics (default random)")
	pf.MarkHidden("run-id")

	f := rootCmd.Flags()
	addWorkloadFlags(f)
	f.Int64P("count", "n", -1, "total requests across all workers, negative for unbounded")
	f.IntP("procs", "p", 1, "number of workers")
	f.StringP("report-interval", "i", "", "alias for --interval")
	f.Bool("fork", false, "run each worker as a separate process")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9100")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".hstress")
		}
	}
	viper.SetEnvPrefix("hstress")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.ReadInConfig()
}

// setup binds the flags of the running command and builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := viper.BindPFlags(cmd.InheritedFlags()); err != nil {
		return err
	}

	if runID == "" {
		runID = uuid.NewString()
	}

	logger = log.New(os.Stderr, log.Config{
		Level:  viper.GetString("log-level"),
		Format: viper.GetString("log-format"),
		Color:  viper.GetString("log-color"),
	}).With("run_id", runID)
	slog.SetDefault(logger)

	if f := viper.ConfigFileUsed(); f != "" {
		logger.Debug("using config file", "file", f)
	}
	return nil
}

// workerPassthrough are the flags every forked worker inherits.
func workerPassthrough() []string {
	return []string{
		"--run-id=" + runID,
		"--log-level=" + viper.GetString("log-level"),
		"--log-format=" + viper.GetString("log-format"),
		"--log-color=" + viper.GetString("log-color"),
	}
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper(), cmd, args)
	if err != nil {
		return err
	}

	opts := []cli.Option{
		cli.WithLogger(logger),
		cli.WithRunID(runID),
	}
	if cfg.Fork {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("locate executable for fork mode: %w", err)
		}
		opts = append(opts, cli.WithExecutable(exe, workerPassthrough()...))
	}

	return cli.Start(cmd.Context(), cfg, opts...)
}
