package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"hstress/internal/cli"
	"hstress/internal/runner"
	"hstress/internal/stats"
)

// addWorkloadFlags defines the flags shared by the run and worker commands.
func addWorkloadFlags(f *pflag.FlagSet) {
	f.IntP("concurrency", "c", 1, "requests in flight per worker")
	f.StringP("buckets", "b", stats.DefaultBuckets.String(), "ascending latency bucket boundaries in ms")
	f.Int64P("reuse", "R", -1, "requests per connection, negative for unlimited; except at 0 or 1 requests carry Connection: keep-alive")
	f.StringP("interval", "r", "1", "reporting interval in seconds or as a duration (250ms)")
	f.Duration("timeout", 0, "request timeout (default the largest bucket)")
	f.Duration("connect-timeout", 0, "TCP connect timeout (default bounded by the request timeout)")
	f.Int64("rate-threshold", 10000, "successes between two rate samples in the log, 0 disables")
	f.String("replay", "", "replay requests parsed from this traffic dump instead of GET /")
}

// loadConfig builds the run configuration from v, which has the flags of cmd
// bound, and the positional HOST PORT.
func loadConfig(v *viper.Viper, cmd *cobra.Command, args []string) (runner.Config, error) {
	cfg := runner.DefaultConfig()

	if err := cli.ParseTarget(&cfg, args); err != nil {
		return cfg, err
	}

	buckets, err := stats.ParseBuckets(v.GetString("buckets"))
	if err != nil {
		return cfg, err
	}
	cfg.Buckets = buckets

	interval := v.GetString("interval")
	if f := cmd.Flags().Lookup("report-interval"); f != nil && f.Changed {
		interval = f.Value.String()
	}
	if cfg.Interval, err = cli.ParseInterval(interval); err != nil {
		return cfg, err
	}

	cfg.Concurrency = v.GetInt("concurrency")
	cfg.Reuse = v.GetInt64("reuse")
	cfg.Timeout = v.GetDuration("timeout")
	cfg.ConnectTimeout = v.GetDuration("connect-timeout")
	cfg.RateThreshold = v.GetInt64("rate-threshold")
	cfg.ReplayFile = v.GetString("replay")

	if v.IsSet("count") {
		cfg.Count = v.GetInt64("count")
	}
	if v.IsSet("procs") {
		cfg.Procs = v.GetInt("procs")
	}
	cfg.Fork = v.GetBool("fork")
	cfg.MetricsAddr = v.GetString("metrics-addr")

	return cfg, cfg.Validate()
}
