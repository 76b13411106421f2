package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hstress/internal/runner"
	"hstress/internal/stats"
)

func parse(t *testing.T, v *viper.Viper, argv ...string) (*cobra.Command, []string) {
	t.Helper()

	cmd := &cobra.Command{Use: "hstress"}
	f := cmd.Flags()
	addWorkloadFlags(f)
	f.Int64P("count", "n", -1, "")
	f.IntP("procs", "p", 1, "")
	f.StringP("report-interval", "i", "", "")
	f.Bool("fork", false, "")
	f.String("metrics-addr", "", "")

	require.NoError(t, f.Parse(argv))
	require.NoError(t, v.BindPFlags(f))
	return cmd, f.Args()
}

func TestLoadConfig_Defaults(t *testing.T) {
	v := viper.New()
	cmd, args := parse(t, v)

	cfg, err := loadConfig(v, cmd, args)
	require.NoError(t, err)

	assert.Equal(t, runner.DefaultConfig(), cfg)
}

func TestLoadConfig_Flags(t *testing.T) {
	v := viper.New()
	cmd, args := parse(t, v,
		"-c", "16", "-b", "5,50,500", "-n", "1000", "-p", "4", "-r", "2",
		"-R", "100", "--timeout", "3s", "--fork", "--metrics-addr", ":9100",
		"example.test", "8080",
	)

	cfg, err := loadConfig(v, cmd, args)
	require.NoError(t, err)

	assert.Equal(t, "example.test", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 16, cfg.Concurrency)
	assert.Equal(t, stats.Buckets{5, 50, 500}, cfg.Buckets)
	assert.Equal(t, int64(1000), cfg.Count)
	assert.Equal(t, 4, cfg.Procs)
	assert.Equal(t, 2*time.Second, cfg.Interval)
	assert.Equal(t, int64(100), cfg.Reuse)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.True(t, cfg.Fork)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
}

func TestLoadConfig_IntervalAlias(t *testing.T) {
	v := viper.New()
	cmd, args := parse(t, v, "-i", "500ms")

	cfg, err := loadConfig(v, cmd, args)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, cfg.Interval)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		argv []string
	}{
		{name: "bad buckets", argv: []string{"-b", "10,5"}},
		{name: "zero concurrency", argv: []string{"-c", "0"}},
		{name: "zero procs", argv: []string{"-p", "0"}},
		{name: "bad interval", argv: []string{"-r", "soon"}},
		{name: "bad port", argv: []string{"localhost", "http"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			cmd, args := parse(t, v, tt.argv...)

			_, err := loadConfig(v, cmd, args)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hstress.yaml")
	require.NoError(t, os.WriteFile(path, []byte("concurrency: 8\nbuckets: \"2,20\"\ncount: 50\n"), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cmd, args := parse(t, v, "-c", "3")

	cfg, err := loadConfig(v, cmd, args)
	require.NoError(t, err)

	// Flags win over the file.
	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, stats.Buckets{2, 20}, cfg.Buckets)
	assert.Equal(t, int64(50), cfg.Count)
}
