package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hstress/internal/runner"
	"hstress/internal/stats"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "1", want: time.Second},
		{in: " 5 ", want: 5 * time.Second},
		{in: "250ms", want: 250 * time.Millisecond},
		{in: "1m", want: time.Minute},
		{in: "0", wantErr: true},
		{in: "-2", wantErr: true},
		{in: "-1s", wantErr: true},
		{in: "soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseInterval(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, runner.ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{name: "defaults", args: nil, wantHost: "127.0.0.1", wantPort: 80},
		{name: "host only", args: []string{"example.test"}, wantHost: "example.test", wantPort: 80},
		{name: "host and port", args: []string{"10.1.1.1", "8080"}, wantHost: "10.1.1.1", wantPort: 8080},
		{name: "bad port", args: []string{"h", "http"}, wantErr: true},
		{name: "too many", args: []string{"h", "1", "2"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := runner.DefaultConfig()
			err := ParseTarget(&cfg, tt.args)
			if tt.wantErr {
				assert.ErrorIs(t, err, runner.ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, cfg.Host)
			assert.Equal(t, tt.wantPort, cfg.Port)
		})
	}
}

func TestWorkerArgs(t *testing.T) {
	cfg := runner.DefaultConfig()
	cfg.Host = "example.test"
	cfg.Port = 8080
	cfg.Concurrency = 4
	cfg.Count = 100
	cfg.Procs = 4
	cfg.Reuse = 10
	cfg.Buckets = stats.Buckets{5, 50}
	cfg.Interval = 2 * time.Second
	cfg.Timeout = 3 * time.Second

	assert.Equal(t, []string{
		"worker",
		"--id=1",
		"--budget=25",
		"--concurrency=4",
		"--buckets=5,50",
		"--reuse=10",
		"--interval=2s",
		"--rate-threshold=10000",
		"--timeout=3s",
		"example.test",
		"8080",
	}, WorkerArgs(cfg, 1))
}
