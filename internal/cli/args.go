package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"hstress/internal/runner"
)

// ParseInterval accepts whole seconds ("5") or a Go duration ("250ms").
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("%w: interval %q must be positive", runner.ErrInvalidConfig, s)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: interval %q: %w", runner.ErrInvalidConfig, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: interval %q must be positive", runner.ErrInvalidConfig, s)
	}
	return d, nil
}

// ParseTarget fills host and port from the positional arguments.
func ParseTarget(cfg *runner.Config, args []string) error {
	if len(args) > 2 {
		return fmt.Errorf("%w: expected at most HOST PORT, got %d arguments", runner.ErrInvalidConfig, len(args))
	}
	if len(args) > 0 {
		cfg.Host = args[0]
	}
	if len(args) > 1 {
		port, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("%w: port %q: %w", runner.ErrInvalidConfig, args[1], err)
		}
		cfg.Port = port
	}
	return nil
}

// WorkerArgs is the command line of the hidden worker command for worker id.
// The worker receives its own budget, never the total.
func WorkerArgs(cfg runner.Config, id int) []string {
	args := []string{
		"worker",
		"--id=" + strconv.Itoa(id),
		"--budget=" + strconv.FormatInt(cfg.WorkerBudget(), 10),
		"--concurrency=" + strconv.Itoa(cfg.Concurrency),
		"--buckets=" + cfg.Buckets.String(),
		"--reuse=" + strconv.FormatInt(cfg.Reuse, 10),
		"--interval=" + cfg.Interval.String(),
		"--rate-threshold=" + strconv.FormatInt(cfg.RateThreshold, 10),
	}
	if cfg.Timeout > 0 {
		args = append(args, "--timeout="+cfg.Timeout.String())
	}
	if cfg.ConnectTimeout > 0 {
		args = append(args, "--connect-timeout="+cfg.ConnectTimeout.String())
	}
	if cfg.ReplayFile != "" {
		args = append(args, "--replay="+cfg.ReplayFile)
	}
	return append(args, cfg.Host, strconv.Itoa(cfg.Port))
}
