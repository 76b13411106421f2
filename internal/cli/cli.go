package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"

	"hstress/internal/metrics"
	"hstress/internal/replay"
	"hstress/internal/report"
	"hstress/internal/runner"
	"hstress/internal/stats"
	"hstress/internal/transport"
)

// Option configures a run.
type Option func(*options)

type options struct {
	stdout     io.Writer
	stderr     io.Writer
	logger     *slog.Logger
	runID      string
	dialer     transport.Dialer
	executable string
	workerArgs []string
}

func defaults() options {
	return options{
		stdout: os.Stdout,
		stderr: os.Stderr,
		logger: slog.Default(),
	}
}

// WithOutput redirects report lines and the diagnostic stream.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(o *options) {
		o.stdout = stdout
		o.stderr = stderr
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithRunID(id string) Option {
	return func(o *options) { o.runID = id }
}

// WithDialer replaces the TCP dialer of in-process workers.
func WithDialer(d transport.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithExecutable sets the binary re-executed in fork mode. extra is appended
// to every worker command line.
func WithExecutable(path string, extra ...string) Option {
	return func(o *options) {
		o.executable = path
		o.workerArgs = extra
	}
}

func (o *options) dialerFor(cfg runner.Config, addr string) transport.Dialer {
	if o.dialer != nil {
		return o.dialer
	}
	return transport.NewTCPDialer(addr, cfg.ConnectTimeout)
}

// source returns the replay pool when one is configured, nil otherwise.
func (o *options) source(cfg runner.Config) (runner.Source, error) {
	if cfg.ReplayFile == "" {
		return nil, nil
	}
	pool, st, err := replay.LoadFile(cfg.ReplayFile, cfg.HostHeader())
	if err != nil {
		return nil, fmt.Errorf("load replay file: %w", err)
	}
	o.logger.Info("replay pool loaded", "file", cfg.ReplayFile, "requests", st.OK, "rejected", st.Failed)
	return pool, nil
}

// Start runs a complete load test: it starts cfg.Procs workers, merges their
// reports to stdout and prints the summary to stderr. A canceled ctx is an
// interrupt: the summary of what was merged so far is printed and Start
// returns nil.
func Start(ctx context.Context, cfg runner.Config, opts ...Option) error {
	o := defaults()
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Fork && o.executable == "" {
		return fmt.Errorf("%w: fork mode needs the hstress executable", runner.ErrInvalidConfig)
	}
	addr, err := cfg.Resolve(ctx)
	if err != nil {
		return err
	}

	var source runner.Source
	if !cfg.Fork {
		if source, err = o.source(cfg); err != nil {
			return err
		}
	}

	printHeader(o.stderr, cfg)

	o.logger.Info("starting run",
		"target", cfg.HostHeader(),
		"addr", addr,
		"concurrency", cfg.Concurrency,
		"procs", cfg.Procs,
		"count", cfg.Count,
		"fork", cfg.Fork,
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	aggOpts := []report.Option{report.WithLogger(o.logger)}
	if cfg.MetricsAddr != "" {
		exp := metrics.NewExporter(cfg.Buckets, o.runID)
		aggOpts = append(aggOpts, report.WithSink(exp))
		go func() {
			if err := exp.Serve(runCtx, cfg.MetricsAddr, o.logger); err != nil {
				o.logger.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	agg := report.NewAggregator(cfg.Procs, cfg.Buckets.Count(), o.stdout, aggOpts...)

	g, gctx := errgroup.WithContext(runCtx)
	aggDone := make(chan struct{})

	var (
		streams []io.Reader
		closers []func()
		hists   []*stats.SafeHistogram
	)

	if cfg.Fork {
		cmds, err := startForked(gctx, cfg, &o)
		if err != nil {
			return err
		}
		for i, c := range cmds {
			streams = append(streams, c.stdout)
			g.Go(func() error {
				<-aggDone
				if err := c.cmd.Wait(); err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					return fmt.Errorf("worker %d: %w", i, err)
				}
				return nil
			})
		}
	} else {
		dialer := o.dialerFor(cfg, addr)
		for i := 0; i < cfg.Procs; i++ {
			pr, pw := io.Pipe()
			h := stats.NewSafeHistogram()
			hists = append(hists, h)
			streams = append(streams, pr)
			closers = append(closers, func() { pr.CloseWithError(io.ErrClosedPipe) })

			ropts := []runner.Option{
				runner.WithLogger(o.logger),
				runner.WithHistogram(h),
			}
			if source != nil {
				ropts = append(ropts, runner.WithSource(source))
			}
			r := runner.NewRunner(i, cfg, dialer, bufio.NewWriter(pw), ropts...)

			g.Go(func() error {
				err := r.Run(gctx)
				pw.CloseWithError(err)
				return err
			})
		}
	}

	g.Go(func() error {
		defer close(aggDone)
		defer func() {
			for _, c := range closers {
				c()
			}
		}()
		return agg.Run(gctx, streams)
	})

	err = g.Wait()
	interrupted := ctx.Err() != nil
	if err != nil && !interrupted {
		return err
	}
	if interrupted {
		o.logger.Info("interrupted, printing partial summary")
	}

	var latency *stats.SafeHistogram
	if len(hists) > 0 {
		latency = stats.NewSafeHistogram()
		for _, h := range hists {
			latency.Merge(h)
		}
	}

	printSummary(o.stderr, cfg, agg.Totals(), agg.Elapsed(), latency)
	return nil
}

type forkedWorker struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

func startForked(ctx context.Context, cfg runner.Config, o *options) ([]forkedWorker, error) {
	var workers []forkedWorker
	for i := 0; i < cfg.Procs; i++ {
		args := append(WorkerArgs(cfg, i), o.workerArgs...)

		cmd := exec.CommandContext(ctx, o.executable, args...)
		cmd.Stderr = o.stderr
		cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
		cmd.WaitDelay = 2 * time.Second

		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("worker %d: %w", i, err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start worker %d: %w", i, err)
		}
		o.logger.Debug("worker process started", "worker", i, "pid", cmd.Process.Pid)
		workers = append(workers, forkedWorker{cmd: cmd, stdout: stdout})
	}
	return workers, nil
}

// StartWorker runs a single worker writing raw worker lines to stdout. It is
// the body of a forked worker process.
func StartWorker(ctx context.Context, cfg runner.Config, id int, budget int64, opts ...Option) error {
	o := defaults()
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	addr, err := cfg.Resolve(ctx)
	if err != nil {
		return err
	}
	source, err := o.source(cfg)
	if err != nil {
		return err
	}

	out := bufio.NewWriter(o.stdout)
	ropts := []runner.Option{
		runner.WithLogger(o.logger),
		runner.WithBudget(budget),
	}
	if source != nil {
		ropts = append(ropts, runner.WithSource(source))
	}

	start := time.Now()
	r := runner.NewRunner(id, cfg, o.dialerFor(cfg, addr), out, ropts...)

	err = r.Run(ctx)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		printSummary(o.stderr, cfg, r.Totals(), time.Since(start), nil)
		return nil
	}
	return err
}

func printHeader(w io.Writer, cfg runner.Config) {
	report.WriteHeader(w, report.Params{
		Concurrency: cfg.Concurrency,
		Procs:       cfg.Procs,
		Count:       cfg.WorkerBudget(),
		Reuse:       cfg.Reuse,
		Buckets:     cfg.Buckets,
	})
}

func printSummary(w io.Writer, cfg runner.Config, totals stats.Counters, elapsed time.Duration, latency *stats.SafeHistogram) {
	report.Summary{
		Totals:  totals,
		Buckets: cfg.Buckets,
		Elapsed: elapsed,
		Latency: latency,
	}.Write(w)
}
