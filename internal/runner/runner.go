package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"hstress/internal/report"
	"hstress/internal/stats"
	"hstress/internal/transport"
)

// Source supplies the request to send next.
type Source interface {
	Pick() *transport.Request
}

// Static always returns the same request.
type Static struct {
	Req *transport.Request
}

func (s Static) Pick() *transport.Request {
	return s.Req
}

type state int

const (
	dispatched state = iota
	succeeded
	errored
	timedOut
)

// request is one in-flight HTTP call. It owns conn until it is retired.
type request struct {
	conn  transport.Conn
	reqno int64 // position on conn, starting at 1
	start time.Time
	timer *time.Timer
	state state
}

type event any

type outcomeEvent struct {
	req  *request
	resp *transport.Response
	err  error
}

type timeoutEvent struct {
	req *request
}

type closeEvent struct{}

// Runner is one worker: it keeps Concurrency requests in flight and writes a
// report line to out every interval.
//
// All counters are owned by the goroutine executing Run. Network I/O runs on
// helper goroutines that only post events back.
type Runner struct {
	id     int
	cfg    Config
	budget int64

	dialer transport.Dialer
	source Source
	out    io.Writer
	logger *slog.Logger
	now    func() time.Time
	hist   *stats.SafeHistogram

	events chan event
	quit   chan struct{}

	counters   *stats.Counters
	totals     *stats.Counters
	live       map[*request]struct{}
	dispatched int64
	seq        int64
	complete   bool

	rateCount int64
	rateSince time.Time
}

// Option configures a Runner.
type Option func(*Runner)

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithClock replaces time.Now for latency measurement.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithHistogram records every successful latency into h.
func WithHistogram(h *stats.SafeHistogram) Option {
	return func(r *Runner) { r.hist = h }
}

// WithSource replaces the synthetic GET.
func WithSource(s Source) Option {
	return func(r *Runner) { r.source = s }
}

// WithBudget overrides the per-worker request budget derived from cfg.
func WithBudget(n int64) Option {
	return func(r *Runner) { r.budget = n }
}

func NewRunner(id int, cfg Config, dialer transport.Dialer, out io.Writer, opts ...Option) *Runner {
	r := &Runner{
		id:       id,
		cfg:      cfg,
		budget:   cfg.WorkerBudget(),
		dialer:   dialer,
		source:   Static{Req: transport.NewGet(cfg.HostHeader(), cfg.KeepAlive())},
		out:      out,
		logger:   slog.Default(),
		now:      time.Now,
		events:   make(chan event, cfg.Concurrency*2+1),
		quit:     make(chan struct{}),
		counters: stats.NewCounters(cfg.Buckets.Count()),
		totals:   stats.NewCounters(cfg.Buckets.Count()),
		live:     make(map[*request]struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	r.logger = r.logger.With("worker", id)
	return r
}

// post hands an event to the reactor unless Run already returned.
func (r *Runner) post(ev event) {
	select {
	case r.events <- ev:
	case <-r.quit:
	}
}

func (r *Runner) dial() transport.Conn {
	return r.dialer.Dial(func() { r.post(closeEvent{}) })
}

// Run drives the worker until its budget is spent or ctx is done. The final
// report line is written before Run returns normally.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.quit)

	r.rateSince = r.now()

	seed := int64(r.cfg.Concurrency)
	if r.budget >= 0 && r.budget < seed {
		seed = r.budget
	}

	r.logger.Debug("worker started", "seed", seed, "budget", r.budget, "timeout", r.cfg.RequestTimeout())

	for i := int64(0); i < seed; i++ {
		r.dispatch(r.dial(), 1)
	}
	if len(r.live) == 0 {
		return r.finish()
	}

	ticker := time.NewTimer(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.abort()
			return ctx.Err()

		case ev := <-r.events:
			r.handle(ev)
			if r.complete {
				ticker.Stop()
				return r.finish()
			}

		case <-ticker.C:
			if err := r.report(); err != nil {
				r.abort()
				return err
			}
			ticker.Reset(r.cfg.Interval)
		}
	}
}

func (r *Runner) finish() error {
	r.logger.Debug("worker finished", "dispatched", r.dispatched, "intervals", r.seq+1)
	return r.report()
}

// abort drops every in-flight request without counting it.
func (r *Runner) abort() {
	for req := range r.live {
		req.timer.Stop()
		req.conn.Close()
		delete(r.live, req)
	}
}

func (r *Runner) dispatch(conn transport.Conn, reqno int64) {
	req := &request{
		conn:  conn,
		reqno: reqno,
		start: r.now(),
		state: dispatched,
	}
	r.live[req] = struct{}{}
	r.dispatched++

	req.timer = time.AfterFunc(r.cfg.RequestTimeout(), func() {
		r.post(timeoutEvent{req: req})
	})

	httpReq := r.source.Pick()
	go func() {
		resp, err := conn.RoundTrip(httpReq)
		r.post(outcomeEvent{req: req, resp: resp, err: err})
	}()
}

func (r *Runner) handle(ev event) {
	switch ev := ev.(type) {
	case closeEvent:
		r.counters.RecordClose()

	case outcomeEvent:
		req := ev.req
		if req.state != dispatched {
			return
		}
		req.timer.Stop()

		if ev.err != nil {
			req.state = errored
			r.counters.RecordError()
			r.logger.Debug("request failed", "error", ev.err)
			r.replaceConn(req)
		} else {
			req.state = succeeded
			d := r.now().Sub(req.start)
			r.counters.RecordSuccess(r.cfg.Buckets.Classify(d))
			if r.hist != nil {
				if err := r.hist.Record(d); err != nil {
					r.logger.Debug("latency not recorded", "latency", d, "error", err)
				}
			}
			r.sampleRate()
		}
		r.next(req)

	case timeoutEvent:
		req := ev.req
		if req.state != dispatched {
			return
		}
		req.timer.Stop()
		req.state = timedOut
		r.counters.RecordTimeout()
		// A server that did not answer this one will not answer the next one promptly either.
		r.replaceConn(req)
		r.next(req)
	}
}

func (r *Runner) replaceConn(req *request) {
	req.conn.Close()
	req.conn = r.dial()
	req.reqno = 0
}

// next retires req and keeps the pipeline full while budget remains.
func (r *Runner) next(req *request) {
	delete(r.live, req)

	if r.budget >= 0 && r.dispatched >= r.budget {
		req.conn.Close()
		if len(r.live) == 0 {
			r.complete = true
		}
		return
	}

	if r.cfg.Reuse < 0 || req.reqno < r.cfg.Reuse {
		r.dispatch(req.conn, req.reqno+1)
		return
	}

	req.conn.Close()
	r.dispatch(r.dial(), 1)
}

type flusher interface {
	Flush() error
}

// report snapshots the interval counters and writes one worker line.
func (r *Runner) report() error {
	snap := r.counters.SnapshotAndReset()
	r.totals.Add(snap)

	if err := report.WriteWorkerLine(r.out, r.seq, snap); err != nil {
		return fmt.Errorf("worker %d: write report: %w", r.id, err)
	}
	if f, ok := r.out.(flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("worker %d: flush report: %w", r.id, err)
		}
	}
	r.seq++
	return nil
}

// sampleRate counts one success and logs the rolling rate once more than
// RateThreshold successes arrived since the previous sample.
func (r *Runner) sampleRate() {
	if r.cfg.RateThreshold <= 0 {
		return
	}
	r.rateCount++
	if r.rateCount <= r.cfg.RateThreshold {
		return
	}
	now := r.now()
	r.logger.Info("rate", "per_second", report.Rate(r.rateCount, now.Sub(r.rateSince)))
	r.rateSince = now
	r.rateCount = 0
}

// Totals returns every outcome reported so far. Only valid after Run returned.
func (r *Runner) Totals() stats.Counters {
	return r.totals.Clone()
}

// InFlight is the number of outstanding requests. Only valid from the Run goroutine or after Run returned.
func (r *Runner) InFlight() int {
	return len(r.live)
}
