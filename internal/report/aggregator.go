package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"hstress/internal/stats"
)

// NBuffer is the number of intervals the aggregator can hold open at once.
const NBuffer = 10

var (
	// ErrWorkerLagging means one worker fell more than NBuffer intervals
	// behind another. The merged timeline can no longer be trusted.
	ErrWorkerLagging = errors.New("a worker fell too far behind")
	// ErrOutOfSequence means a worker skipped or repeated a sequence number.
	ErrOutOfSequence = errors.New("worker report out of sequence")
)

// Merged is one flushed interval.
type Merged struct {
	Seq      int64
	Time     time.Time
	Counters stats.Counters
	Rate     int64
}

// Sink observes every merged interval.
type Sink interface {
	Observe(m Merged)
}

type slot struct {
	seq          int64
	contributors int
	counters     *stats.Counters
}

// Aggregator merges per-worker report lines into one timeline.
//
// Add and Retire must be called from a single goroutine; Run does that.
type Aggregator struct {
	nprocs   int
	nbuckets int
	out      io.Writer
	logger   *slog.Logger
	sinks    []Sink
	now      func() time.Time

	slots   [NBuffer]slot
	next    int64
	highest int64
	last    []int64 // last sequence seen per worker, -1 before the first
	retired []bool

	totals    *stats.Counters
	start     time.Time
	lastMerge time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

func WithSink(s Sink) Option {
	return func(a *Aggregator) { a.sinks = append(a.sinks, s) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

func NewAggregator(nprocs, nbuckets int, out io.Writer, opts ...Option) *Aggregator {
	a := &Aggregator{
		nprocs:   nprocs,
		nbuckets: nbuckets,
		out:      out,
		logger:   slog.Default(),
		now:      time.Now,
		highest:  -1,
		last:     make([]int64, nprocs),
		retired:  make([]bool, nprocs),
		totals:   stats.NewCounters(nbuckets),
	}
	for _, o := range opts {
		o(a)
	}
	for i := range a.slots {
		a.slots[i].counters = stats.NewCounters(nbuckets)
	}
	for i := range a.last {
		a.last[i] = -1
	}
	a.start = a.now()
	a.lastMerge = a.start
	return a
}

// required counts the workers expected to report seq: live ones plus retired
// ones whose last report reached seq.
func (a *Aggregator) required(seq int64) int {
	n := 0
	for i := range a.last {
		if !a.retired[i] || a.last[i] >= seq {
			n++
		}
	}
	return n
}

// Add folds one worker line into its interval slot and flushes every
// interval that is complete.
func (a *Aggregator) Add(worker int, l Line) error {
	if worker < 0 || worker >= a.nprocs {
		return fmt.Errorf("%w: unknown worker %d", ErrOutOfSequence, worker)
	}
	if a.retired[worker] {
		return fmt.Errorf("%w: worker %d reported after its stream ended", ErrOutOfSequence, worker)
	}
	if len(l.Buckets) != a.nbuckets {
		return fmt.Errorf("%w: worker %d sent %d buckets, want %d", ErrMalformedLine, worker, len(l.Buckets), a.nbuckets)
	}

	if l.Seq > a.highest {
		a.highest = l.Seq
	}
	if a.highest-l.Seq > NBuffer {
		return fmt.Errorf("%w: worker %d at %d, newest %d", ErrWorkerLagging, worker, l.Seq, a.highest)
	}
	if l.Seq-a.next >= NBuffer {
		return fmt.Errorf("%w: worker %d at %d, oldest open interval %d", ErrWorkerLagging, worker, l.Seq, a.next)
	}
	if l.Seq != a.last[worker]+1 {
		return fmt.Errorf("%w: worker %d sent %d after %d", ErrOutOfSequence, worker, l.Seq, a.last[worker])
	}
	a.last[worker] = l.Seq

	s := &a.slots[l.Seq%NBuffer]
	if s.contributors > 0 && s.seq != l.Seq {
		return fmt.Errorf("%w: interval %d still open in slot of %d", ErrWorkerLagging, s.seq, l.Seq)
	}
	s.seq = l.Seq
	s.contributors++
	s.counters.Add(l.Counters)

	return a.flushReady()
}

// Retire marks a worker's stream as finished. Intervals it never reached no
// longer wait for it.
func (a *Aggregator) Retire(worker int) error {
	if worker < 0 || worker >= a.nprocs {
		return fmt.Errorf("%w: unknown worker %d", ErrOutOfSequence, worker)
	}
	a.retired[worker] = true
	return a.flushReady()
}

func (a *Aggregator) flushReady() error {
	for {
		s := &a.slots[a.next%NBuffer]
		need := a.required(a.next)
		if need == 0 || s.contributors == 0 || s.seq != a.next || s.contributors < need {
			return nil
		}
		if err := a.flush(s); err != nil {
			return err
		}
	}
}

func (a *Aggregator) flush(s *slot) error {
	now := a.now()
	successes := s.counters.Successes()
	rate := Rate(successes, now.Sub(a.lastMerge))
	a.lastMerge = now

	m := Merged{Seq: s.seq, Time: now, Counters: s.counters.Clone(), Rate: rate}
	if err := WriteMergedLine(a.out, now.Unix(), m.Counters, rate); err != nil {
		return fmt.Errorf("write merged line: %w", err)
	}

	a.totals.Add(m.Counters)
	for _, sink := range a.sinks {
		sink.Observe(m)
	}

	a.logger.Debug("interval merged", "seq", s.seq, "workers", s.contributors, "successes", successes, "rate", rate)

	s.counters.Reset()
	s.contributors = 0
	a.next++
	return nil
}

// Totals returns everything merged so far.
func (a *Aggregator) Totals() stats.Counters {
	return a.totals.Clone()
}

// Elapsed is the time since the aggregator was created.
func (a *Aggregator) Elapsed() time.Duration {
	return a.now().Sub(a.start)
}

// Pending counts intervals that received at least one report but were not flushed.
func (a *Aggregator) Pending() int {
	n := 0
	for i := range a.slots {
		if a.slots[i].contributors > 0 {
			n++
		}
	}
	return n
}

// Rate is n per second over d, with d floored at one millisecond.
func Rate(n int64, d time.Duration) int64 {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return 1000 * n / ms
}

type event struct {
	worker int
	line   string
	err    error
	eof    bool
}

// Run reads one stream per worker and merges until every stream ends, a
// protocol error occurs or ctx is done.
func (a *Aggregator) Run(ctx context.Context, streams []io.Reader) error {
	if len(streams) != a.nprocs {
		return fmt.Errorf("aggregator: %d streams for %d workers", len(streams), a.nprocs)
	}

	events := make(chan event)
	done := make(chan struct{})
	defer close(done)

	for i, r := range streams {
		go func(worker int, r io.Reader) {
			send := func(ev event) bool {
				select {
				case events <- ev:
					return true
				case <-done:
					return false
				}
			}

			sc := NewLineScanner(r)
			for sc.Scan() {
				if !send(event{worker: worker, line: sc.Text()}) {
					return
				}
			}
			send(event{worker: worker, err: sc.Err(), eof: true})
		}(i, r)
	}

	live := len(streams)
	for live > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			if ev.eof {
				live--
				if ev.err != nil {
					return fmt.Errorf("worker %d: %w", ev.worker, ev.err)
				}
				a.logger.Debug("worker stream closed", "worker", ev.worker, "last_seq", a.last[ev.worker])
				if err := a.Retire(ev.worker); err != nil {
					return err
				}
				continue
			}

			l, err := ParseWorkerLine(ev.line, a.nbuckets)
			if err != nil {
				return fmt.Errorf("worker %d: %w", ev.worker, err)
			}
			if err := a.Add(ev.worker, l); err != nil {
				return err
			}
		}
	}

	if n := a.Pending(); n > 0 {
		a.logger.Warn("intervals left unmerged", "count", n)
	}
	return nil
}
