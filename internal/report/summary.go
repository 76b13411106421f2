package report

import (
	"fmt"
	"io"
	"time"

	"hstress/internal/stats"
)

// Params are echoed in the diagnostic header.
type Params struct {
	Concurrency int
	Procs       int
	Count       int64 // per worker, negative when unbounded
	Reuse       int64
	Buckets     stats.Buckets
}

// WriteHeader prints the parameter line and the column legend.
func WriteHeader(w io.Writer, p Params) {
	fmt.Fprintf(w, "# params: c=%d p=%d n=%d r=%d\n", p.Concurrency, p.Procs, p.Count, p.Reuse)

	fmt.Fprint(w, "# ts\t\terrors\ttimeout\tcloses\t")
	for _, l := range p.Buckets.Labels() {
		fmt.Fprintf(w, "%s\t", l)
	}
	fmt.Fprint(w, "hz\n")
}

// Summary is the end-of-run report.
type Summary struct {
	Totals  stats.Counters
	Buckets stats.Buckets
	Elapsed time.Duration
	// Latency is optional; percentiles are printed when it holds values.
	Latency *stats.SafeHistogram
}

func printCount(w io.Writer, name string, total, count int64) {
	fmt.Fprintf(w, "# %s\t%d", name, count)
	if total > 0 {
		fmt.Fprintf(w, "\t%.02f", float64(count)/float64(total))
	}
	fmt.Fprint(w, "\n")
}

// Write prints counts with their fraction of all completed requests,
// then the overall success rate.
func (s Summary) Write(w io.Writer) {
	total := s.Totals.Completed()

	printCount(w, "successes", total, s.Totals.Successes())
	printCount(w, "errors", total, s.Totals.Errors)
	printCount(w, "timeouts", total, s.Totals.Timeouts)
	printCount(w, "closes", total, s.Totals.Closes)

	labels := s.Buckets.Labels()
	for i, v := range s.Totals.Buckets {
		name := fmt.Sprint(i)
		if i < len(labels) {
			name = labels[i]
		}
		printCount(w, name, total, v)
	}

	if s.Latency != nil && s.Latency.TotalCount() > 0 {
		for _, q := range []float64{50, 90, 99} {
			fmt.Fprintf(w, "# p%.0f\t%.2fms\n", q, s.Latency.QuantileMs(q))
		}
		fmt.Fprintf(w, "# max\t%.2fms\n", s.Latency.MaxMs())
	}

	fmt.Fprintf(w, "# hz\t\t%d\n", Rate(s.Totals.Successes(), s.Elapsed))
}
