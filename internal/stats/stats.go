package stats

// Counters is the per-interval tally of request outcomes.
//
// It is not safe for concurrent use. A worker mutates it only from its
// reactor goroutine; the aggregator only from its merge loop.
type Counters struct {
	Errors   int64
	Timeouts int64
	Closes   int64
	Buckets  []int64
}

// NewCounters returns zeroed counters with n latency buckets (overflow included).
func NewCounters(n int) *Counters {
	return &Counters{Buckets: make([]int64, n)}
}

func (c *Counters) RecordSuccess(bucket int) {
	c.Buckets[bucket]++
}

func (c *Counters) RecordError() {
	c.Errors++
}

func (c *Counters) RecordTimeout() {
	c.Timeouts++
}

func (c *Counters) RecordClose() {
	c.Closes++
}

// Successes sums the latency buckets.
func (c *Counters) Successes() int64 {
	var n int64
	for _, v := range c.Buckets {
		n += v
	}
	return n
}

// Completed counts requests that reached a terminal state. Closes are bookkeeping only.
func (c *Counters) Completed() int64 {
	return c.Successes() + c.Errors + c.Timeouts
}

// Add folds o into c. Both must have the same number of buckets.
func (c *Counters) Add(o Counters) {
	c.Errors += o.Errors
	c.Timeouts += o.Timeouts
	c.Closes += o.Closes
	for i, v := range o.Buckets {
		c.Buckets[i] += v
	}
}

// Reset zeroes every field, keeping the bucket slice.
func (c *Counters) Reset() {
	c.Errors, c.Timeouts, c.Closes = 0, 0, 0
	clear(c.Buckets)
}

// SnapshotAndReset returns a copy of the current values and zeroes c.
func (c *Counters) SnapshotAndReset() Counters {
	snap := c.Clone()
	c.Reset()
	return snap
}

// Clone returns a deep copy.
func (c *Counters) Clone() Counters {
	b := make([]int64, len(c.Buckets))
	copy(b, c.Buckets)
	return Counters{
		Errors:   c.Errors,
		Timeouts: c.Timeouts,
		Closes:   c.Closes,
		Buckets:  b,
	}
}
