package stats

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidBuckets is returned for an empty, non-positive or unsorted bucket list.
var ErrInvalidBuckets = errors.New("invalid bucket list")

// DefaultBuckets are used when no -b flag is given.
var DefaultBuckets = Buckets{1, 10, 100}

// Buckets holds ascending latency boundaries in milliseconds.
// Bucket i counts durations below b[i]; bucket len(b) is the overflow bucket.
type Buckets []int64

// ParseBuckets parses a comma separated list such as "1,10,100".
func ParseBuckets(list string) (Buckets, error) {
	list = strings.TrimSpace(list)
	if list == "" {
		return nil, fmt.Errorf("%w: empty list", ErrInvalidBuckets)
	}

	parts := strings.Split(list, ",")
	b := make(Buckets, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidBuckets, p, err)
		}
		b = append(b, v)
	}

	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks that the list is non-empty, starts above zero and is strictly increasing.
func (b Buckets) Validate() error {
	if len(b) == 0 {
		return fmt.Errorf("%w: empty list", ErrInvalidBuckets)
	}
	if b[0] <= 0 {
		return fmt.Errorf("%w: first bucket must be >0", ErrInvalidBuckets)
	}
	for i := 1; i < len(b); i++ {
		if b[i] <= b[i-1] {
			return fmt.Errorf("%w: %d does not follow %d", ErrInvalidBuckets, b[i], b[i-1])
		}
	}
	return nil
}

// Classify returns the index of the bucket d falls into.
func (b Buckets) Classify(d time.Duration) int {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	for i, limit := range b {
		if ms < limit {
			return i
		}
	}
	return len(b)
}

// Count is the number of counters needed, overflow included.
func (b Buckets) Count() int {
	return len(b) + 1
}

// Max is the largest boundary, used as the request timeout.
func (b Buckets) Max() time.Duration {
	if len(b) == 0 {
		return 0
	}
	return time.Duration(b[len(b)-1]) * time.Millisecond
}

// Labels names every counter column: "<1", "<10", ..., ">=100".
func (b Buckets) Labels() []string {
	labels := make([]string, 0, b.Count())
	for _, v := range b {
		labels = append(labels, "<"+strconv.FormatInt(v, 10))
	}
	if len(b) > 0 {
		labels = append(labels, ">="+strconv.FormatInt(b[len(b)-1], 10))
	}
	return labels
}

func (b Buckets) String() string {
	s := make([]string, len(b))
	for i, v := range b {
		s[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(s, ",")
}
