// Package report holds the tab separated line protocol between workers and
// the parent, the aggregator that merges it, and the final summary.
//
// Worker line: seq errors timeouts closes b0 ... bN
// Merged line: ts errors timeouts closes b0 ... bN rate
package report

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"hstress/internal/stats"
)

// MaxLineLength bounds one report line; longer input is a protocol error.
const MaxLineLength = 64 << 10

var (
	ErrMalformedLine = errors.New("malformed report line")
	ErrLineTooLong   = errors.New("report line too long")
)

// Line is one worker report.
type Line struct {
	Seq int64
	stats.Counters
}

// WriteWorkerLine writes a worker report line.
func WriteWorkerLine(w io.Writer, seq int64, c stats.Counters) error {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(seq, 10))
	writeCounters(&b, c)
	b.WriteByte('\n')

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteMergedLine writes a merged line stamped with a unix timestamp.
func WriteMergedLine(w io.Writer, ts int64, c stats.Counters, rate int64) error {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(ts, 10))
	writeCounters(&b, c)
	b.WriteByte('\t')
	b.WriteString(strconv.FormatInt(rate, 10))
	b.WriteByte('\n')

	_, err := io.WriteString(w, b.String())
	return err
}

func writeCounters(b *strings.Builder, c stats.Counters) {
	for _, v := range []int64{c.Errors, c.Timeouts, c.Closes} {
		b.WriteByte('\t')
		b.WriteString(strconv.FormatInt(v, 10))
	}
	for _, v := range c.Buckets {
		b.WriteByte('\t')
		b.WriteString(strconv.FormatInt(v, 10))
	}
}

func parseFields(s string) ([]int64, error) {
	fields := strings.Split(strings.TrimRight(s, "\r\n"), "\t")
	out := make([]int64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("%w: field %d %q", ErrMalformedLine, i, f)
		}
		out[i] = v
	}
	return out, nil
}

// ParseWorkerLine parses a worker line carrying exactly nbuckets latency buckets.
func ParseWorkerLine(s string, nbuckets int) (Line, error) {
	v, err := parseFields(s)
	if err != nil {
		return Line{}, err
	}
	if len(v) != 4+nbuckets {
		return Line{}, fmt.Errorf("%w: want %d fields, got %d", ErrMalformedLine, 4+nbuckets, len(v))
	}

	buckets := make([]int64, nbuckets)
	copy(buckets, v[4:])

	return Line{
		Seq: v[0],
		Counters: stats.Counters{
			Errors:   v[1],
			Timeouts: v[2],
			Closes:   v[3],
			Buckets:  buckets,
		},
	}, nil
}

// MergedLine is a parsed parent line.
type MergedLine struct {
	Timestamp int64
	stats.Counters
	Rate int64
}

// ParseMergedLine parses a merged line; the bucket count is inferred.
func ParseMergedLine(s string) (MergedLine, error) {
	v, err := parseFields(s)
	if err != nil {
		return MergedLine{}, err
	}
	if len(v) < 6 {
		return MergedLine{}, fmt.Errorf("%w: want at least 6 fields, got %d", ErrMalformedLine, len(v))
	}

	buckets := make([]int64, len(v)-5)
	copy(buckets, v[4:len(v)-1])

	return MergedLine{
		Timestamp: v[0],
		Counters: stats.Counters{
			Errors:   v[1],
			Timeouts: v[2],
			Closes:   v[3],
			Buckets:  buckets,
		},
		Rate: v[len(v)-1],
	}, nil
}

// NewLineScanner yields complete lines of at most MaxLineLength bytes.
// A longer line stops the scanner with an error wrapping ErrLineTooLong.
func NewLineScanner(r io.Reader) *LineScanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), MaxLineLength)
	return &LineScanner{s: s}
}

// LineScanner wraps bufio.Scanner with protocol errors.
type LineScanner struct {
	s *bufio.Scanner
}

func (l *LineScanner) Scan() bool {
	return l.s.Scan()
}

func (l *LineScanner) Text() string {
	return l.s.Text()
}

func (l *LineScanner) Err() error {
	err := l.s.Err()
	if errors.Is(err, bufio.ErrTooLong) {
		return fmt.Errorf("%w: limit %d bytes", ErrLineTooLong, MaxLineLength)
	}
	return err
}
