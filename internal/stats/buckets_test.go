package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBuckets(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Buckets
		wantErr bool
	}{
		{name: "default", in: "1,10,100", want: Buckets{1, 10, 100}},
		{name: "single", in: "250", want: Buckets{250}},
		{name: "spaces", in: " 5, 50 ,500 ", want: Buckets{5, 50, 500}},
		{name: "empty", in: "", wantErr: true},
		{name: "zero first", in: "0,10", wantErr: true},
		{name: "negative", in: "-1,10", wantErr: true},
		{name: "not increasing", in: "10,10,100", wantErr: true},
		{name: "decreasing", in: "100,10", wantErr: true},
		{name: "garbage", in: "1,x,100", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBuckets(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidBuckets)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuckets_Classify(t *testing.T) {
	b := Buckets{1, 10, 100}

	tests := []struct {
		name string
		d    time.Duration
		want int
	}{
		{name: "sub millisecond", d: 300 * time.Microsecond, want: 0},
		{name: "on first boundary", d: time.Millisecond, want: 1},
		{name: "five ms", d: 5 * time.Millisecond, want: 1},
		{name: "just below 100", d: 99 * time.Millisecond, want: 2},
		{name: "on last boundary", d: 100 * time.Millisecond, want: 3},
		{name: "overflow", d: 150 * time.Millisecond, want: 3},
		{name: "negative clamps", d: -time.Second, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Classify(tt.d))
		})
	}
}

func TestBuckets_ClassifyMonotonic(t *testing.T) {
	lists := []Buckets{{1}, {1, 10, 100}, {3, 7, 20, 21, 500}}

	for _, b := range lists {
		prev := 0
		for ms := 0; ms <= 1000; ms++ {
			got := b.Classify(time.Duration(ms) * time.Millisecond)

			assert.GreaterOrEqual(t, got, prev, "buckets %v at %dms", b, ms)
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, len(b))
			prev = got
		}
	}
}

func TestBuckets_Helpers(t *testing.T) {
	b := Buckets{1, 10, 100}

	assert.Equal(t, 4, b.Count())
	assert.Equal(t, 100*time.Millisecond, b.Max())
	assert.Equal(t, []string{"<1", "<10", "<100", ">=100"}, b.Labels())
	assert.Equal(t, "1,10,100", b.String())
}
