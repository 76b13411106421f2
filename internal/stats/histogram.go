package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// SafeHistogram is a thread-safe wrapper around hdrhistogram
type SafeHistogram struct {
	hist *hdrhistogram.Histogram
	mu   sync.Mutex
}

func NewSafeHistogram() *SafeHistogram {
	// 1us to 10min, 3 significant figures
	h := hdrhistogram.New(1, int64(10*time.Minute/time.Microsecond), 3)
	return &SafeHistogram{hist: h}
}

// Record stores a latency with microsecond resolution. Latencies past the
// trackable range count as the maximum.
func (h *SafeHistogram) Record(d time.Duration) error {
	us := d.Microseconds()
	if us < 1 {
		us = 1
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	us = min(us, h.hist.HighestTrackableValue())
	return h.hist.RecordValue(us)
}

// Merge adds all values of other into h. Values other could not hold are dropped.
func (h *SafeHistogram) Merge(other *SafeHistogram) int64 {
	other.mu.Lock()
	snap := other.hist.Export()
	other.mu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.Merge(hdrhistogram.Import(snap))
}

// QuantileMs returns the value at quantile q (0-100) in milliseconds
func (h *SafeHistogram) QuantileMs(q float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return float64(h.hist.ValueAtQuantile(q)) / 1000.0
}

func (h *SafeHistogram) MaxMs() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return float64(h.hist.Max()) / 1000.0
}

func (h *SafeHistogram) TotalCount() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.TotalCount()
}
