package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hstress/internal/report"
	"hstress/internal/stats"
)

func gather(t *testing.T, e *Exporter) map[string]map[string]float64 {
	t.Helper()

	families, err := e.Registry().Gather()
	require.NoError(t, err)

	out := map[string]map[string]float64{}
	for _, mf := range families {
		values := map[string]float64{}
		for _, m := range mf.GetMetric() {
			key := ""
			for _, lp := range m.GetLabel() {
				if lp.GetName() != "run_id" {
					key = lp.GetValue()
				}
			}
			switch {
			case m.GetCounter() != nil:
				values[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[key] = m.GetGauge().GetValue()
			}
		}
		out[mf.GetName()] = values
	}
	return out
}

func TestExporter_Observe(t *testing.T) {
	e := NewExporter(stats.DefaultBuckets, "run-1")

	e.Observe(report.Merged{
		Seq:      0,
		Time:     time.Unix(1700000001, 0),
		Counters: stats.Counters{Errors: 1, Timeouts: 2, Closes: 3, Buckets: []int64{4, 5, 0, 1}},
		Rate:     10,
	})
	e.Observe(report.Merged{
		Seq:      1,
		Time:     time.Unix(1700000002, 0),
		Counters: stats.Counters{Buckets: []int64{1, 0, 0, 0}},
		Rate:     1,
	})

	got := gather(t, e)

	assert.Equal(t, 11.0, got["hstress_requests_total"]["success"])
	assert.Equal(t, 1.0, got["hstress_requests_total"]["error"])
	assert.Equal(t, 2.0, got["hstress_requests_total"]["timeout"])
	assert.Equal(t, 3.0, got["hstress_peer_closes_total"][""])
	assert.Equal(t, 5.0, got["hstress_latency_bucket_total"]["<1"])
	assert.Equal(t, 5.0, got["hstress_latency_bucket_total"]["<10"])
	assert.Equal(t, 1.0, got["hstress_latency_bucket_total"][">=100"])
	assert.Equal(t, 1.0, got["hstress_success_rate_hz"][""])
	assert.Equal(t, 2.0, got["hstress_intervals_total"][""])
	assert.Equal(t, 1700000002.0, got["hstress_last_interval_timestamp_seconds"][""])
}

func TestExporter_Handler(t *testing.T) {
	e := NewExporter(stats.DefaultBuckets, "run-2")
	e.Observe(report.Merged{Counters: stats.Counters{Buckets: []int64{1, 0, 0, 0}}, Rate: 7})

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `hstress_success_rate_hz{run_id="run-2"} 7`)
	assert.Contains(t, string(body), `hstress_requests_total{outcome="success",run_id="run-2"} 1`)
}
