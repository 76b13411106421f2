package dummy

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_Content(t *testing.T) {
	srv := httptest.NewServer(Handler(ServerConfig{}))
	defer srv.Close()

	for _, path := range []string{"/", "/anything/else"} {
		t.Run(path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + path)
			require.NoError(t, err)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, int64(ContentSize), resp.ContentLength)
			assert.Equal(t, bytes.Repeat([]byte("Z"), ContentSize), body)
		})
	}
}

func TestHandler_LatencyEndpoints(t *testing.T) {
	tests := []struct {
		path string
		min  time.Duration
		max  time.Duration
	}{
		{path: "/fast", min: 10 * time.Millisecond, max: 50 * time.Millisecond},
		{path: "/medium", min: 100 * time.Millisecond, max: 300 * time.Millisecond},
		{path: "/slow", min: time.Second, max: 2 * time.Second},
		{path: "/spike", min: 20 * time.Millisecond, max: 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var slept time.Duration
			h := Handler(ServerConfig{Sleep: func(d time.Duration) { slept += d }})

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.GreaterOrEqual(t, slept, tt.min)
			assert.LessOrEqual(t, slept, tt.max)
		})
	}
}
