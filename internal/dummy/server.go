package dummy

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"time"
)

// ContentSize is the size of the body served on every unlisted path.
const ContentSize = 6 * 1024

var content = bytes.Repeat([]byte{'Z'}, ContentSize)

type ServerConfig struct {
	Host string
	Port int
	// Sleep replaces time.Sleep in the latency-shaped endpoints.
	Sleep func(time.Duration)
}

func sleeper(cfg ServerConfig) func(time.Duration) {
	if cfg.Sleep != nil {
		return cfg.Sleep
	}
	return time.Sleep
}

// Handler serves the fixed content body on "/" and every path not listed
// below, plus endpoints with a known latency profile.
func Handler(cfg ServerConfig) http.Handler {
	sleep := sleeper(cfg)
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		w.WriteHeader(http.StatusOK)
		w.Write(content)
	})

	// 10-50ms
	mux.HandleFunc("/fast", func(w http.ResponseWriter, r *http.Request) {
		sleep(time.Duration(rand.IntN(40)+10) * time.Millisecond)
		w.Write([]byte("Fast response"))
	})

	// 100-300ms
	mux.HandleFunc("/medium", func(w http.ResponseWriter, r *http.Request) {
		sleep(time.Duration(rand.IntN(200)+100) * time.Millisecond)
		w.Write([]byte("Medium response"))
	})

	// 1-2s, past the default largest bucket
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		sleep(time.Duration(rand.IntN(1000)+1000) * time.Millisecond)
		w.Write([]byte("Slow response"))
	})

	// Usually 20ms, 5% of the time 2s.
	mux.HandleFunc("/spike", func(w http.ResponseWriter, r *http.Request) {
		if rand.Float32() < 0.05 {
			sleep(2 * time.Second)
		} else {
			sleep(20 * time.Millisecond)
		}
		w.Write([]byte("Spikey response"))
	})

	// Drops 20% of connections without a response, answers the rest.
	mux.HandleFunc("/error", func(w http.ResponseWriter, r *http.Request) {
		if rand.Float32() < 0.2 {
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					conn.Close()
					return
				}
			}
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("OK"))
	})

	return mux
}

// Start serves until ctx is done.
func Start(ctx context.Context, cfg ServerConfig, logger *slog.Logger) error {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	server := &http.Server{
		Addr:              addr,
		Handler:           Handler(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("content server listening", "addr", addr, "endpoints", "/ /fast /medium /slow /spike /error")
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
