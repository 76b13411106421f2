package runner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"hstress/internal/stats"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the run parameters. It is immutable once the run starts.
type Config struct {
	Host        string
	Port        int
	Concurrency int           // in-flight requests per worker
	Count       int64         // total requests across workers, negative for unbounded
	Reuse       int64         // requests per connection, negative for unlimited
	Buckets     stats.Buckets // latency boundaries in ms
	Interval    time.Duration // reporting interval
	Procs       int           // number of workers
	Timeout     time.Duration // per request; zero means the largest bucket

	ConnectTimeout time.Duration
	RateThreshold  int64 // successes between two rate samples

	Fork        bool
	ReplayFile  string
	MetricsAddr string
}

// DefaultConfig mirrors the CLI defaults.
func DefaultConfig() Config {
	return Config{
		Host:          "127.0.0.1",
		Port:          80,
		Concurrency:   1,
		Count:         -1,
		Reuse:         -1,
		Buckets:       stats.DefaultBuckets,
		Interval:      time.Second,
		Procs:         1,
		RateThreshold: 10000,
	}
}

func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be >= 1, got %d", ErrInvalidConfig, c.Concurrency)
	}
	if c.Procs < 1 {
		return fmt.Errorf("%w: process count must be >= 1, got %d", ErrInvalidConfig, c.Procs)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: report interval must be positive", ErrInvalidConfig)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}
	if err := c.Buckets.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// HostHeader is the value of the Host header: host:port.
func (c Config) HostHeader() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Addr is the dial address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Resolve looks the host up once and returns the address to dial. A host
// that does not resolve is a configuration error.
func (c Config) Resolve(ctx context.Context) (string, error) {
	addrs, err := net.DefaultResolver.LookupHost(ctx, c.Host)
	if err != nil {
		return "", fmt.Errorf("%w: resolve host %q: %w", ErrInvalidConfig, c.Host, err)
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("%w: host %q has no addresses", ErrInvalidConfig, c.Host)
	}
	return net.JoinHostPort(addrs[0], strconv.Itoa(c.Port)), nil
}

// WorkerBudget splits Count evenly across workers.
func (c Config) WorkerBudget() int64 {
	if c.Count < 0 {
		return -1
	}
	return c.Count / int64(c.Procs)
}

// RequestTimeout is the largest tolerable latency.
func (c Config) RequestTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return c.Buckets.Max()
}

// KeepAlive reports whether connections are reused at all.
func (c Config) KeepAlive() bool {
	return c.Reuse < 0 || c.Reuse > 1
}
