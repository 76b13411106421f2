package replay

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"hstress/internal/transport"
)

// ErrEmptyPool is returned when a dump yields no usable request.
var ErrEmptyPool = errors.New("no requests in replay source")

// LoadStats counts parsed and rejected requests.
type LoadStats struct {
	OK     int
	Failed int
}

// Pool is a fixed set of requests sampled uniformly. Safe for concurrent use.
type Pool struct {
	reqs []*transport.Request
}

func NewPool(reqs []*transport.Request) *Pool {
	return &Pool{reqs: reqs}
}

// Load parses every request in r. Requests without a Host header get host.
func Load(r io.Reader, host string) (*Pool, LoadStats, error) {
	var (
		stats LoadStats
		reqs  []*transport.Request
	)

	p := NewParser(r)
	for {
		req, err := p.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, ErrMalformed) {
			stats.Failed++
			continue
		}
		if err != nil {
			return nil, stats, err
		}

		if req.Header.Get("Host") == "" && host != "" {
			req.Header.Set("Host", host)
		}
		reqs = append(reqs, req)
		stats.OK++
	}

	if len(reqs) == 0 {
		return nil, stats, ErrEmptyPool
	}
	return NewPool(reqs), stats, nil
}

// LoadFile is Load on a named file.
func LoadFile(path, host string) (*Pool, LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("open replay source: %w", err)
	}
	defer f.Close()

	return Load(f, host)
}

func (p *Pool) Len() int {
	return len(p.reqs)
}

// Pick returns a random request. Callers must not modify it.
func (p *Pool) Pick() *transport.Request {
	return p.reqs[rand.IntN(len(p.reqs))]
}
