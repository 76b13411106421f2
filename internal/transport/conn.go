package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// ErrClosed is returned by RoundTrip on a connection its owner already closed.
var ErrClosed = errors.New("connection closed")

// Conn is a single reusable connection. At most one RoundTrip is active at a time.
type Conn interface {
	// RoundTrip sends req and reads the full response. It blocks until the
	// response is read, an error occurs or Close is called.
	RoundTrip(req *Request) (*Response, error)
	// Close tears the connection down and unblocks a pending RoundTrip.
	// It is safe to call more than once.
	Close() error
}

// Dialer hands out connections. onClose is invoked from the I/O goroutine
// whenever the peer closes the underlying socket.
type Dialer interface {
	Dial(onClose func()) Conn
}

// TCPDialer produces lazily connected TCP connections to one address.
type TCPDialer struct {
	Addr           string
	ConnectTimeout time.Duration
}

func NewTCPDialer(addr string, connectTimeout time.Duration) *TCPDialer {
	return &TCPDialer{Addr: addr, ConnectTimeout: connectTimeout}
}

func (d *TCPDialer) Dial(onClose func()) Conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &tcpConn{
		dialer:  d,
		ctx:     ctx,
		cancel:  cancel,
		onClose: onClose,
	}
}

type tcpConn struct {
	dialer  *TCPDialer
	ctx     context.Context
	cancel  context.CancelFunc
	onClose func()

	mu     sync.Mutex
	nc     net.Conn
	br     *bufio.Reader
	bw     *bufio.Writer
	closed bool
}

func (c *tcpConn) connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.nc != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	d := net.Dialer{Timeout: c.dialer.ConnectTimeout}
	nc, err := d.DialContext(c.ctx, "tcp", c.dialer.Addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.dialer.Addr, err)
	}

	// Reset instead of FIN on close so a replaced connection frees its port at once.
	if tc, ok := nc.(*net.TCPConn); ok {
		tc.SetLinger(0)
		tc.SetNoDelay(true)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		nc.Close()
		return ErrClosed
	}
	c.nc = nc
	c.br = bufio.NewReader(nc)
	c.bw = bufio.NewWriter(nc)
	return nil
}

// drop forgets the socket so the next RoundTrip reconnects.
func (c *tcpConn) drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nc != nil {
		c.nc.Close()
		c.nc = nil
	}
}

func (c *tcpConn) RoundTrip(req *Request) (*Response, error) {
	if err := c.connect(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	br, bw := c.br, c.bw
	c.mu.Unlock()

	if err := req.Write(bw); err != nil {
		c.drop()
		return nil, c.wrap("write", err)
	}

	resp, err := http.ReadResponse(br, &http.Request{Method: req.Method})
	if err != nil {
		c.drop()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			c.peerClosed()
		}
		return nil, c.wrap("read", err)
	}

	_, err = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if err != nil {
		c.drop()
		return nil, c.wrap("read body", err)
	}

	if resp.Close {
		c.drop()
		c.peerClosed()
	}

	return &Response{StatusCode: resp.StatusCode, Close: resp.Close}, nil
}

func (c *tcpConn) peerClosed() {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if !closed && c.onClose != nil {
		c.onClose()
	}
}

func (c *tcpConn) wrap(op string, err error) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (c *tcpConn) Close() error {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.nc != nil {
		err := c.nc.Close()
		c.nc = nil
		return err
	}
	return nil
}
