package transport

import (
	"bufio"
	"bytes"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCountingServer(t *testing.T, h http.HandlerFunc) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	var conns atomic.Int64
	srv := httptest.NewUnstartedServer(h)
	srv.Config.ConnState = func(_ net.Conn, state http.ConnState) {
		if state == http.StateNew {
			conns.Add(1)
		}
	}
	srv.Start()
	t.Cleanup(srv.Close)

	return srv, &conns
}

func TestRequest_Write(t *testing.T) {
	req := NewGet("example.org:8080", false)

	var buf bytes.Buffer
	require.NoError(t, req.Write(&buf))

	assert.Equal(t, "GET / HTTP/1.0\r\nHost: example.org:8080\r\n\r\n", buf.String())
}

func TestRequest_WriteWithBody(t *testing.T) {
	req := &Request{
		Method: http.MethodPost,
		URI:    "/submit",
		Proto:  "HTTP/1.1",
		Header: http.Header{"Host": {"h"}, "X-B": {"2"}, "X-A": {"1"}},
		Body:   []byte("abc"),
	}

	var buf bytes.Buffer
	require.NoError(t, req.Write(&buf))

	assert.Equal(t,
		"POST /submit HTTP/1.1\r\nHost: h\r\nX-A: 1\r\nX-B: 2\r\nContent-Length: 3\r\n\r\nabc",
		buf.String())
}

func TestTCPConn_ReusesConnection(t *testing.T) {
	srv, conns := newCountingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})

	addr := strings.TrimPrefix(srv.URL, "http://")
	var closes atomic.Int64
	c := NewTCPDialer(addr, time.Second).Dial(func() { closes.Add(1) })
	defer c.Close()

	req := NewGet(addr, true)
	for i := 0; i < 3; i++ {
		resp, err := c.RoundTrip(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.False(t, resp.Close)
	}

	assert.Equal(t, int64(1), conns.Load())
	assert.Zero(t, closes.Load())
}

func TestTCPConn_PeerCloseReconnects(t *testing.T) {
	srv, conns := newCountingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})

	addr := strings.TrimPrefix(srv.URL, "http://")
	var closes atomic.Int64
	c := NewTCPDialer(addr, time.Second).Dial(func() { closes.Add(1) })
	defer c.Close()

	req := NewGet(addr, false)
	for i := 0; i < 2; i++ {
		resp, err := c.RoundTrip(req)
		require.NoError(t, err)
		assert.True(t, resp.Close)
	}

	assert.Equal(t, int64(2), conns.Load())
	assert.Equal(t, int64(2), closes.Load())
}

func TestTCPConn_CloseUnblocksRoundTrip(t *testing.T) {
	release := make(chan struct{})
	srv, _ := newCountingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		<-release
	})
	defer close(release)

	addr := strings.TrimPrefix(srv.URL, "http://")
	c := NewTCPDialer(addr, time.Second).Dial(nil)

	errc := make(chan error, 1)
	go func() {
		_, err := c.RoundTrip(NewGet(addr, true))
		errc <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, c.Close())

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("RoundTrip did not return after Close")
	}

	_, err := c.RoundTrip(NewGet(addr, true))
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, c.Close())
}

func TestTCPConn_ConnectError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	c := NewTCPDialer(addr, time.Second).Dial(nil)
	defer c.Close()

	_, err = c.RoundTrip(NewGet(addr, true))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrClosed)
}

func TestTCPConn_MalformedResponse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		defer nc.Close()
		bufio.NewReader(nc).ReadString('\n')
		nc.Write([]byte("garbage\r\n\r\n"))
	}()

	c := NewTCPDialer(ln.Addr().String(), time.Second).Dial(nil)
	defer c.Close()

	_, err = c.RoundTrip(NewGet("x", false))
	assert.Error(t, err)
}
