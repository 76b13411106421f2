// Package transport is a minimal HTTP/1.x client that exposes the connection
// it talks over, so the caller decides when a connection is reused, replaced
// or torn down.
package transport

import (
	"bufio"
	"io"
	"net/http"
	"sort"
	"strconv"
)

// Request is one HTTP request as written on the wire.
type Request struct {
	Method string
	URI    string
	Proto  string
	Header http.Header
	Body   []byte
}

// NewGet builds the synthetic request: GET / HTTP/1.0 with a Host header.
// keepAlive adds "Connection: keep-alive" so an HTTP/1.0 server holds the
// connection open for the next request.
func NewGet(host string, keepAlive bool) *Request {
	h := http.Header{}
	h.Set("Host", host)
	if keepAlive {
		h.Set("Connection", "keep-alive")
	}
	return &Request{
		Method: http.MethodGet,
		URI:    "/",
		Proto:  "HTTP/1.0",
		Header: h,
	}
}

// Write encodes the request. Host goes first, other headers in sorted order.
func (r *Request) Write(w io.Writer) error {
	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriter(w)
	}

	bw.WriteString(r.Method + " " + r.URI + " " + r.Proto + "\r\n")

	if host := r.Header.Get("Host"); host != "" {
		bw.WriteString("Host: " + host + "\r\n")
	}

	keys := make([]string, 0, len(r.Header))
	for k := range r.Header {
		if http.CanonicalHeaderKey(k) == "Host" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		for _, v := range r.Header[k] {
			bw.WriteString(k + ": " + v + "\r\n")
		}
	}

	if len(r.Body) > 0 && r.Header.Get("Content-Length") == "" {
		bw.WriteString("Content-Length: " + strconv.Itoa(len(r.Body)) + "\r\n")
	}

	bw.WriteString("\r\n")
	bw.Write(r.Body)

	return bw.Flush()
}

// Response carries what the caller needs to classify the outcome.
type Response struct {
	StatusCode int
	Close      bool
}
