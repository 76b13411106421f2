// Package replay turns a captured traffic dump into a pool of requests.
//
// The parser is lenient: it skips anything that does not look like a request
// line, so raw packet dumps with interleaved noise can be fed in directly.
package replay

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"hstress/internal/transport"
)

// DefaultMaxLine bounds a single line of the dump.
const DefaultMaxLine = 64 << 10

var (
	// ErrMalformed marks a request that started but could not be completed.
	// Parsing can continue after it.
	ErrMalformed = errors.New("malformed request")
	// ErrLineTooLong is returned for a line longer than the parser's limit.
	ErrLineTooLong = errors.New("line too long")
)

var methods = []string{http.MethodGet, http.MethodPost, http.MethodPut}

// Parser reads requests one at a time.
type Parser struct {
	r       *bufio.Reader
	maxLine int

	peeked  string
	hasPeek bool
	eof     bool
}

func NewParser(r io.Reader) *Parser {
	return &Parser{r: bufio.NewReader(r), maxLine: DefaultMaxLine}
}

// SetMaxLine changes the line length limit.
func (p *Parser) SetMaxLine(n int) {
	p.maxLine = n
}

// readLine returns the next line without its trailing CR/LF characters.
func (p *Parser) readLine() (string, error) {
	if p.hasPeek {
		p.hasPeek = false
		return p.peeked, nil
	}
	if p.eof {
		return "", io.EOF
	}

	var buf []byte
	tooLong := false
	for {
		chunk, err := p.r.ReadSlice('\n')
		if !tooLong {
			buf = append(buf, chunk...)
			if len(buf) > p.maxLine {
				tooLong = true
				buf = nil
			}
		}

		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return "", err
			}
			p.eof = true
			if len(buf) == 0 && !tooLong {
				return "", io.EOF
			}
		}
		break
	}

	if tooLong {
		return "", ErrLineTooLong
	}
	return string(bytes.TrimRight(buf, "\r\n")), nil
}

func (p *Parser) peekLine() (string, error) {
	if p.hasPeek {
		return p.peeked, nil
	}
	line, err := p.readLine()
	if err != nil {
		return "", err
	}
	p.peeked, p.hasPeek = line, true
	return line, nil
}

func validMethod(m string) (string, bool) {
	for _, v := range methods {
		if strings.EqualFold(v, m) {
			return v, true
		}
	}
	return "", false
}

// parseRequestLine accepts exactly three space separated fields with a known method.
func parseRequestLine(line string) (*transport.Request, bool) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return nil, false
	}
	method, ok := validMethod(fields[0])
	if !ok {
		return nil, false
	}
	if !strings.HasPrefix(fields[2], "HTTP/") {
		return nil, false
	}
	return &transport.Request{
		Method: method,
		URI:    fields[1],
		Proto:  fields[2],
		Header: http.Header{},
	}, true
}

// Next returns the next request. It returns io.EOF once the input is drained
// and an error wrapping ErrMalformed for a request it had to give up on.
func (p *Parser) Next() (*transport.Request, error) {
	var req *transport.Request
	for req == nil {
		line, err := p.readLine()
		if errors.Is(err, ErrLineTooLong) {
			continue
		}
		if err != nil {
			return nil, err
		}
		req, _ = parseRequestLine(line)
	}

	for {
		line, err := p.peekLine()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s %s: truncated headers", ErrMalformed, req.Method, req.URI)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s %s: %v", ErrMalformed, req.Method, req.URI, err)
		}

		key, value, ok := strings.Cut(line, ":")
		value = strings.TrimSpace(value)
		if !ok || key == "" || value == "" || strings.ContainsAny(key, " \t") {
			break
		}
		p.readLine()
		req.Header.Add(strings.TrimSpace(key), value)
	}

	// A non-blank line stays peeked: it may start the next request.
	if line, err := p.peekLine(); err != nil || line != "" {
		return nil, fmt.Errorf("%w: %s %s: missing blank line after headers", ErrMalformed, req.Method, req.URI)
	}
	p.readLine()

	if cl := req.Header.Get("Content-Length"); cl != "" {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: %s %s: bad content-length %q", ErrMalformed, req.Method, req.URI, cl)
		}
		if n > 0 {
			body := make([]byte, n)
			if _, err := io.ReadFull(p.r, body); err != nil {
				p.eof = true
				return nil, fmt.Errorf("%w: %s %s: short body", ErrMalformed, req.Method, req.URI)
			}
			req.Body = body
		}
	}

	return req, nil
}
