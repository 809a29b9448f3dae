// Package wire implements the bridge's minimal HTTP-like request/response
// framing: one request per TCP connection, CRLF headers, an optional
// Content-Length body, and a Connection: close response.
package wire

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	DefaultMaxHeaderBytes = 64 * 1024
	DefaultMaxBodyBytes   = 8 * 1024 * 1024
)

var (
	ErrHeaderTooLarge       = errors.New("wire: header block too large")
	ErrMalformedRequestLine = errors.New("wire: malformed request line")
	ErrShortBody            = errors.New("wire: body shorter than content-length")
	ErrBodyTooLarge         = errors.New("wire: body too large")
	ErrConnClosed           = errors.New("wire: connection closed before header end")
)

// Limits constrains request decode memory use.
type Limits struct {
	MaxHeaderBytes int
	MaxBodyBytes   int
}

func DefaultLimits() Limits {
	return Limits{
		MaxHeaderBytes: DefaultMaxHeaderBytes,
		MaxBodyBytes:   DefaultMaxBodyBytes,
	}
}

// Header holds request headers keyed by canonical lower-case name.
type Header map[string]string

func (h Header) Get(name string) string {
	return h[strings.ToLower(strings.TrimSpace(name))]
}

func (h Header) Lookup(name string) (string, bool) {
	v, ok := h[strings.ToLower(strings.TrimSpace(name))]
	return v, ok
}

func (h Header) Set(name, value string) {
	h[strings.ToLower(strings.TrimSpace(name))] = value
}

// Request is one parsed client request.
type Request struct {
	Method string
	Path   string
	Header Header
	Body   []byte
}

// Route returns the path without its query string, lower-cased for routing.
func (r Request) Route() string {
	p := r.Path
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return strings.ToLower(p)
}

// Verb returns the upper-cased method.
func (r Request) Verb() string {
	return strings.ToUpper(r.Method)
}

// ReadRequest reads one request from r. Header bytes are consumed one at a
// time so that nothing past the header terminator is buffered away from the
// body read.
func ReadRequest(r io.Reader, limits Limits) (Request, error) {
	if limits.MaxHeaderBytes <= 0 {
		limits.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if limits.MaxBodyBytes <= 0 {
		limits.MaxBodyBytes = DefaultMaxBodyBytes
	}

	br, ok := r.(io.ByteReader)
	if !ok {
		br = &byteReader{r: r}
	}

	raw, err := readHeaderBlock(br, limits.MaxHeaderBytes)
	if err != nil {
		return Request{}, err
	}

	req, err := parseHeaderBlock(raw)
	if err != nil {
		return Request{}, err
	}

	n, ok := contentLength(req.Header)
	if !ok || n == 0 {
		req.Body = []byte{}
		return req, nil
	}
	if n > limits.MaxBodyBytes {
		return req, fmt.Errorf("%w: content-length=%d max=%d", ErrBodyTooLarge, n, limits.MaxBodyBytes)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(asReader(r, br), body); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return req, ErrShortBody
		}
		return req, err
	}
	req.Body = body
	return req, nil
}

// readHeaderBlock consumes bytes up to and including CRLFCRLF.
func readHeaderBlock(br io.ByteReader, maxBytes int) ([]byte, error) {
	buf := make([]byte, 0, 512)
	matched := 0
	for {
		b, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrConnClosed
			}
			return nil, err
		}
		buf = append(buf, b)

		switch {
		case matched == 0 && b == '\r':
			matched = 1
		case matched == 1 && b == '\n':
			matched = 2
		case matched == 2 && b == '\r':
			matched = 3
		case matched == 3 && b == '\n':
			return buf, nil
		case b == '\r':
			matched = 1
		default:
			matched = 0
		}

		if len(buf) > maxBytes {
			return nil, ErrHeaderTooLarge
		}
	}
}

func parseHeaderBlock(raw []byte) (Request, error) {
	lines := strings.Split(string(raw), "\r\n")
	if len(lines) == 0 || lines[0] == "" {
		return Request{}, ErrMalformedRequestLine
	}

	parts := strings.Split(lines[0], " ")
	if len(parts) < 2 {
		return Request{}, ErrMalformedRequestLine
	}

	req := Request{
		Method: parts[0],
		Path:   parts[1],
		Header: make(Header),
	}
	for _, line := range lines[1:] {
		if line == "" {
			break
		}
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			continue
		}
		req.Header.Set(line[:colon], strings.TrimSpace(line[colon+1:]))
	}
	return req, nil
}

func contentLength(h Header) (int, bool) {
	raw, ok := h.Lookup("Content-Length")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// asReader unwraps the single-byte adapter so the body is read in bulk.
func asReader(r io.Reader, br io.ByteReader) io.Reader {
	if w, ok := br.(*byteReader); ok {
		return w.r
	}
	return r
}

type byteReader struct {
	r   io.Reader
	one [1]byte
}

func (b *byteReader) ReadByte() (byte, error) {
	for {
		n, err := b.r.Read(b.one[:])
		if n == 1 {
			return b.one[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}
