package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var ErrMalformedStatusLine = errors.New("wire: malformed status line")

// WriteRequest serializes req with a Content-Length matching its body.
func WriteRequest(w io.Writer, req Request) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s HTTP/1.1\r\n", req.Verb(), req.Path)
	for name, value := range req.Header {
		if name == "content-length" {
			continue
		}
		fmt.Fprintf(&buf, "%s: %s\r\n", name, value)
	}
	if len(req.Body) > 0 {
		fmt.Fprintf(&buf, "Content-Length: %d\r\n", len(req.Body))
	}
	buf.WriteString("\r\n")
	buf.Write(req.Body)
	_, err := w.Write(buf.Bytes())
	return err
}

// ReadResponse reads one reply. Without a Content-Length the body runs to
// EOF, capped at limits.MaxBodyBytes.
func ReadResponse(r io.Reader, limits Limits) (Response, error) {
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
		return Response{}, err
	}
	lines := strings.Split(string(raw), "\r\n")
	parts := strings.SplitN(lines[0], " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/") {
		return Response{}, fmt.Errorf("%w: %q", ErrMalformedStatusLine, lines[0])
	}
	status, err := strconv.Atoi(parts[1])
	if err != nil {
		return Response{}, fmt.Errorf("%w: %q", ErrMalformedStatusLine, lines[0])
	}

	header := make(Header)
	for _, line := range lines[1:] {
		if colon := strings.IndexByte(line, ':'); colon > 0 {
			header.Set(line[:colon], strings.TrimSpace(line[colon+1:]))
		}
	}
	resp := Response{Status: status, ContentType: header.Get("content-type")}

	body := asReader(r, br)
	if n, ok := contentLength(header); ok {
		if n > limits.MaxBodyBytes {
			return resp, fmt.Errorf("%w: content-length=%d max=%d", ErrBodyTooLarge, n, limits.MaxBodyBytes)
		}
		resp.Body = make([]byte, n)
		if _, err := io.ReadFull(body, resp.Body); err != nil {
			return resp, ErrShortBody
		}
		return resp, nil
	}
	resp.Body, err = io.ReadAll(io.LimitReader(body, int64(limits.MaxBodyBytes)))
	return resp, err
}
