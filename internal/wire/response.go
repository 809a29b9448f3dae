package wire

import (
	"fmt"
	"io"
)

const (
	StatusOK                 = 200
	StatusBadRequest         = 400
	StatusNotFound           = 404
	StatusMethodNotAllowed   = 405
	StatusPayloadTooLarge    = 413
	StatusServiceUnavailable = 503
)

const (
	ContentTypeText = "text/plain"
	ContentTypeJSON = "application/json"
)

var statusText = map[int]string{
	StatusOK:                 "OK",
	StatusBadRequest:         "Bad Request",
	StatusNotFound:           "Not Found",
	StatusMethodNotAllowed:   "Method Not Allowed",
	StatusPayloadTooLarge:    "Payload Too Large",
	StatusServiceUnavailable: "Service Unavailable",
}

// StatusText returns the reason phrase for a status code the bridge emits.
func StatusText(code int) string {
	if s, ok := statusText[code]; ok {
		return s
	}
	return "Status"
}

// Response is one reply; the connection is always closed after it.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

func Text(status int, msg string) Response {
	return Response{Status: status, ContentType: ContentTypeText, Body: []byte(msg)}
}

func JSON(status int, body string) Response {
	return Response{Status: status, ContentType: ContentTypeJSON, Body: []byte(body)}
}

// WriteResponse serializes resp. Header and body go out in a single write.
func WriteResponse(w io.Writer, resp Response) error {
	contentType := resp.ContentType
	if contentType == "" {
		contentType = ContentTypeText
	}
	head := fmt.Sprintf(
		"HTTP/1.1 %d %s\r\nContent-Type: %s\r\nContent-Length: %d\r\nConnection: close\r\n\r\n",
		resp.Status,
		StatusText(resp.Status),
		contentType,
		len(resp.Body),
	)
	out := make([]byte, 0, len(head)+len(resp.Body))
	out = append(out, head...)
	out = append(out, resp.Body...)
	_, err := w.Write(out)
	return err
}
