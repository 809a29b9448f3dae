package wire

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestWriteRequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	req := Request{Method: "post", Path: "/upload_image", Header: Header{}, Body: []byte("abc")}
	req.Header.Set("Content-Type", "image/jpeg")
	if err := WriteRequest(&buf, req); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadRequest(bufio.NewReader(&buf), DefaultLimits())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Verb() != "POST" || got.Route() != "/upload_image" || string(got.Body) != "abc" {
		t.Fatalf("unexpected request %+v", got)
	}
	if got.Header.Get("content-type") != "image/jpeg" {
		t.Fatalf("content type lost: %+v", got.Header)
	}
}

func TestReadResponseFromWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteResponse(&buf, JSON(StatusOK, `{"request_fov":1}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	resp, err := ReadResponse(&buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Status != StatusOK || resp.ContentType != ContentTypeJSON || string(resp.Body) != `{"request_fov":1}` {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestReadResponseWithoutLength(t *testing.T) {
	resp, err := ReadResponse(strings.NewReader("HTTP/1.1 503 Service Unavailable\r\n\r\nPose unavailable"), DefaultLimits())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Status != StatusServiceUnavailable || string(resp.Body) != "Pose unavailable" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestReadResponseMalformed(t *testing.T) {
	_, err := ReadResponse(strings.NewReader("GET / HTTP/1.1\r\n\r\n"), DefaultLimits())
	if !errors.Is(err, ErrMalformedStatusLine) {
		t.Fatalf("expected ErrMalformedStatusLine, got %v", err)
	}
}
