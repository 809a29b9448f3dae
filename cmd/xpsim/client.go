package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/danmuck/xpbridge/internal/wire"
)

type clientOptions struct {
	addr    string
	timeout time.Duration
}

// client opens one connection per request, as the protocol requires.
type client struct {
	addr    string
	timeout time.Duration
	dialer  net.Dialer
}

func newClient(opts clientOptions) *client {
	return &client{addr: opts.addr, timeout: opts.timeout}
}

func (c *client) do(ctx context.Context, method, path, contentType string, body []byte) (wire.Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return wire.Response{}, fmt.Errorf("dial %s: %w", c.addr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	req := wire.Request{Method: method, Path: path, Header: wire.Header{}, Body: body}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if err := wire.WriteRequest(conn, req); err != nil {
		return wire.Response{}, fmt.Errorf("%s %s: write: %w", method, path, err)
	}
	resp, err := wire.ReadResponse(bufio.NewReader(conn), wire.DefaultLimits())
	if err != nil {
		return wire.Response{}, fmt.Errorf("%s %s: read: %w", method, path, err)
	}
	return resp, nil
}
