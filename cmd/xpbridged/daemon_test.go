package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/xpbridge/internal/config"
	"github.com/danmuck/xpbridge/internal/server"
	"github.com/danmuck/xpbridge/internal/testutil/testlog"
)

func roundTrip(t *testing.T, addr, raw string) string {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.WriteString(conn, raw); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(out)
}

func TestBridgeServesAndStops(t *testing.T) {
	testlog.Start(t)
	cfg := config.Default()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.OpsAddr = ""
	cfg.BasePoseSettle = 0

	b, err := newBridge(cfg)
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for b.srv.Addr() == nil || !b.srv.BasePose().Set {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("bridge did not come up")
		}
		time.Sleep(10 * time.Millisecond)
	}
	addr := b.srv.Addr().String()

	fov := `{"vertical_fov":50,"horizontal_fov":80}`
	resp := roundTrip(t, addr, fmt.Sprintf("POST /send_fov HTTP/1.1\r\nContent-Length: %d\r\n\r\n%s", len(fov), fov))
	if !strings.Contains(resp, "FOV updated") {
		t.Fatalf("unexpected fov reply %q", resp)
	}

	resp = roundTrip(t, addr, "GET /get_camera HTTP/1.1\r\n\r\n")
	if !strings.Contains(resp, `"orientation_deg":[`) || !strings.Contains(resp, `"go_closer":0`) {
		t.Fatalf("unexpected camera reply %q", resp)
	}

	deadline = time.Now().Add(2 * time.Second)
	for {
		if h, v := b.renderer.Fov(); h == 80 && v == 50 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("fov never reached renderer")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("bridge did not stop")
	}
	if b.srv.Phase() != server.PhaseStopped {
		t.Fatalf("phase %s", b.srv.Phase())
	}
}
