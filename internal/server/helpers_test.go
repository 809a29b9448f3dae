package server

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/xpbridge/internal/frames"
	"github.com/danmuck/xpbridge/internal/mainloop"
	"github.com/danmuck/xpbridge/internal/posemath"
	"github.com/danmuck/xpbridge/internal/profiling"
)

type fakeRenderer struct {
	mu       sync.Mutex
	textures []frames.Texture
	fovH     float64
	fovV     float64
}

func (r *fakeRenderer) ApplyTexture(tex frames.Texture) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.textures = append(r.textures, tex)
	return nil
}

func (r *fakeRenderer) UpdateFov(h, v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fovH, r.fovV = h, v
}

func (r *fakeRenderer) snapshot() ([]frames.Texture, float64, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]frames.Texture, len(r.textures))
	copy(out, r.textures)
	return out, r.fovH, r.fovV
}

type fakeCursor struct {
	mu    sync.Mutex
	ready bool
	x, y  float64
	moves int
}

func (c *fakeCursor) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

func (c *fakeCursor) ApplyTexture(frames.Texture) error { return nil }

func (c *fakeCursor) UpdateCursorPosition(x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.x, c.y = x, y
	c.moves++
}

type fakePoses struct {
	mu  sync.Mutex
	pos posemath.Vec3
	rot posemath.Quat
	ok  bool
}

func (p *fakePoses) HeadsetAnchorPose() (posemath.Vec3, posemath.Quat, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos, p.rot, p.ok
}

func (p *fakePoses) set(pos posemath.Vec3, rot posemath.Quat, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pos, p.rot, p.ok = pos, rot, ok
}

type fakeGrab bool

func (g fakeGrab) LeftGrabActive() bool { return bool(g) }

type testBridge struct {
	srv      *Server
	queue    *mainloop.Queue
	renderer *fakeRenderer
	cursor   *fakeCursor
	poses    *fakePoses
}

func newTestBridge(t *testing.T, mutate func(*Config, *Deps)) *testBridge {
	t.Helper()
	b := &testBridge{
		queue:    mainloop.NewQueue(),
		renderer: &fakeRenderer{},
		cursor:   &fakeCursor{},
		poses:    &fakePoses{rot: posemath.QuatIdentity()},
	}
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	deps := Deps{
		Scheduler: b.queue,
		Profiler:  profiling.New(true, time.Minute),
		Poses:     b.poses,
		Renderer:  b.renderer,
		Cursor:    b.cursor,
	}
	if mutate != nil {
		mutate(&cfg, &deps)
	}
	srv, err := New(cfg, deps)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop() })
	b.srv = srv
	return b
}

func (b *testBridge) drain() {
	for b.queue.Len() > 0 {
		b.queue.Drain()
	}
}

type reply struct {
	status int
	body   string
	ctype  string
}

func (b *testBridge) send(t *testing.T, method, path, contentType string, body []byte) reply {
	t.Helper()
	head := fmt.Sprintf("%s %s HTTP/1.1\r\nHost: test\r\n", method, path)
	if contentType != "" {
		head += "Content-Type: " + contentType + "\r\n"
	}
	if body != nil {
		head += fmt.Sprintf("Content-Length: %d\r\n", len(body))
	}
	head += "\r\n"
	return b.sendRaw(t, append([]byte(head), body...))
}

func (b *testBridge) sendRaw(t *testing.T, raw []byte) reply {
	t.Helper()
	conn, err := net.DialTimeout("tcp", b.srv.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write(raw); err != nil {
		t.Fatalf("write: %v", err)
	}
	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return reply{status: resp.StatusCode, body: string(data), ctype: resp.Header.Get("Content-Type")}
}

func (b *testBridge) unlockFov(t *testing.T) {
	t.Helper()
	r := b.send(t, "POST", RouteFov, "application/json", []byte(`{"vertical_fov":60,"horizontal_fov":90}`))
	if r.status != 200 {
		t.Fatalf("fov unlock failed: %+v", r)
	}
}

func rawFrame(w, h int32, fill byte) []byte {
	buf := make([]byte, 8+int(w)*int(h)*4)
	buf[0], buf[1], buf[2], buf[3] = byte(w), byte(w>>8), byte(w>>16), byte(w>>24)
	buf[4], buf[5], buf[6], buf[7] = byte(h), byte(h>>8), byte(h>>16), byte(h>>24)
	for i := 8; i < len(buf); i++ {
		buf[i] = fill
	}
	return buf
}
