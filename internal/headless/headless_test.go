package headless

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/xpbridge/internal/frames"
	"github.com/danmuck/xpbridge/internal/posemath"
	"github.com/danmuck/xpbridge/internal/testutil/testlog"
	"golang.org/x/image/webp"
)

func rgbaTexture(w, h int) frames.Texture {
	data := make([]byte, w*h*4)
	for i := 0; i < len(data); i += 4 {
		data[i], data[i+1], data[i+2], data[i+3] = 10, 20, 30, 255
	}
	return frames.Texture{Format: frames.FormatRGBA8, Width: w, Height: h, Data: data}
}

func TestStaticPose(t *testing.T) {
	testlog.Start(t)
	p := NewStaticPose(posemath.Vec3{1, 2, 3}, posemath.QuatIdentity())
	pos, _, ok := p.HeadsetAnchorPose()
	if !ok || pos != (posemath.Vec3{1, 2, 3}) {
		t.Fatalf("unexpected pose %v ok=%v", pos, ok)
	}
	p.SetAvailable(false)
	if _, _, ok := p.HeadsetAnchorPose(); ok {
		t.Fatalf("expected pose unavailable")
	}
	if (NoGrab{}).LeftGrabActive() {
		t.Fatalf("no grab should never be active")
	}
}

func TestRendererFormats(t *testing.T) {
	testlog.Start(t)
	r := NewRenderer(RendererOptions{})
	if !r.SupportsFormat(frames.FormatRGBA8) || r.SupportsFormat(frames.FormatASTC) {
		t.Fatalf("unexpected format support")
	}
	astc := frames.Texture{Format: frames.FormatASTC, Width: 4, Height: 4, Data: make([]byte, 16)}
	if err := r.ApplyTexture(astc); err == nil {
		t.Fatalf("expected astc rejection")
	}
	if err := r.ApplyTexture(frames.Texture{Format: frames.FormatRGBA8}); err == nil {
		t.Fatalf("expected empty texture rejection")
	}

	r = NewRenderer(RendererOptions{ASTCSupported: true})
	if err := r.ApplyTexture(astc); err != nil {
		t.Fatalf("astc apply: %v", err)
	}
	if r.Frames() != 1 {
		t.Fatalf("expected one frame, got %d", r.Frames())
	}
}

func TestRendererFov(t *testing.T) {
	testlog.Start(t)
	r := NewRenderer(RendererOptions{})
	r.UpdateFov(90, 60)
	if h, v := r.Fov(); h != 90 || v != 60 {
		t.Fatalf("fov h=%v v=%v", h, v)
	}
}

func TestRendererDumpsWebP(t *testing.T) {
	testlog.Start(t)
	dir := filepath.Join(t.TempDir(), "dump")
	r := NewRenderer(RendererOptions{DumpDir: dir, DumpInterval: time.Hour})

	if err := r.ApplyTexture(rgbaTexture(3, 2)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, DumpFileName))
	if err != nil {
		t.Fatalf("read dump: %v", err)
	}
	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode dump: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 3 || b.Dy() != 2 {
		t.Fatalf("unexpected dump bounds %v", b)
	}
	rr, gg, bb, _ := img.At(1, 1).RGBA()
	if rr>>8 != 10 || gg>>8 != 20 || bb>>8 != 30 {
		t.Fatalf("unexpected pixel %d %d %d", rr>>8, gg>>8, bb>>8)
	}

	// Throttled: a second frame inside the interval leaves the dump alone.
	info, _ := os.Stat(filepath.Join(dir, DumpFileName))
	if err := r.ApplyTexture(rgbaTexture(5, 5)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	info2, _ := os.Stat(filepath.Join(dir, DumpFileName))
	if info.Size() != info2.Size() {
		t.Fatalf("dump rewritten inside interval")
	}
	if tex, ok := r.LastTexture(); !ok || tex.Width != 5 {
		t.Fatalf("unexpected last texture %+v", tex)
	}
}

func TestCursorNormalisation(t *testing.T) {
	testlog.Start(t)
	c := NewCursor()
	if c.Ready() {
		t.Fatalf("cursor should start not ready")
	}
	c.SetReady(true)

	c.UpdateCursorPosition(0.25, 0.5)
	if u, v := c.Position(); u != 0.25 || v != 0.5 {
		t.Fatalf("uv passthrough: %v %v", u, v)
	}

	if err := c.ApplyTexture(rgbaTexture(200, 100)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	c.UpdateCursorPosition(50, 75)
	if u, v := c.Position(); u != 0.25 || v != 0.75 {
		t.Fatalf("pixel to uv: %v %v", u, v)
	}

	c.UpdateCursorPosition(-3, 500)
	if u, v := c.Position(); u != 0 || v != 1 {
		t.Fatalf("clamp: %v %v", u, v)
	}
	if c.Frames() != 1 {
		t.Fatalf("expected one frame")
	}
}
