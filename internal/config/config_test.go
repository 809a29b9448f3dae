package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/xpbridge/internal/frames"
	"github.com/danmuck/xpbridge/internal/posemath"
	"github.com/danmuck/xpbridge/internal/testutil/testlog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xpbridged.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWhenEmpty(t *testing.T) {
	testlog.Start(t)
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := Default()
	if cfg != def {
		t.Fatalf("expected defaults\n got %+v\nwant %+v", cfg, def)
	}
}

func TestLoadOverrides(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
listen_addr = "127.0.0.1:5000"
default_decoder = "ASYNC"
max_pending = 5
io_timeout = "2s"
profiling = false
tick_interval = "20ms"
astc_supported = true
worker_decoder = "none"
controller_offset = true
base_pose_settle = "250ms"
frame_dump_path = " /tmp/frames "
headset_position = [1.0, 2.0, 3.0]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:5000" {
		t.Fatalf("unexpected listen addr: %q", cfg.ListenAddr)
	}
	if cfg.DefaultDecoder != frames.KindAsync {
		t.Fatalf("unexpected decoder: %q", cfg.DefaultDecoder)
	}
	if cfg.MaxPending != 5 || cfg.IOTimeout != 2*time.Second || cfg.TickInterval != 20*time.Millisecond {
		t.Fatalf("unexpected numeric settings: %+v", cfg)
	}
	if cfg.Profiling || !cfg.ASTCSupported || !cfg.ControllerOffset {
		t.Fatalf("unexpected flags: %+v", cfg)
	}
	if cfg.WorkerDecoder != frames.WorkerDecoderNone {
		t.Fatalf("unexpected worker decoder: %q", cfg.WorkerDecoder)
	}
	if cfg.BasePoseSettle != 250*time.Millisecond || cfg.BasePoseAnchorTimeout != Default().BasePoseAnchorTimeout {
		t.Fatalf("unexpected base pose timings: %+v", cfg)
	}
	if cfg.FrameDumpPath != "/tmp/frames" {
		t.Fatalf("unexpected dump path: %q", cfg.FrameDumpPath)
	}
	if cfg.HeadsetPosition != [3]float64{1, 2, 3} {
		t.Fatalf("unexpected headset position: %v", cfg.HeadsetPosition)
	}
	if cfg.OpsAddr != Default().OpsAddr {
		t.Fatalf("ops addr should keep default, got %q", cfg.OpsAddr)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"decoder":  `default_decoder = "fancy"`,
		"duration": `io_timeout = "soon"`,
		"pending":  `max_pending = 0`,
		"worker":   `worker_decoder = "gpu"`,
		"addr":     `listen_addr = "  "`,
		"interval": `profiling_interval = "10ms"`,
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := Load(writeConfig(t, `max_pending = 0`)); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	testlog.Start(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestTemplateRoundTrip(t *testing.T) {
	testlog.Start(t)
	tpl, err := Template()
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	for _, key := range []string{"listen_addr", "default_decoder", "worker_decoder", "base_pose_anchor_timeout"} {
		if !strings.Contains(tpl, key) {
			t.Fatalf("template missing %s:\n%s", key, tpl)
		}
	}
	cfg, err := Load(writeConfig(t, tpl))
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("template does not round trip\n got %+v\nwant %+v", cfg, Default())
	}
}

func TestWriteTemplateRespectsOverwrite(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "out.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("forced write: %v", err)
	}
}

func TestServerConfigAndPose(t *testing.T) {
	testlog.Start(t)
	cfg := Default()
	cfg.WorkerDecoder = frames.WorkerDecoderNone
	cfg.MaxImageBytes = 16 * 1024 * 1024
	cfg.HeadsetOrientationDeg = [3]float64{0, 90, 0}

	sc, err := cfg.ServerConfig()
	if err != nil {
		t.Fatalf("server config: %v", err)
	}
	if sc.WorkerDecoder != nil {
		t.Fatalf("expected no worker decoder")
	}
	if sc.Limits.MaxBodyBytes != cfg.MaxImageBytes {
		t.Fatalf("body limit %d should follow max image bytes", sc.Limits.MaxBodyBytes)
	}

	pos, rot := cfg.HeadsetPose()
	if pos[1] != 1.6 {
		t.Fatalf("unexpected position %v", pos)
	}
	right := rot.Rotate(posemath.Right)
	if math.Abs(right[2]) < 0.99 {
		t.Fatalf("unexpected rotation %v", rot)
	}
}
