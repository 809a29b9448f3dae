package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/xpbridge/internal/config"
	"github.com/danmuck/xpbridge/internal/frames"
	"github.com/danmuck/xpbridge/internal/testutil/testlog"
)

func changedSet(names ...string) func(string) bool {
	set := map[string]bool{}
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}

func TestResolveConfigDefaults(t *testing.T) {
	testlog.Start(t)
	cfg, err := resolveConfig("", overrideFlags{listenAddr: "ignored"}, changedSet())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg != config.Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestResolveConfigFlagsOverrideFile(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "xpbridged.toml")
	body := "listen_addr = \"127.0.0.1:7000\"\nops_addr = \"127.0.0.1:7001\"\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := resolveConfig(path, overrideFlags{opsAddr: "", decoder: "raw"}, changedSet("ops", "decoder"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:7000" {
		t.Fatalf("unexpected listen: %q", cfg.ListenAddr)
	}
	if cfg.OpsAddr != "" {
		t.Fatalf("ops should be disabled, got %q", cfg.OpsAddr)
	}
	if cfg.DefaultDecoder != frames.KindRaw {
		t.Fatalf("unexpected decoder: %q", cfg.DefaultDecoder)
	}
}

func TestResolveConfigRejectsBadDecoder(t *testing.T) {
	testlog.Start(t)
	if _, err := resolveConfig("", overrideFlags{decoder: "gif"}, changedSet("decoder")); err == nil {
		t.Fatalf("expected decoder error")
	}
}

func TestExampleConfigLoads(t *testing.T) {
	testlog.Start(t)
	cfg, err := resolveConfig("ex.config.toml", overrideFlags{}, changedSet())
	if err != nil {
		t.Fatalf("load example: %v", err)
	}
	if cfg.DefaultDecoder != frames.KindAsync {
		t.Fatalf("unexpected decoder: %q", cfg.DefaultDecoder)
	}
	if cfg.ProfilingInterval.String() != "30s" {
		t.Fatalf("unexpected profiling interval: %v", cfg.ProfilingInterval)
	}
}
