package main

import (
	"fmt"
	"strings"

	"github.com/danmuck/xpbridge/internal/config"
	"github.com/danmuck/xpbridge/internal/frames"
)

type overrideFlags struct {
	listenAddr string
	opsAddr    string
	decoder    string
	dumpPath   string
}

// resolveConfig loads path (or defaults when empty) and applies flags the
// user set explicitly.
func resolveConfig(path string, flags overrideFlags, changed func(string) bool) (config.Config, error) {
	cfg := config.Default()
	if strings.TrimSpace(path) != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if changed("listen") {
		cfg.ListenAddr = strings.TrimSpace(flags.listenAddr)
	}
	if changed("ops") {
		cfg.OpsAddr = strings.TrimSpace(flags.opsAddr)
	}
	if changed("decoder") {
		kind, err := frames.ParseKind(flags.decoder)
		if err != nil {
			return config.Config{}, fmt.Errorf("parse --decoder: %w", err)
		}
		cfg.DefaultDecoder = kind
	}
	if changed("dump") {
		cfg.FrameDumpPath = strings.TrimSpace(flags.dumpPath)
	}

	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
