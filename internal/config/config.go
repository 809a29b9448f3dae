// Package config loads the bridge daemon settings from TOML. Keys left out
// of the file keep their defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/xpbridge/internal/frames"
	"github.com/danmuck/xpbridge/internal/mainloop"
	"github.com/danmuck/xpbridge/internal/profiling"
	"github.com/danmuck/xpbridge/internal/server"
	"github.com/danmuck/xpbridge/internal/wire"
	"github.com/rs/zerolog/log"
)

var ErrInvalid = errors.New("config: invalid")

// Config is the resolved daemon configuration.
type Config struct {
	ListenAddr            string
	OpsAddr               string
	DefaultDecoder        frames.Kind
	MaxPending            int
	MaxHeaderBytes        int
	MaxImageBytes         int
	IOTimeout             time.Duration
	Profiling             bool
	ProfilingInterval     time.Duration
	TickInterval          time.Duration
	ASTCSupported         bool
	WorkerDecoder         string
	ControllerOffset      bool
	BasePoseSettle        time.Duration
	BasePoseAnchorTimeout time.Duration
	FrameDumpPath         string
	HeadsetPosition       [3]float64
	HeadsetOrientationDeg [3]float64
}

func Default() Config {
	return Config{
		ListenAddr:            server.DefaultAddr,
		OpsAddr:               "127.0.0.1:9598",
		DefaultDecoder:        frames.KindSimple,
		MaxPending:            frames.DefaultMaxPending,
		MaxHeaderBytes:        wire.DefaultMaxHeaderBytes,
		MaxImageBytes:         server.DefaultMaxImageBytes,
		IOTimeout:             server.DefaultIOTimeout,
		Profiling:             true,
		ProfilingInterval:     profiling.DefaultInterval,
		TickInterval:          mainloop.DefaultTick,
		WorkerDecoder:         frames.WorkerDecoderRaster,
		BasePoseSettle:        server.DefaultSettleDelay,
		BasePoseAnchorTimeout: server.DefaultAnchorTimeout,
		HeadsetPosition:       [3]float64{0, 1.6, 0},
	}
}

// fileConfig mirrors the on-disk layout. Durations are Go duration strings.
type fileConfig struct {
	ListenAddr            string     `toml:"listen_addr"`
	OpsAddr               string     `toml:"ops_addr"`
	DefaultDecoder        string     `toml:"default_decoder"`
	MaxPending            int        `toml:"max_pending"`
	MaxHeaderBytes        int        `toml:"max_header_bytes"`
	MaxImageBytes         int        `toml:"max_image_bytes"`
	IOTimeout             string     `toml:"io_timeout"`
	Profiling             bool       `toml:"profiling"`
	ProfilingInterval     string     `toml:"profiling_interval"`
	TickInterval          string     `toml:"tick_interval"`
	ASTCSupported         bool       `toml:"astc_supported"`
	WorkerDecoder         string     `toml:"worker_decoder"`
	ControllerOffset      bool       `toml:"controller_offset"`
	BasePoseSettle        string     `toml:"base_pose_settle"`
	BasePoseAnchorTimeout string     `toml:"base_pose_anchor_timeout"`
	FrameDumpPath         string     `toml:"frame_dump_path"`
	HeadsetPosition       [3]float64 `toml:"headset_position"`
	HeadsetOrientationDeg [3]float64 `toml:"headset_orientation_deg"`
}

// Load reads path over Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config (%s): %w", path, err)
	}
	for _, key := range meta.Undecoded() {
		log.Warn().Str("key", key.String()).Str("path", path).Msg("unknown config key ignored")
	}

	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("ops_addr") {
		cfg.OpsAddr = strings.TrimSpace(raw.OpsAddr)
	}
	if meta.IsDefined("default_decoder") {
		kind, err := frames.ParseKind(raw.DefaultDecoder)
		if err != nil {
			return Config{}, fmt.Errorf("parse default_decoder: %w", err)
		}
		cfg.DefaultDecoder = kind
	}
	if meta.IsDefined("max_pending") {
		cfg.MaxPending = raw.MaxPending
	}
	if meta.IsDefined("max_header_bytes") {
		cfg.MaxHeaderBytes = raw.MaxHeaderBytes
	}
	if meta.IsDefined("max_image_bytes") {
		cfg.MaxImageBytes = raw.MaxImageBytes
	}
	if meta.IsDefined("profiling") {
		cfg.Profiling = raw.Profiling
	}
	if meta.IsDefined("astc_supported") {
		cfg.ASTCSupported = raw.ASTCSupported
	}
	if meta.IsDefined("worker_decoder") {
		cfg.WorkerDecoder = strings.ToLower(strings.TrimSpace(raw.WorkerDecoder))
	}
	if meta.IsDefined("controller_offset") {
		cfg.ControllerOffset = raw.ControllerOffset
	}
	if meta.IsDefined("frame_dump_path") {
		cfg.FrameDumpPath = strings.TrimSpace(raw.FrameDumpPath)
	}
	if meta.IsDefined("headset_position") {
		cfg.HeadsetPosition = raw.HeadsetPosition
	}
	if meta.IsDefined("headset_orientation_deg") {
		cfg.HeadsetOrientationDeg = raw.HeadsetOrientationDeg
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"io_timeout", raw.IOTimeout, &cfg.IOTimeout},
		{"profiling_interval", raw.ProfilingInterval, &cfg.ProfilingInterval},
		{"tick_interval", raw.TickInterval, &cfg.TickInterval},
		{"base_pose_settle", raw.BasePoseSettle, &cfg.BasePoseSettle},
		{"base_pose_anchor_timeout", raw.BasePoseAnchorTimeout, &cfg.BasePoseAnchorTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("%w: listen_addr is required", ErrInvalid)
	}
	if _, err := frames.ParseKind(string(cfg.DefaultDecoder)); err != nil {
		return fmt.Errorf("%w: default_decoder: %w", ErrInvalid, err)
	}
	if _, err := frames.DecoderFactoryByName(cfg.WorkerDecoder); err != nil {
		return fmt.Errorf("%w: worker_decoder: %w", ErrInvalid, err)
	}
	if cfg.MaxPending < 1 {
		return fmt.Errorf("%w: max_pending must be at least 1, got %d", ErrInvalid, cfg.MaxPending)
	}
	if cfg.MaxHeaderBytes < 256 {
		return fmt.Errorf("%w: max_header_bytes must be at least 256, got %d", ErrInvalid, cfg.MaxHeaderBytes)
	}
	if cfg.MaxImageBytes < 1 {
		return fmt.Errorf("%w: max_image_bytes must be positive, got %d", ErrInvalid, cfg.MaxImageBytes)
	}
	if cfg.IOTimeout <= 0 {
		return fmt.Errorf("%w: io_timeout must be positive", ErrInvalid)
	}
	if cfg.TickInterval <= 0 {
		return fmt.Errorf("%w: tick_interval must be positive", ErrInvalid)
	}
	if cfg.Profiling && cfg.ProfilingInterval < time.Second {
		return fmt.Errorf("%w: profiling_interval must be at least 1s", ErrInvalid)
	}
	if cfg.BasePoseSettle < 0 || cfg.BasePoseAnchorTimeout < 0 {
		return fmt.Errorf("%w: base pose durations must not be negative", ErrInvalid)
	}
	return nil
}
