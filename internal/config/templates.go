package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Template renders the default configuration as TOML.
func Template() (string, error) {
	data, err := toml.Marshal(toFile(Default()))
	if err != nil {
		return "", fmt.Errorf("config template marshal failed: %w", err)
	}
	return string(data), nil
}

func WriteTemplate(path string, overwrite bool) error {
	template, err := Template()
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

func toFile(c Config) fileConfig {
	return fileConfig{
		ListenAddr:            c.ListenAddr,
		OpsAddr:               c.OpsAddr,
		DefaultDecoder:        c.DefaultDecoder.String(),
		MaxPending:            c.MaxPending,
		MaxHeaderBytes:        c.MaxHeaderBytes,
		MaxImageBytes:         c.MaxImageBytes,
		IOTimeout:             c.IOTimeout.String(),
		Profiling:             c.Profiling,
		ProfilingInterval:     c.ProfilingInterval.String(),
		TickInterval:          c.TickInterval.String(),
		ASTCSupported:         c.ASTCSupported,
		WorkerDecoder:         c.WorkerDecoder,
		ControllerOffset:      c.ControllerOffset,
		BasePoseSettle:        c.BasePoseSettle.String(),
		BasePoseAnchorTimeout: c.BasePoseAnchorTimeout.String(),
		FrameDumpPath:         c.FrameDumpPath,
		HeadsetPosition:       c.HeadsetPosition,
		HeadsetOrientationDeg: c.HeadsetOrientationDeg,
	}
}
