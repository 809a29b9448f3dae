package config

import (
	"github.com/danmuck/xpbridge/internal/frames"
	"github.com/danmuck/xpbridge/internal/posemath"
	"github.com/danmuck/xpbridge/internal/server"
	"github.com/danmuck/xpbridge/internal/wire"
	"github.com/danmuck/xpbridge/internal/xpconv"
)

// ServerConfig maps the file settings onto the listener configuration.
func (c Config) ServerConfig() (server.Config, error) {
	factory, err := frames.DecoderFactoryByName(c.WorkerDecoder)
	if err != nil {
		return server.Config{}, err
	}
	limits := wire.DefaultLimits()
	limits.MaxHeaderBytes = c.MaxHeaderBytes
	if c.MaxImageBytes > limits.MaxBodyBytes {
		limits.MaxBodyBytes = c.MaxImageBytes
	}
	return server.Config{
		Addr:           c.ListenAddr,
		DefaultDecoder: c.DefaultDecoder,
		MaxPending:     c.MaxPending,
		Limits:         limits,
		MaxImageBytes:  c.MaxImageBytes,
		IOTimeout:      c.IOTimeout,
		WorkerDecoder:  factory,
	}, nil
}

// HeadsetPose returns the configured static headset pose in engine space.
func (c Config) HeadsetPose() (posemath.Vec3, posemath.Quat) {
	o := c.HeadsetOrientationDeg
	rot := xpconv.AnglesToRotation(xpconv.Angles{Pitch: o[0], Heading: o[1], Roll: o[2]})
	return posemath.Vec3(c.HeadsetPosition), rot
}
