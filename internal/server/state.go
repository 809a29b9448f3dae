package server

import (
	"context"
	"sync"
	"time"

	"github.com/danmuck/xpbridge/internal/posemath"
	"github.com/danmuck/xpbridge/internal/xpconv"
)

const (
	DefaultAnchorTimeout = 5 * time.Second
	DefaultSettleDelay   = 500 * time.Millisecond

	anchorPollInterval = 50 * time.Millisecond
)

// PoseSnapshot is the latest headset pose, refreshed once per apply tick.
type PoseSnapshot struct {
	Position posemath.Vec3
	Rotation posemath.Quat
	Valid    bool
}

// BasePose is the reference frame poses are reported relative to.
type BasePose struct {
	Position posemath.Vec3
	Rotation posemath.Quat
	Set      bool
}

// CameraPayload is a pose already converted for the simulator.
type CameraPayload struct {
	Position posemath.Vec3
	Angles   xpconv.Angles
}

type MouseCoordinates struct {
	X float64
	Y float64
}

// Caches hold the last camera payload sent and the last mouse position
// received. They belong to whoever constructs them, so they outlive a
// server restart when the same value is passed back in.
type Caches struct {
	sentMu  sync.Mutex
	sent    CameraPayload
	hasSent bool

	mouseMu  sync.Mutex
	mouse    MouseCoordinates
	hasMouse bool
}

func NewCaches() *Caches {
	return &Caches{}
}

func (c *Caches) StoreLastSent(p CameraPayload) {
	c.sentMu.Lock()
	c.sent = p
	c.hasSent = true
	c.sentMu.Unlock()
}

func (c *Caches) TryGetLastSentCamera() (CameraPayload, bool) {
	c.sentMu.Lock()
	defer c.sentMu.Unlock()
	return c.sent, c.hasSent
}

func (c *Caches) RecordMouse(x, y float64) {
	c.mouseMu.Lock()
	c.mouse = MouseCoordinates{X: x, Y: y}
	c.hasMouse = true
	c.mouseMu.Unlock()
}

func (c *Caches) TryGetLastMouseCoordinates() (MouseCoordinates, bool) {
	c.mouseMu.Lock()
	defer c.mouseMu.Unlock()
	return c.mouse, c.hasMouse
}

// RefreshPose samples the pose source into the snapshot. Runs on the
// apply loop each tick.
func (s *Server) RefreshPose() {
	var snap PoseSnapshot
	if s.poses != nil {
		snap.Position, snap.Rotation, snap.Valid = s.poses.HeadsetAnchorPose()
	}
	s.poseMu.Lock()
	if snap.Valid {
		s.pose = snap
	} else {
		s.pose.Valid = false
	}
	s.poseMu.Unlock()
}

func (s *Server) PoseSnapshot() PoseSnapshot {
	s.poseMu.Lock()
	defer s.poseMu.Unlock()
	return s.pose
}

func (s *Server) SetBasePose(position posemath.Vec3, rotation posemath.Quat) {
	s.baseMu.Lock()
	s.base = BasePose{Position: position, Rotation: rotation, Set: true}
	s.baseMu.Unlock()
	s.logger.Info().
		Floats64("position", position[:]).
		Msg("base pose captured")
}

func (s *Server) ClearBasePose() {
	s.baseMu.Lock()
	s.base = BasePose{Rotation: posemath.QuatIdentity()}
	s.baseMu.Unlock()
}

func (s *Server) BasePose() BasePose {
	s.baseMu.Lock()
	defer s.baseMu.Unlock()
	b := s.base
	if !b.Set {
		b.Rotation = posemath.QuatIdentity()
	}
	return b
}

// CaptureBasePose waits up to anchorTimeout for the headset anchor, lets
// tracking settle, then records the current pose as the base pose.
func (s *Server) CaptureBasePose(ctx context.Context, anchorTimeout, settle time.Duration) error {
	if s.poses == nil {
		return ErrAnchorUnavailable
	}
	if anchorTimeout <= 0 {
		anchorTimeout = DefaultAnchorTimeout
	}

	deadline := time.Now().Add(anchorTimeout)
	ticker := time.NewTicker(anchorPollInterval)
	defer ticker.Stop()
	for {
		if _, _, ok := s.poses.HeadsetAnchorPose(); ok {
			break
		}
		if time.Now().After(deadline) {
			s.logger.Warn().Dur("timeout", anchorTimeout).Msg("base pose capture gave up waiting for anchor")
			return ErrAnchorUnavailable
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	if settle > 0 {
		timer := time.NewTimer(settle)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	pos, rot, ok := s.poses.HeadsetAnchorPose()
	if !ok {
		return ErrAnchorUnavailable
	}
	s.SetBasePose(pos, rot)
	return nil
}
