// Package headless provides stand-in engine collaborators so the bridge can
// run without a headset: a fixed pose, a logging renderer and a cursor
// overlay that only tracks state.
package headless

import (
	"sync"

	"github.com/danmuck/xpbridge/internal/posemath"
)

// StaticPose reports a fixed headset pose once made available.
type StaticPose struct {
	mu        sync.Mutex
	position  posemath.Vec3
	rotation  posemath.Quat
	available bool
}

func NewStaticPose(position posemath.Vec3, rotation posemath.Quat) *StaticPose {
	return &StaticPose{position: position, rotation: rotation, available: true}
}

func (p *StaticPose) HeadsetAnchorPose() (posemath.Vec3, posemath.Quat, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position, p.rotation, p.available
}

func (p *StaticPose) Set(position posemath.Vec3, rotation posemath.Quat) {
	p.mu.Lock()
	p.position, p.rotation = position, rotation
	p.mu.Unlock()
}

// SetAvailable toggles tracking loss.
func (p *StaticPose) SetAvailable(ok bool) {
	p.mu.Lock()
	p.available = ok
	p.mu.Unlock()
}

// NoGrab never reports the grab button held.
type NoGrab struct{}

func (NoGrab) LeftGrabActive() bool { return false }
