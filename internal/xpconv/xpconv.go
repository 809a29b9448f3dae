// Package xpconv converts headset poses from engine space (right, up,
// forward) into the simulator's aircraft frame (right, up, tail).
package xpconv

import (
	"math"
	"sync"

	"github.com/danmuck/xpbridge/internal/posemath"
)

const gimbalEpsilon = 1e-6

// Angles are simulator camera angles in degrees.
type Angles struct {
	Pitch   float64
	Heading float64
	Roll    float64
}

func (a Angles) Vec3() posemath.Vec3 {
	return posemath.Vec3{a.Pitch, a.Heading, a.Roll}
}

// Converter carries the optional controller camera offset. The conversion
// functions themselves are pure.
type Converter struct {
	mu            sync.Mutex
	offsetEnabled bool
	offset        posemath.Vec3
}

func NewConverter(offsetEnabled bool) *Converter {
	return &Converter{offsetEnabled: offsetEnabled}
}

// SetOffsetEnabled toggles offset mode; disabling clears the offset.
func (c *Converter) SetOffsetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offsetEnabled = enabled
	if !enabled {
		c.offset = posemath.Vec3{}
	}
}

func (c *Converter) OffsetEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offsetEnabled
}

func (c *Converter) AddOffset(delta posemath.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.offsetEnabled || delta.IsZero() {
		return
	}
	c.offset = c.offset.Add(delta)
}

// RotateOffset turns the accumulated offset about the vertical axis.
func (c *Converter) RotateOffset(degrees float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.offsetEnabled || math.Abs(degrees) < 1e-9 {
		return
	}
	c.offset = posemath.AngleAxis(degrees, posemath.Up).Rotate(c.offset)
}

func (c *Converter) ResetOffset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.offsetEnabled {
		return
	}
	c.offset = posemath.Vec3{}
}

func (c *Converter) Offset() posemath.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset
}

// ConvertPosition maps an engine-space offset into aircraft-local
// simulator coordinates relative to the base rotation.
func (c *Converter) ConvertPosition(offset posemath.Vec3, baseRotation posemath.Quat, hasBase bool) posemath.Vec3 {
	c.mu.Lock()
	if c.offsetEnabled && !c.offset.IsZero() {
		offset = offset.Add(c.offset)
	}
	c.mu.Unlock()

	ref := posemath.QuatIdentity()
	if hasBase {
		ref = baseRotation
	}
	return toHost(ref.Inverse().Rotate(offset))
}

// ConvertRotationToAngles decomposes rotation into simulator pitch,
// heading and roll. Near ±90° pitch roll is pinned to zero.
func ConvertRotationToAngles(rotation posemath.Quat) Angles {
	right := toHost(rotation.Rotate(posemath.Right))
	up := toHost(rotation.Rotate(posemath.Up))
	tail := toHost(rotation.Rotate(posemath.Forward).Neg())
	r := posemath.Mat3FromColumns(right, up, tail)

	pitch := math.Asin(posemath.Clamp(-r.At(1, 2), -1, 1))

	var roll, heading float64
	if math.Cos(pitch) > gimbalEpsilon {
		roll = math.Atan2(-r.At(1, 0), r.At(1, 1))
		heading = math.Atan2(-r.At(0, 2), r.At(2, 2))
	} else {
		roll = 0
		heading = math.Atan2(-r.At(2, 0), r.At(0, 0))
	}

	return Angles{
		Pitch:   posemath.WrapDegrees(posemath.Rad2Deg(pitch)),
		Heading: posemath.WrapDegrees(posemath.Rad2Deg(heading)),
		Roll:    posemath.WrapDegrees(posemath.Rad2Deg(roll)),
	}
}

// AnglesToRotation rebuilds the engine-space rotation that
// ConvertRotationToAngles decomposes into a.
func AnglesToRotation(a Angles) posemath.Quat {
	yaw := posemath.AngleAxis(a.Heading, posemath.Up)
	pitch := posemath.AngleAxis(-a.Pitch, posemath.Right)
	roll := posemath.AngleAxis(-a.Roll, posemath.Forward)
	return yaw.Mul(pitch).Mul(roll)
}

func toHost(v posemath.Vec3) posemath.Vec3 {
	return posemath.Vec3{v[0], v[1], -v[2]}
}
