package server

import (
	"errors"
	"math"
	"testing"

	"github.com/danmuck/xpbridge/internal/mainloop"
	"github.com/danmuck/xpbridge/internal/observability"
	"github.com/danmuck/xpbridge/internal/posemath"
	"github.com/danmuck/xpbridge/internal/testutil/testlog"
	"github.com/danmuck/xpbridge/internal/xpconv"
)

func TestAdjustOffsetRequiresOffsetMode(t *testing.T) {
	testlog.Start(t)
	srv, err := New(DefaultConfig(), Deps{Scheduler: mainloop.NewQueue()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	add := [3]float64{1, 0, 0}
	if _, err := srv.AdjustOffset(observability.OffsetRequest{Add: &add}); !errors.Is(err, ErrOffsetDisabled) {
		t.Fatalf("expected ErrOffsetDisabled, got %v", err)
	}
	if _, enabled := srv.ControllerOffset(); enabled {
		t.Fatalf("offset mode should be off")
	}
}

func TestAdjustOffsetMovesReportedCamera(t *testing.T) {
	testlog.Start(t)
	b := newTestBridge(t, func(_ *Config, d *Deps) { d.Converter = xpconv.NewConverter(true) })
	b.unlockFov(t)
	b.poses.set(posemath.Vec3{}, posemath.QuatIdentity(), true)
	b.srv.RefreshPose()

	add := [3]float64{0, 0, 2}
	offset, err := b.srv.AdjustOffset(observability.OffsetRequest{Add: &add, RotateDeg: 90})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if math.Abs(offset[0]-2) > 1e-9 || math.Abs(offset[2]) > 1e-9 {
		t.Fatalf("unexpected offset %v", offset)
	}

	if r := b.send(t, "GET", RouteCamera, "", nil); r.status != 200 {
		t.Fatalf("unexpected reply %+v", r)
	}
	sent, _ := b.srv.Caches().TryGetLastSentCamera()
	if math.Abs(sent.Position[0]-2) > 1e-9 {
		t.Fatalf("offset not applied to camera: %v", sent.Position)
	}

	offset, err = b.srv.AdjustOffset(observability.OffsetRequest{Reset: true})
	if err != nil || offset != ([3]float64{}) {
		t.Fatalf("reset: offset=%v err=%v", offset, err)
	}
}
