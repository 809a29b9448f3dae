package server

import (
	"errors"

	"github.com/danmuck/xpbridge/internal/observability"
	"github.com/danmuck/xpbridge/internal/posemath"
	"github.com/danmuck/xpbridge/internal/profiling"
)

var _ observability.DebugSource = (*Server)(nil)

// Stats is the ops view of server state.
type Stats struct {
	Phase       Phase              `json:"phase"`
	Addr        string             `json:"addr,omitempty"`
	FovReceived bool               `json:"fov_received"`
	PoseValid   bool               `json:"pose_valid"`
	BasePoseSet bool               `json:"base_pose_set"`
	Pending     map[string]int     `json:"pending"`
	Profiling   profiling.Snapshot `json:"profiling"`
}

func (s *Server) Stats() Stats {
	st := Stats{
		Phase:       s.Phase(),
		FovReceived: s.FovReceived(),
		PoseValid:   s.PoseSnapshot().Valid,
		BasePoseSet: s.BasePose().Set,
		Pending:     map[string]int{},
		Profiling:   s.profiler.Snapshot(),
	}
	if addr := s.Addr(); addr != nil {
		st.Addr = addr.String()
	}
	if registry := s.registry.Load(); registry != nil {
		st.Pending = registry.Pending()
	}
	return st
}

func (s *Server) DebugCamera() (observability.CameraView, bool) {
	p, ok := s.caches.TryGetLastSentCamera()
	if !ok {
		return observability.CameraView{}, false
	}
	return observability.CameraView{
		Position:       [3]float64(p.Position),
		OrientationDeg: [3]float64(p.Angles.Vec3()),
	}, true
}

func (s *Server) DebugMouse() (observability.MouseView, bool) {
	m, ok := s.caches.TryGetLastMouseCoordinates()
	if !ok {
		return observability.MouseView{}, false
	}
	return observability.MouseView{X: m.X, Y: m.Y}, true
}

func (s *Server) DebugStats() any {
	return s.Stats()
}

var _ observability.OffsetControl = (*Server)(nil)

var ErrOffsetDisabled = errors.New("server: controller offset mode is disabled")

func (s *Server) ControllerOffset() ([3]float64, bool) {
	return [3]float64(s.conv.Offset()), s.conv.OffsetEnabled()
}

// AdjustOffset applies an operator offset change: reset, then add, then
// rotate about the vertical axis.
func (s *Server) AdjustOffset(req observability.OffsetRequest) ([3]float64, error) {
	if !s.conv.OffsetEnabled() {
		return [3]float64{}, ErrOffsetDisabled
	}
	if req.Reset {
		s.conv.ResetOffset()
	}
	if req.Add != nil {
		s.conv.AddOffset(posemath.Vec3(*req.Add))
	}
	s.conv.RotateOffset(req.RotateDeg)
	offset := s.conv.Offset()
	s.logger.Info().Floats64("offset", offset[:]).Msg("controller offset adjusted")
	return [3]float64(offset), nil
}
