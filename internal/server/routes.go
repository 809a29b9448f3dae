package server

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/danmuck/xpbridge/internal/posemath"
	"github.com/danmuck/xpbridge/internal/wire"
	"github.com/danmuck/xpbridge/internal/xpconv"
)

const (
	RouteCamera = "/get_camera"
	RouteUpload = "/upload_image"
	RouteFov    = "/send_fov"
	RouteTest   = "/test_get"
)

const (
	msgBadRequest       = "Bad Request"
	msgNotFound         = "Not Found"
	msgMethodNotAllowed = "Method Not Allowed"
	msgPoseUnavailable  = "Pose unavailable"
	msgMissingImage     = "Missing image payload"
	msgPayloadTooLarge  = "Payload Too Large"
	msgImageReceived    = "Image received"
	msgDecoderStopped   = "Decoder unavailable"
	msgMissingPayload   = "Missing payload"
	msgInvalidJSON      = "Invalid JSON payload"
	msgInvalidFov       = "Invalid FOV values"
	msgFovUpdated       = "FOV updated"
	msgTestOK           = "OK!"

	requestFovBody = `{"request_fov":1}`
)

func routeLabel(route string) string {
	switch route {
	case RouteCamera, RouteUpload, RouteFov, RouteTest, "invalid":
		return route
	default:
		return "other"
	}
}

func (s *Server) route(req wire.Request) wire.Response {
	switch req.Route() {
	case RouteCamera:
		return s.handleGetCamera(req)
	case RouteUpload:
		return s.handleUploadImage(req)
	case RouteFov:
		return s.handleSendFov(req)
	case RouteTest:
		return s.handleTestGet(req)
	default:
		return wire.Text(wire.StatusNotFound, msgNotFound)
	}
}

func (s *Server) handleGetCamera(req wire.Request) wire.Response {
	if x, y, ok := parseMousePayload(req.Body); ok {
		s.queueCursorUpdate(x, y)
		s.caches.RecordMouse(x, y)
	}

	if !s.fovReceived.Load() {
		return wire.JSON(wire.StatusOK, requestFovBody)
	}

	goCloser := s.grab != nil && s.grab.LeftGrabActive()
	snap := s.PoseSnapshot()
	if !snap.Valid {
		if cached, ok := s.caches.TryGetLastSentCamera(); ok {
			return wire.JSON(wire.StatusOK, BuildPoseJSON(cached.Position, cached.Angles, goCloser))
		}
		return wire.Text(wire.StatusServiceUnavailable, msgPoseUnavailable)
	}

	base := s.BasePose()
	position, rotation := snap.Position, snap.Rotation
	if base.Set {
		position = position.Sub(base.Position)
		rotation = rotation.Mul(base.Rotation.Inverse())
	}
	payload := CameraPayload{
		Position: s.conv.ConvertPosition(position, base.Rotation, base.Set),
		Angles:   xpconv.ConvertRotationToAngles(rotation),
	}
	s.caches.StoreLastSent(payload)
	return wire.JSON(wire.StatusOK, BuildPoseJSON(payload.Position, payload.Angles, goCloser))
}

func (s *Server) queueCursorUpdate(x, y float64) {
	s.scheduler.Enqueue(func() {
		_, cursor := s.apply.Targets()
		if cursor != nil && cursor.Ready() {
			cursor.UpdateCursorPosition(x, y)
		}
	})
}

func (s *Server) handleUploadImage(req wire.Request) wire.Response {
	verb := req.Verb()
	if verb != "POST" && verb != "PUT" {
		return wire.Text(wire.StatusMethodNotAllowed, msgMethodNotAllowed)
	}
	if len(req.Body) == 0 {
		return wire.Text(wire.StatusBadRequest, msgMissingImage)
	}
	if len(req.Body) > s.cfg.MaxImageBytes {
		return wire.Text(wire.StatusPayloadTooLarge, msgPayloadTooLarge)
	}

	registry := s.registry.Load()
	if registry == nil {
		return wire.Text(wire.StatusServiceUnavailable, msgDecoderStopped)
	}
	contentType := req.Header.Get("content-type")
	strategy := registry.ForContentType(contentType)
	if !strategy.TryHandleUpload(req.Body) {
		s.profiler.RecordDropped()
		s.logger.Warn().
			Str("strategy", strategy.Kind().String()).
			Str("content_type", contentType).
			Int("bytes", len(req.Body)).
			Msg("decoder rejected upload")
	}
	return wire.Text(wire.StatusOK, msgImageReceived)
}

func (s *Server) handleSendFov(req wire.Request) wire.Response {
	if req.Verb() != "POST" {
		return wire.Text(wire.StatusMethodNotAllowed, msgMethodNotAllowed)
	}
	if len(req.Body) == 0 {
		return wire.Text(wire.StatusBadRequest, msgMissingPayload)
	}
	vertical, horizontal, ok := parseFovPayload(req.Body)
	if !ok {
		return wire.Text(wire.StatusBadRequest, msgInvalidJSON)
	}
	if vertical <= 0 || horizontal <= 0 {
		return wire.Text(wire.StatusBadRequest, msgInvalidFov)
	}

	s.scheduler.Enqueue(func() {
		renderer, _ := s.apply.Targets()
		if renderer != nil {
			renderer.UpdateFov(horizontal, vertical)
		}
		s.logger.Info().Float64("horizontal", horizontal).Float64("vertical", vertical).Msg("fov updated")
	})
	s.fovReceived.Store(true)
	return wire.Text(wire.StatusOK, msgFovUpdated)
}

func (s *Server) handleTestGet(req wire.Request) wire.Response {
	if req.Verb() != "GET" {
		return wire.Text(wire.StatusMethodNotAllowed, msgMethodNotAllowed)
	}
	return wire.Text(wire.StatusOK, msgTestOK)
}

// FovReceived reports whether a valid FOV has ever been accepted.
func (s *Server) FovReceived() bool {
	return s.fovReceived.Load()
}

type mousePayload struct {
	MouseX float64 `json:"mouse_x"`
	MouseY float64 `json:"mouse_y"`
}

type fovPayload struct {
	VerticalFov   float64 `json:"vertical_fov"`
	HorizontalFov float64 `json:"horizontal_fov"`
}

// parseMousePayload requires both keys to be present.
func parseMousePayload(body []byte) (x, y float64, ok bool) {
	text := bytes.TrimSpace(body)
	if len(text) == 0 ||
		!bytes.Contains(text, []byte(`"mouse_x"`)) ||
		!bytes.Contains(text, []byte(`"mouse_y"`)) {
		return 0, 0, false
	}
	var p mousePayload
	if err := json.Unmarshal(text, &p); err != nil {
		return 0, 0, false
	}
	return p.MouseX, p.MouseY, true
}

// parseFovPayload requires at least one key; a missing one reads as zero.
func parseFovPayload(body []byte) (vertical, horizontal float64, ok bool) {
	text := bytes.TrimSpace(body)
	if len(text) == 0 ||
		(!bytes.Contains(text, []byte(`"vertical_fov"`)) && !bytes.Contains(text, []byte(`"horizontal_fov"`))) {
		return 0, 0, false
	}
	var p fovPayload
	if err := json.Unmarshal(text, &p); err != nil {
		return 0, 0, false
	}
	return p.VerticalFov, p.HorizontalFov, true
}

// BuildPoseJSON renders a camera payload with six decimal places. Angles
// are ordered pitch, heading, roll.
func BuildPoseJSON(position posemath.Vec3, angles xpconv.Angles, goCloser bool) string {
	closer := 0
	if goCloser {
		closer = 1
	}
	return fmt.Sprintf(`{"position":[%.6f,%.6f,%.6f],"orientation_deg":[%.6f,%.6f,%.6f],"go_closer":%d}`,
		position[0], position[1], position[2],
		angles.Pitch, angles.Heading, angles.Roll,
		closer)
}
