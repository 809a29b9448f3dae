// Package server implements the bridge protocol listener: one request per
// TCP connection, routed to pose, upload, FOV and health handlers.
package server

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/xpbridge/internal/frames"
	"github.com/danmuck/xpbridge/internal/observability"
	"github.com/danmuck/xpbridge/internal/posemath"
	"github.com/danmuck/xpbridge/internal/profiling"
	"github.com/danmuck/xpbridge/internal/wire"
	"github.com/danmuck/xpbridge/internal/xpconv"
	"github.com/rs/zerolog"
)

const (
	DefaultAddr          = ":4598"
	DefaultMaxImageBytes = 8 * 1024 * 1024
	DefaultIOTimeout     = 5 * time.Second

	listenerJoinTimeout = 500 * time.Millisecond
	acceptBackoff       = 50 * time.Millisecond
)

var (
	ErrLifecycleOrder    = errors.New("server: invalid lifecycle transition")
	ErrAlreadyRunning    = errors.New("server: already running")
	ErrNilScheduler      = errors.New("server: nil scheduler")
	ErrAnchorUnavailable = errors.New("server: headset anchor unavailable")
)

// Phase is the listener lifecycle state.
type Phase string

const (
	PhaseStopped  Phase = "stopped"
	PhaseStarting Phase = "starting"
	PhaseRunning  Phase = "running"
	PhaseStopping Phase = "stopping"
)

func transitionError(from, to Phase) error {
	return fmt.Errorf("%w: %s -> %s", ErrLifecycleOrder, from, to)
}

// PoseSource reports the current headset eye-anchor pose in engine space.
type PoseSource interface {
	HeadsetAnchorPose() (position posemath.Vec3, rotation posemath.Quat, ok bool)
}

// GrabSignal reports whether the left grab button is held.
type GrabSignal interface {
	LeftGrabActive() bool
}

// Config holds listener and pipeline settings.
type Config struct {
	Addr           string
	DefaultDecoder frames.Kind
	MaxPending     int
	Limits         wire.Limits
	MaxImageBytes  int
	IOTimeout      time.Duration
	WorkerDecoder  frames.DecoderFactory
}

func DefaultConfig() Config {
	return Config{
		Addr:           DefaultAddr,
		DefaultDecoder: frames.KindSimple,
		MaxPending:     frames.DefaultMaxPending,
		Limits:         wire.DefaultLimits(),
		MaxImageBytes:  DefaultMaxImageBytes,
		IOTimeout:      DefaultIOTimeout,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = def.Addr
	}
	if c.DefaultDecoder == "" {
		c.DefaultDecoder = def.DefaultDecoder
	}
	if c.MaxPending < 1 {
		c.MaxPending = def.MaxPending
	}
	if c.Limits.MaxHeaderBytes <= 0 {
		c.Limits.MaxHeaderBytes = def.Limits.MaxHeaderBytes
	}
	if c.Limits.MaxBodyBytes <= 0 {
		c.Limits.MaxBodyBytes = def.Limits.MaxBodyBytes
	}
	if c.MaxImageBytes <= 0 {
		c.MaxImageBytes = def.MaxImageBytes
	}
	if c.IOTimeout <= 0 {
		c.IOTimeout = def.IOTimeout
	}
	return c
}

// Deps are the collaborators the server drives. Scheduler is required;
// the rest may be nil.
type Deps struct {
	Scheduler frames.Scheduler
	Profiler  *profiling.Aggregator
	Converter *xpconv.Converter
	Caches    *Caches
	Poses     PoseSource
	Renderer  frames.Renderer
	Cursor    frames.CursorOverlay
	Grab      GrabSignal
	Formats   frames.FormatSupport
}

// Server owns the listener, the decode strategies and the pose state.
type Server struct {
	cfg       Config
	logger    zerolog.Logger
	scheduler frames.Scheduler
	profiler  *profiling.Aggregator
	conv      *xpconv.Converter
	caches    *Caches
	poses     PoseSource
	grab      GrabSignal
	apply     *frames.ApplyContext

	mu           sync.Mutex
	phase        Phase
	listener     net.Listener
	listenerDone chan struct{}
	running      atomic.Bool
	registry     atomic.Pointer[frames.Registry]

	poseMu sync.Mutex
	pose   PoseSnapshot

	baseMu sync.Mutex
	base   BasePose

	fovReceived atomic.Bool
}

func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Scheduler == nil {
		return nil, ErrNilScheduler
	}
	if deps.Profiler == nil {
		deps.Profiler = profiling.Disabled()
	}
	if deps.Converter == nil {
		deps.Converter = xpconv.NewConverter(false)
	}
	if deps.Caches == nil {
		deps.Caches = NewCaches()
	}
	apply, err := frames.NewApplyContext(deps.Scheduler, deps.Profiler)
	if err != nil {
		return nil, err
	}
	apply.UpdateTargets(deps.Renderer, deps.Cursor)
	if deps.Formats != nil {
		apply.SetFormatSupport(deps.Formats)
	}
	return &Server{
		cfg:       cfg.withDefaults(),
		logger:    observability.Component("server"),
		scheduler: deps.Scheduler,
		profiler:  deps.Profiler,
		conv:      deps.Converter,
		caches:    deps.Caches,
		poses:     deps.Poses,
		grab:      deps.Grab,
		apply:     apply,
		phase:     PhaseStopped,
	}, nil
}

func (s *Server) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Addr returns the bound listener address, or nil when stopped.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Caches() *Caches {
	return s.caches
}

func (s *Server) ApplyContext() *frames.ApplyContext {
	return s.apply
}

// SetTargets swaps the renderer and cursor overlay frames are delivered to.
func (s *Server) SetTargets(renderer frames.Renderer, cursor frames.CursorOverlay) {
	s.apply.UpdateTargets(renderer, cursor)
}

// Initialize restarts the server: stop, clear the base pose, refresh the
// pose snapshot, start.
func (s *Server) Initialize() error {
	if err := s.Stop(); err != nil {
		return err
	}
	s.ClearBasePose()
	s.RefreshPose()
	return s.Start()
}

// Start binds the listener and creates the decode strategies.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.phase {
	case PhaseRunning:
		return ErrAlreadyRunning
	case PhaseStopped:
	default:
		return transitionError(s.phase, PhaseStarting)
	}
	s.phase = PhaseStarting

	registry, err := frames.NewRegistry(s.apply, s.cfg.DefaultDecoder, frames.Options{
		MaxPending:    s.cfg.MaxPending,
		WorkerDecoder: s.cfg.WorkerDecoder,
	})
	if err != nil {
		s.phase = PhaseStopped
		return err
	}

	ln, err := net.Listen("tcp", strings.TrimSpace(s.cfg.Addr))
	if err != nil {
		registry.Dispose()
		s.phase = PhaseStopped
		s.logger.Error().Err(err).Str("addr", s.cfg.Addr).Msg("listener start failed")
		return fmt.Errorf("server: listen %s: %w", s.cfg.Addr, err)
	}

	s.registry.Store(registry)
	s.listener = ln
	s.listenerDone = make(chan struct{})
	s.running.Store(true)
	s.phase = PhaseRunning
	go s.acceptLoop(ln, s.listenerDone)

	s.logger.Info().Str("addr", ln.Addr().String()).Str("decoder", s.cfg.DefaultDecoder.String()).Msg("listening")
	return nil
}

// Stop closes the listener, discards pending payloads and waits briefly
// for the accept loop. Stopping a stopped server is a no-op.
func (s *Server) Stop() error {
	s.mu.Lock()
	switch s.phase {
	case PhaseStopped:
		s.mu.Unlock()
		return nil
	case PhaseRunning:
	default:
		phase := s.phase
		s.mu.Unlock()
		return transitionError(phase, PhaseStopping)
	}
	s.phase = PhaseStopping
	s.running.Store(false)
	ln, done := s.listener, s.listenerDone
	s.listener = nil
	s.mu.Unlock()

	if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Warn().Err(err).Msg("listener close failed")
	}
	if registry := s.registry.Swap(nil); registry != nil {
		registry.Dispose()
	}
	select {
	case <-done:
	case <-time.After(listenerJoinTimeout):
		s.logger.Warn().Msg("accept loop did not exit in time")
	}

	s.mu.Lock()
	s.phase = PhaseStopped
	s.mu.Unlock()
	s.logger.Info().Msg("stopped")
	return nil
}

func (s *Server) acceptLoop(ln net.Listener, done chan struct{}) {
	defer close(done)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn().Err(err).Msg("accept failed")
			time.Sleep(acceptBackoff)
			continue
		}
		go s.handleConn(conn)
	}
}

// handleConn serves exactly one request and closes the connection.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	start := time.Now()
	_ = conn.SetDeadline(start.Add(s.cfg.IOTimeout))

	req, err := wire.ReadRequest(bufio.NewReader(conn), s.cfg.Limits)
	var resp wire.Response
	route := "invalid"
	switch {
	case err == nil:
		route = req.Route()
		resp = s.route(req)
	case errors.Is(err, wire.ErrConnClosed):
		s.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("client closed before request completed")
		return
	case errors.Is(err, wire.ErrBodyTooLarge):
		resp = wire.Text(wire.StatusPayloadTooLarge, msgPayloadTooLarge)
	default:
		s.logger.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("bad request")
		resp = wire.Text(wire.StatusBadRequest, msgBadRequest)
	}

	if err := wire.WriteResponse(conn, resp); err != nil {
		s.logger.Debug().Err(err).Msg("response write failed")
	}
	observability.RecordHTTPRequest("protocol", req.Verb(), routeLabel(route), resp.Status, time.Since(start))
}
