package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// CameraView is the last pose payload handed to the simulator.
type CameraView struct {
	Position       [3]float64 `json:"position"`
	OrientationDeg [3]float64 `json:"orientation_deg"`
}

// MouseView is the last cursor position accepted from the simulator.
type MouseView struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DebugSource feeds the ops /debug endpoints.
type DebugSource interface {
	DebugCamera() (CameraView, bool)
	DebugMouse() (MouseView, bool)
	DebugStats() any
}

// OffsetRequest adjusts the controller camera offset. Reset runs first,
// then Add, then RotateDeg.
type OffsetRequest struct {
	Reset     bool        `json:"reset"`
	Add       *[3]float64 `json:"add,omitempty"`
	RotateDeg float64     `json:"rotate_deg"`
}

// OffsetControl is implemented by sources that expose the controller
// offset for adjustment.
type OffsetControl interface {
	ControllerOffset() ([3]float64, bool)
	AdjustOffset(req OffsetRequest) ([3]float64, error)
}

type offsetView struct {
	Enabled bool       `json:"enabled"`
	Offset  [3]float64 `json:"offset"`
}

// NewOpsRouter builds the operator HTTP surface: health, metrics, and
// views over the bridge caches. When src also implements OffsetControl,
// /debug/offset reads and adjusts the controller offset.
func NewOpsRouter(src DebugSource) http.Handler {
	RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(Component("ops")))
	r.Use(RequestMetricsMiddleware("ops"))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	debug := r.Group("/debug")
	debug.GET("/camera", func(c *gin.Context) {
		view, ok := src.DebugCamera()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no camera payload sent yet"})
			return
		}
		c.JSON(http.StatusOK, view)
	})
	debug.GET("/mouse", func(c *gin.Context) {
		view, ok := src.DebugMouse()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no mouse coordinates received yet"})
			return
		}
		c.JSON(http.StatusOK, view)
	})
	debug.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, src.DebugStats())
	})

	if ctl, ok := src.(OffsetControl); ok {
		debug.GET("/offset", func(c *gin.Context) {
			offset, enabled := ctl.ControllerOffset()
			c.JSON(http.StatusOK, offsetView{Enabled: enabled, Offset: offset})
		})
		debug.POST("/offset", func(c *gin.Context) {
			var req OffsetRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			offset, err := ctl.AdjustOffset(req)
			if err != nil {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, offsetView{Enabled: true, Offset: offset})
		})
	}
	return r
}

// ServeOps runs the ops listener until ctx is cancelled.
func ServeOps(ctx context.Context, addr string, handler http.Handler) error {
	ln, err := net.Listen("tcp", strings.TrimSpace(addr))
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info().Str("addr", ln.Addr().String()).Msg("ops listening")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
