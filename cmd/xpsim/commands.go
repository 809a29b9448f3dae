package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danmuck/xpbridge/internal/server"
	"github.com/danmuck/xpbridge/internal/wire"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func expectOK(resp wire.Response) error {
	if resp.Status != wire.StatusOK {
		return fmt.Errorf("bridge replied %d: %s", resp.Status, resp.Body)
	}
	return nil
}

func pingCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check the bridge is answering",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient(*opts).do(cmd.Context(), "GET", server.RouteTest, "", nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", resp.Status, resp.Body)
			return expectOK(resp)
		},
	}
}

func fovBody(vertical, horizontal float64) []byte {
	body, _ := json.Marshal(map[string]float64{"vertical_fov": vertical, "horizontal_fov": horizontal})
	return body
}

func fovCmd(opts *clientOptions) *cobra.Command {
	var vertical, horizontal float64
	cmd := &cobra.Command{
		Use:   "fov",
		Short: "Send the simulator field of view",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient(*opts).do(cmd.Context(), "POST", server.RouteFov, "application/json", fovBody(vertical, horizontal))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", resp.Status, resp.Body)
			return expectOK(resp)
		},
	}
	cmd.Flags().Float64Var(&vertical, "vertical", 60, "vertical FOV in degrees")
	cmd.Flags().Float64Var(&horizontal, "horizontal", 90, "horizontal FOV in degrees")
	return cmd
}

func mouseBody(x, y float64) []byte {
	body, _ := json.Marshal(map[string]float64{"mouse_x": x, "mouse_y": y})
	return body
}

func cameraCmd(opts *clientOptions) *cobra.Command {
	var mouseX, mouseY float64
	var count int
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "camera",
		Short: "Poll the camera pose",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*opts)
			var body []byte
			if cmd.Flags().Changed("mouse-x") || cmd.Flags().Changed("mouse-y") {
				body = mouseBody(mouseX, mouseY)
			}
			for i := 0; i < max(1, count); i++ {
				if i > 0 {
					time.Sleep(interval)
				}
				resp, err := c.do(cmd.Context(), "GET", server.RouteCamera, "application/json", body)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", resp.Status, resp.Body)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&mouseX, "mouse-x", 0, "cursor x to report")
	cmd.Flags().Float64Var(&mouseY, "mouse-y", 0, "cursor y to report")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of polls")
	cmd.Flags().DurationVar(&interval, "interval", 100*time.Millisecond, "delay between polls")
	return cmd
}

type uploadOptions struct {
	format string
	width  int
	height int
}

func (u *uploadOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&u.format, "format", "f", formatJPEG, "payload format (raw|jpeg|png|webp|astc)")
	cmd.Flags().IntVar(&u.width, "width", 256, "frame width")
	cmd.Flags().IntVar(&u.height, "height", 144, "frame height")
}

func upload(ctx context.Context, c *client, u uploadOptions, frame int) (wire.Response, int, error) {
	body, contentType, err := buildPayload(u.format, testPattern(u.width, u.height, frame))
	if err != nil {
		return wire.Response{}, 0, err
	}
	resp, err := c.do(ctx, "POST", server.RouteUpload, contentType, body)
	return resp, len(body), err
}

func uploadCmd(opts *clientOptions) *cobra.Command {
	var u uploadOptions
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload one generated screen frame",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, n, err := upload(cmd.Context(), newClient(*opts), u, 0)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d %s (%d bytes)\n", resp.Status, resp.Body, n)
			return expectOK(resp)
		},
	}
	u.bind(cmd)
	return cmd
}

// runCmd behaves like a simulator plugin: FOV once, then a camera poll and
// a frame upload every tick.
func runCmd(opts *clientOptions) *cobra.Command {
	var u uploadOptions
	var duration, tick time.Duration
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate a host session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), duration)
			defer cancel()
			c := newClient(*opts)

			resp, err := c.do(ctx, "POST", server.RouteFov, "application/json", fovBody(60, 90))
			if err != nil {
				return err
			}
			if err := expectOK(resp); err != nil {
				return err
			}

			ticker := time.NewTicker(tick)
			defer ticker.Stop()
			var polls, uploads, failures int
			for frame := 0; ; frame++ {
				select {
				case <-ctx.Done():
					log.Info().
						Int("polls", polls).
						Int("uploads", uploads).
						Int("failures", failures).
						Msg("session finished")
					return nil
				case <-ticker.C:
				}
				if resp, err := c.do(ctx, "GET", server.RouteCamera, "", nil); err == nil && resp.Status == wire.StatusOK {
					polls++
				} else {
					failures++
				}
				if resp, _, err := upload(ctx, c, u, frame); err == nil && resp.Status == wire.StatusOK {
					uploads++
				} else {
					failures++
				}
			}
		},
	}
	u.bind(cmd)
	cmd.Flags().DurationVar(&duration, "duration", 10*time.Second, "session length")
	cmd.Flags().DurationVar(&tick, "tick", 33*time.Millisecond, "interval between frames")
	return cmd
}
