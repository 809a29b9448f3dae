package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/danmuck/xpbridge/internal/logging"
	"github.com/spf13/cobra"
)

func main() {
	var opts clientOptions

	rootCmd := &cobra.Command{
		Use:   "xpsim",
		Short: "Flight simulator host stand-in for the bridge protocol",
		Long: `xpsim plays the simulator side of the bridge: it polls camera poses,
sends FOV updates and uploads generated screen frames.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.ConfigureRuntime("xpsim")
		},
	}
	rootCmd.PersistentFlags().StringVarP(&opts.addr, "addr", "a", "127.0.0.1:4598", "bridge address")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "per-request timeout")

	rootCmd.AddCommand(
		pingCmd(&opts),
		fovCmd(&opts),
		cameraCmd(&opts),
		uploadCmd(&opts),
		runCmd(&opts),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "xpsim: %v\n", err)
		os.Exit(1)
	}
}
