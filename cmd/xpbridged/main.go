package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/xpbridge/internal/logging"
	"github.com/spf13/cobra"
)

func main() {
	var flags overrideFlags
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "xpbridged",
		Short: "Headset to flight simulator bridge daemon",
		Long: `xpbridged serves the bridge protocol to a flight simulator host.

It answers camera pose requests, accepts screen uploads and FOV updates,
and exposes /metrics and /debug endpoints on the ops listener.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.ConfigureRuntime("xpbridged")
			cfg, err := resolveConfig(configPath, flags, cmd.Flags().Changed)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
	rootCmd.Flags().StringVar(&flags.listenAddr, "listen", "", "protocol listen address")
	rootCmd.Flags().StringVar(&flags.opsAddr, "ops", "", "ops listen address, empty to disable")
	rootCmd.Flags().StringVar(&flags.decoder, "decoder", "", "default decode strategy (simple|raw|astc|async)")
	rootCmd.Flags().StringVar(&flags.dumpPath, "dump", "", "directory for the latest frame dump")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "xpbridged: %v\n", err)
		os.Exit(1)
	}
}
