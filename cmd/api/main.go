package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pollbot/internal/app/bootstrap"

	"github.com/spf13/cobra"
)

// API process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring (ports + adapters + use cases).
// 3) Serve the LINE webhook and sweep endpoint until interrupted.

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "pollbot-api",
	Short:         "LINE group polling bot webhook server",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runAPI,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (environment variables override it)")
}

func runAPI(cmd *cobra.Command, _ []string) error {
	app, err := bootstrap.BuildAPI(cfgFile)
	if err != nil {
		return fmt.Errorf("bootstrap api: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "api shutdown close failed: %v\n", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.Run(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pollbot api stopped with error: %v\n", err)
		os.Exit(1)
	}
}
