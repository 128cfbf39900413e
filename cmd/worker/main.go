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

// Worker process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring.
// 3) Trigger the reminder sweep on an interval, or once with --once.

var (
	cfgFile string
	runOnce bool
)

var rootCmd = &cobra.Command{
	Use:           "pollbot-worker",
	Short:         "Periodically reminds non-voters of open polls",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runWorker,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (environment variables override it)")
	rootCmd.Flags().BoolVar(&runOnce, "once", false,
		"trigger a single sweep and exit")
}

func runWorker(cmd *cobra.Command, _ []string) error {
	app, err := bootstrap.BuildWorker(cfgFile)
	if err != nil {
		return fmt.Errorf("bootstrap worker: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "worker shutdown close failed: %v\n", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runOnce {
		return app.RunOnce(ctx)
	}
	return app.Run(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pollbot worker stopped with error: %v\n", err)
		os.Exit(1)
	}
}
