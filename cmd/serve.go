package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"leakcheck/internal/target"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the demo target with /safe and /unsafe routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		rateLimit, _ := cmd.Flags().GetInt("rate-limit")
		delay, _ := cmd.Flags().GetDuration("default-delay")
		quiet, _ := cmd.Flags().GetBool("quiet")

		logger, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		if quiet {
			logger = zap.NewNop()
		}
		defer logger.Sync()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		fmt.Printf("🎯 Target running on http://localhost:%d\n", port)
		fmt.Println("   Endpoints: /safe, /unsafe, /api/safe, /api/unsafe, /metrics, /health")

		srv := target.New(target.ServerConfig{
			Port:         port,
			RateLimit:    rateLimit,
			DefaultDelay: delay,
		}, logger)
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 3000, "Port to listen on")
	serveCmd.Flags().Int("rate-limit", 0, "Reject requests above this many per second with 429 (0 = off)")
	serveCmd.Flags().Duration("default-delay", target.DefaultDelay, "Delay used when ?delay= is missing")
	serveCmd.Flags().BoolP("quiet", "q", false, "Disable request logging")
}
