package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/datasundae/pragi/api"
	"github.com/datasundae/pragi/internal/app"
	"github.com/datasundae/pragi/internal/config"
)

// API rate limit: steady rate with room for short bursts.
const (
	requestsPerSecond = 10
	requestBurst      = 20
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	server := api.NewServer(
		api.NewHealthHandler(a.DBPool, logger),
		api.NewSearchHandler(a.Retriever, logger),
		api.NewChatHandler(a.Answer, logger),
		api.NewIngestHandler(a.Ingest, logger),
		api.NewReportHandler(a.Tracker, logger),
		rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
	)

	addr := serveAddr
	if addr == "" {
		addr = cfg.Addr
	}
	return server.Run(ctx, addr)
}
