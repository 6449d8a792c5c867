package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/sitecheck/internal/metrics"
	"github.com/hazz-dev/sitecheck/internal/server"
)

func serveCmd(f *runFlags) *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run history API and metrics",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, f, address)
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "listen address (overrides server.address)")
	return cmd
}

func runServe(cmd *cobra.Command, f *runFlags, address string) error {
	logger := newLogger(cmd.ErrOrStderr(), f.verbose)

	db, cfg, err := openHistory(cmd, f)
	if err != nil {
		return err
	}
	defer db.Close()
	if address == "" {
		address = cfg.Server.Address
	}

	collector, err := metrics.New()
	if err != nil {
		return fmt.Errorf("creating metrics: %w", err)
	}
	apiServer := server.New(db, collector, logger)

	httpServer := &http.Server{
		Addr:              address,
		Handler:           apiServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", address, "db", cfg.Storage.Path)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("HTTP server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
