package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gareflow/gareflow/internal/api"
	"github.com/gareflow/gareflow/internal/storage"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tender API over HTTP",
	Long: `Start the HTTP+JSON API on the configured listen address.

Requests select their tenant with the X-Tenant-ID header; requests without
it use the --tenant flag or the configured tenant. Prometheus metrics are
exposed on /metrics.

Only one server may own a database at a time. A lock file is written next
to the database and removed on shutdown.`,
	Annotations: map[string]string{"long-running": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.ListenAddr
		if serveAddr != "" {
			addr = serveAddr
		}

		lockPath := ""
		if dbPath != ":memory:" {
			var err error
			lockPath, err = storage.AcquireServerLock(dbPath, addr)
			if err != nil {
				return err
			}
			defer func() {
				if err := storage.ReleaseServerLock(lockPath); err != nil {
					fmt.Fprintf(os.Stderr, "warning: %v\n", err)
				}
			}()
		}

		handler := api.NewHandler(svc,
			api.WithLogger(logger),
			api.WithMetrics(reg),
			api.WithDefaultTenant(tenantID),
			api.WithMaxBodySize(cfg.Uploads.MaxBytes))
		server := &http.Server{
			Addr:              addr,
			Handler:           handler.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.ListenAndServe()
		}()

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(os.Stderr, "%s Serving tenders from %s on http://%s\n", green("✓"), dbPath, addr)
		if !svc.Assistant().Enabled() {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Fprintf(os.Stderr, "%s Text generation not configured; fallbacks only\n", yellow("Note:"))
		}

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}
