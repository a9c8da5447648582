package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexjbarnes/notesync/internal/config"
	"github.com/alexjbarnes/notesync/internal/logging"
	"github.com/alexjbarnes/notesync/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run an in-memory note service for local development",
	Long: `serve runs a reference implementation of the note service REST API
backed by memory. Data is lost on exit. NOTESYNC_REMOTE_TOKEN, if set, is
required as a bearer token.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		return serve(cmd.Context(), cfg, logging.NewLogger(cfg.Environment))
	},
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger = logger.With(slog.String("component", "server"))

	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: server.NewMux(server.MuxConfig{
			Store:  server.NewNoteStore(),
			Token:  cfg.RemoteToken,
			Logger: logger,
		}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.Info("starting note service", slog.String("listen", cfg.ListenAddr))

	// Shutdown when context is cancelled.
	go func() {
		<-ctx.Done()
		logger.Info("shutting down note service")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("note service error: %w", err)
	}

	return nil
}
