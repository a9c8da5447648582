package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alexjbarnes/notesync/internal/models"
	"github.com/alexjbarnes/notesync/internal/syncer"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync daemon until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(os.Stdout)
		if err != nil {
			return err
		}
		defer a.Close()

		return runDaemon(cmd.Context(), a)
	},
}

// runDaemon probes connectivity and schedules passes until ctx ends.
func runDaemon(ctx context.Context, a *app) error {
	a.logger.Info("notesync starting",
		slog.String("version", Version),
		slog.String("owner", a.cfg.OwnerID),
		slog.String("remote", a.cfg.RemoteURL),
		slog.Int("pending", a.state.PendingCount(a.cfg.OwnerID)),
	)

	unsubscribe := a.view.OnChange(func(notes []models.Note) {
		a.logger.Debug("view updated", slog.Int("notes", len(notes)))
	})
	defer unsubscribe()

	scheduler := syncer.NewScheduler(a.engine, a.monitor, a.cfg.SyncInterval, a.logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.monitor.Run(gctx)
	})

	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	a.logger.Info("notesync stopped")

	return err
}
