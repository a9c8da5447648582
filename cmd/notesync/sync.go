package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexjbarnes/notesync/internal/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one reconciliation pass now",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, out io.Writer, _ []string) error {
		report := a.connect(ctx)
		printReport(out, report)

		if report.Outcome == syncer.OutcomeFailed {
			return report.Err
		}

		return nil
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connectivity, last sync, and pending count",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, out io.Writer, _ []string) error {
		online := a.monitor.Probe(ctx)

		last := "never"
		if t := a.engine.LastSyncTime(); !t.IsZero() {
			last = fmt.Sprintf("%s (%s ago)", t.Format(time.RFC3339), time.Since(t).Round(time.Second))
		}

		fmt.Fprintf(out, "owner:        %s\n", a.cfg.OwnerID)
		fmt.Fprintf(out, "remote:       %s\n", a.cfg.RemoteURL)
		fmt.Fprintf(out, "online:       %t\n", online)
		fmt.Fprintf(out, "last sync:    %s\n", last)
		fmt.Fprintf(out, "pending:      %d\n", a.ledger.Len())
		fmt.Fprintf(out, "default mode: %s\n", a.engine.DefaultMode())
		fmt.Fprintf(out, "state:        %s\n", a.state.Path())

		return nil
	}),
}

func printReport(w io.Writer, r syncer.Report) {
	switch r.Outcome {
	case syncer.OutcomeSkipped:
		fmt.Fprintln(w, "offline, nothing synced")
		return
	case syncer.OutcomeDropped:
		fmt.Fprintln(w, "a sync is already running")
		return
	case syncer.OutcomeFailed:
		fmt.Fprintf(w, "sync failed: %v\n", r.Err)
		return
	}

	fmt.Fprintf(w, "synced %d notes in %s: %d pushed, %d failed, %d confirmed\n",
		r.Notes, r.Duration.Round(time.Millisecond), r.Pushed, r.PushFails, len(r.Cleared))

	for _, c := range r.Conflicts {
		fmt.Fprintf(w, "  conflict %s: %s copy kept, other differed by %s\n", c.ID, c.Winner, c.Diff)
	}
}
