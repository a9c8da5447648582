package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/alexjbarnes/notesync/internal/config"
	"github.com/alexjbarnes/notesync/internal/ledger"
	"github.com/alexjbarnes/notesync/internal/logging"
	"github.com/alexjbarnes/notesync/internal/netmon"
	"github.com/alexjbarnes/notesync/internal/notify"
	"github.com/alexjbarnes/notesync/internal/remote"
	"github.com/alexjbarnes/notesync/internal/state"
	"github.com/alexjbarnes/notesync/internal/syncer"
	"github.com/alexjbarnes/notesync/internal/view"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "notesync",
	Short: "Offline-first note sync client",
	Long: `notesync keeps a local ledger of note edits and reconciles it with a
remote note service whenever the service is reachable.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       Version,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr")

	rootCmd.AddCommand(runCmd, serveCmd, createCmd, editCmd, deleteCmd,
		listCmd, syncCmd, statusCmd, pendingCmd, modeCmd, mcpCmd)
}

// app is the wiring shared by every client command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	state    *state.State
	client   *remote.Client
	ledger   *ledger.Ledger
	monitor  *netmon.Monitor
	view     *view.Store
	notifier notify.Notifier
	engine   *syncer.Engine
}

// newApp loads configuration and opens the local state. Long-running
// commands pass the writer they log to. One-shot commands pass nil to keep
// stdout for output and only log to stderr with --verbose.
func newApp(logOut io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.RequireClient(); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	var logger *slog.Logger

	switch {
	case logOut != nil:
		logger = logging.NewLoggerTo(logOut, cfg.Environment)
	case verbose:
		logger = logging.NewLoggerTo(os.Stderr, cfg.Environment)
	default:
		logger = logging.Discard()
	}

	st, recovered, err := state.OpenOrReset(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("opening state: %w", err)
	}

	if recovered {
		logger.Warn("state database was unreadable and has been reset",
			slog.String("path", cfg.StatePath),
		)
	}

	notifier, err := notify.New(cfg.NotifyURL, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	client := remote.NewClient(cfg.RemoteURL, cfg.RemoteToken, nil)
	monitor := netmon.New(false, client, cfg.ProbeInterval, logger)
	notes := view.New()
	pending := ledger.New(st, cfg.OwnerID, logger)

	engine := syncer.New(syncer.Config{
		OwnerID:       cfg.OwnerID,
		DefaultMode:   cfg.Mode(),
		RemoteTimeout: cfg.RemoteTimeout,
		Recipients:    cfg.NotifyRecipients,
	}, syncer.Deps{
		Remote:   client,
		Ledger:   pending,
		View:     notes,
		Monitor:  monitor,
		Notifier: notifier,
		State:    st,
		Logger:   logger,
	})

	return &app{
		cfg:      cfg,
		logger:   logger,
		state:    st,
		client:   client,
		ledger:   pending,
		monitor:  monitor,
		view:     notes,
		notifier: notifier,
		engine:   engine,
	}, nil
}

// connect probes the remote service once and, if reachable, runs a pass
// so the view holds the merged collection.
func (a *app) connect(ctx context.Context) syncer.Report {
	if !a.monitor.Probe(ctx) {
		return syncer.Report{Outcome: syncer.OutcomeSkipped}
	}

	return a.engine.TriggerSync(ctx)
}

// settle runs the follow-up pass a successful push asked for. One-shot
// commands have no scheduler to do it.
func (a *app) settle(ctx context.Context) {
	select {
	case <-a.engine.Requests():
		a.engine.TriggerSync(ctx)
	default:
	}
}

func (a *app) Close() {
	if err := a.notifier.Close(); err != nil {
		a.logger.Debug("closing notifier", slog.String("error", err.Error()))
	}

	if err := a.state.Close(); err != nil {
		a.logger.Debug("closing state", slog.String("error", err.Error()))
	}
}

// withApp runs fn with a one-shot app and closes it afterwards.
func withApp(fn func(ctx context.Context, a *app, out io.Writer, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(nil)
		if err != nil {
			return err
		}
		defer a.Close()

		return fn(cmd.Context(), a, cmd.OutOrStdout(), args)
	}
}
