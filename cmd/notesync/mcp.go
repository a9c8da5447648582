package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alexjbarnes/notesync/internal/mcpserver"
	"github.com/alexjbarnes/notesync/internal/syncer"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve note tools to an MCP client over stdio",
	Long: `mcp exposes the note collection as MCP tools on stdin/stdout. The
sync daemon runs alongside, so edits made through the tools are reconciled
like any other. Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(os.Stderr)
		if err != nil {
			return err
		}
		defer a.Close()

		return serveMCP(cmd.Context(), a, &mcp.StdioTransport{})
	},
}

// serveMCP runs the MCP server on transport together with the monitor and
// scheduler. It returns when the client disconnects or ctx ends.
func serveMCP(ctx context.Context, a *app, transport mcp.Transport) error {
	server := mcp.NewServer(
		&mcp.Implementation{Name: "notesync", Version: Version},
		nil,
	)
	mcpserver.RegisterTools(server, a.engine, a.view)

	scheduler := syncer.NewScheduler(a.engine, a.monitor, a.cfg.SyncInterval, a.logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.monitor.Run(gctx)
	})

	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	g.Go(func() error {
		defer cancel()
		return server.Run(gctx, transport)
	})

	a.logger.Info("mcp server started", slog.String("owner", a.cfg.OwnerID))

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	a.logger.Info("mcp server stopped")

	return err
}
