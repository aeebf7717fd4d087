package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/pdfrag/internal/api"
	"github.com/kalambet/pdfrag/internal/engine"
	"github.com/kalambet/pdfrag/internal/ingest"
)

const workerPollInterval = 500 * time.Millisecond

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background ingest worker",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		maxConns, _ := cmd.Flags().GetInt("max-conns")
		return runServer(cmd.Context(), maxConns)
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the query and ingest tools over MCP on stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Int("max-conns", 64, "maximum simultaneous HTTP connections (0 = unlimited)")
}

func runServer(ctx context.Context, maxConns int) error {
	fmt.Fprintf(os.Stderr, "pdfrag version %s\n", version)

	a, err := loadApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	newOutput(os.Stderr).step("Checking model backend")
	if err := engine.EnsureReady(ctx, a.engine, os.Stderr, a.cfg.Models.Embed, a.cfg.Models.Chat); err != nil {
		return err
	}

	worker := ingest.NewWorker(a.store, a.ingester(), workerPollInterval, a.logger)
	handler := api.NewHandler(api.Deps{
		Catalog: a.store,
		Querier: a.querier(),
		Index:   a.index,
		Metrics: a.metrics,
		Token:   a.cfg.Server.Token,
		TopK:    a.cfg.Retrieval.TopK,
	})
	addr := fmt.Sprintf("127.0.0.1:%d", a.cfg.Server.Port)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.Serve(gctx, addr, handler, maxConns, a.logger)
	})
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})
	return g.Wait()
}

func runMCP(ctx context.Context) error {
	a, err := loadApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Querier:  a.querier(),
		Ingester: a.ingester(),
		Index:    a.index,
		Catalog:  a.store,
		TopK:     a.cfg.Retrieval.TopK,
		Version:  version,
	})
	a.logger.Info("MCP server listening on stdio")
	if err := server.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
