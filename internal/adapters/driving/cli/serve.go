package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/docqa/internal/adapters/driving/api"
	"github.com/custodia-labs/docqa/internal/adapters/driving/watch"
	"github.com/custodia-labs/docqa/internal/logger"
)

var (
	serveAddr     string
	serveWatchDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the HTTP API for uploading documents and asking questions.

Endpoints:
  POST   /upload               upload a PDF (multipart field "file")
  POST   /query                {"question": "..."}
  GET    /documents            list uploaded documents
  DELETE /documents/:filename  remove a document
  GET    /health               liveness probe

With --watch, PDFs dropped into the directory are ingested automatically
and deleting them removes them from the corpus.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from settings, :8000)")
	serveCmd.Flags().StringVar(&serveWatchDir, "watch", "", "inbox directory to watch for PDFs")
	runsServer(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil || queryService == nil || corpusService == nil {
		return errors.New("services not configured")
	}
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cfg := api.Config{
		Addr:           settings.Server.Addr,
		MaxUploadBytes: settings.Server.MaxUploadBytes,
		AllowedOrigin:  settings.Server.AllowedOrigin,
	}
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}
	watchDir := settings.Server.WatchDir
	if serveWatchDir != "" {
		watchDir = serveWatchDir
	}

	server, err := api.NewServer(&api.Ports{
		Ingestion: ingestionService,
		Query:     queryService,
		Corpus:    corpusService,
	}, cfg)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(commandContext(cmd))
	g.Go(func() error {
		return server.Run(ctx)
	})
	if watchDir != "" {
		g.Go(func() error {
			return runWatcher(ctx, watchDir)
		})
	}

	cmd.Printf("docqa listening on %s\n", server.Addr())
	return g.Wait()
}

// runWatcher ingests what is already in dir, then follows changes.
func runWatcher(ctx context.Context, dir string) error {
	w := watch.New(dir, ingestionService)
	n, err := w.Scan(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Info("Ingested %d PDFs from %s", n, dir)
	}
	return w.Run(ctx)
}
