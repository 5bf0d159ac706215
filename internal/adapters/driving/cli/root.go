// Package cli implements the docqa command line interface.
package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/app"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// version is set at build time through Execute.
var version = "dev"

// Command annotations.
const (
	// annotationCore marks commands that need the providers, store and index.
	annotationCore = "docqa/core"

	// annotationSettings marks commands that only read or write settings.
	annotationSettings = "docqa/settings"

	// annotationServer marks long-running commands that log as they work.
	annotationServer = "docqa/server"
)

// Persistent flags.
var (
	verbose   bool
	configDir string
)

// Services used by commands. Tests replace them with mocks.
var (
	settingsService  driving.SettingsService
	ingestionService driving.IngestionService
	queryService     driving.QueryService
	corpusService    driving.CorpusService
)

// current is the application built by bootstrap, closed after the command.
var current *app.App

// buildApp builds the application; replaced in tests.
var buildApp = app.Build

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Ask questions about your PDF documents",
	Long: `docqa answers questions using only the PDFs you upload, citing the
file and page each answer draws on.

Upload documents with 'docqa ingest', ask with 'docqa ask', or run
'docqa serve' to expose the HTTP API.`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  bootstrap,
	PersistentPostRunE: shutdown,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "configuration directory (default ~/.docqa)")
}

// Execute runs the root command.
func Execute(ctx context.Context, v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.ExecuteContext(ctx)
}

func annotate(cmd *cobra.Command, key string) {
	if cmd.Annotations == nil {
		cmd.Annotations = make(map[string]string)
	}
	cmd.Annotations[key] = "true"
}

// requiresCore marks cmd as needing the full application.
func requiresCore(cmd *cobra.Command) {
	annotate(cmd, annotationCore)
}

// requiresSettings marks cmd as needing only the settings service.
func requiresSettings(cmd *cobra.Command) {
	annotate(cmd, annotationSettings)
}

// runsServer marks cmd as long-running: Info logs are shown with timestamps.
func runsServer(cmd *cobra.Command) {
	requiresCore(cmd)
	annotate(cmd, annotationServer)
}

// bootstrap loads the environment and builds the services a command needs.
func bootstrap(cmd *cobra.Command, _ []string) error {
	server := cmd.Annotations[annotationServer] == "true"
	logger.SetVerbose(verbose)
	logger.SetQuiet(!server)
	logger.SetTimestamps(server)
	loadDotEnv()

	core := cmd.Annotations[annotationCore] == "true"
	if !core && cmd.Annotations[annotationSettings] != "true" {
		return nil
	}

	if settingsService == nil {
		svc, err := app.NewSettingsService(configDir)
		if err != nil {
			return err
		}
		settingsService = svc
	}

	if !core || ingestionService != nil {
		return nil
	}

	a, err := buildApp(commandContext(cmd), configDir, settingsService)
	if err != nil {
		return err
	}
	for _, w := range a.Warnings {
		logger.Warn("%s", w)
	}

	current = a
	ingestionService = a.Ingestion
	queryService = a.Query
	corpusService = a.Corpus
	return nil
}

// shutdown releases the application built by bootstrap.
func shutdown(_ *cobra.Command, _ []string) error {
	if current == nil {
		return nil
	}
	current.Close()
	current = nil
	ingestionService = nil
	queryService = nil
	corpusService = nil
	return nil
}

// loadDotEnv loads .env from the working directory and the config directory.
// Variables already set in the environment win.
func loadDotEnv() {
	paths := []string{".env"}
	dir := configDir
	if dir == "" {
		if d, err := app.DefaultConfigDir(); err == nil {
			dir = d
		}
	}
	if dir != "" {
		paths = append(paths, filepath.Join(dir, ".env"))
	}

	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Loading %s: %v", p, err)
		}
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
