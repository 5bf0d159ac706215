package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/app"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "docqa", rootCmd.Use)
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	v := rootCmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, v)
	assert.Equal(t, "v", v.Shorthand)

	c := rootCmd.PersistentFlags().Lookup("config")
	require.NotNil(t, c)
	assert.Equal(t, "", c.DefValue)
}

func TestRootCmd_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "ingest", "ask", "documents", "remove", "mcp", "settings", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestCoreAnnotations(t *testing.T) {
	tests := []struct {
		cmd    *cobra.Command
		core   bool
		server bool
	}{
		{askCmd, true, false},
		{ingestCmd, true, false},
		{documentsCmd, true, false},
		{removeCmd, true, false},
		{serveCmd, true, true},
		{mcpCmd, true, true},
		{settingsCmd, false, false},
		{versionCmd, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.cmd.Name(), func(t *testing.T) {
			assert.Equal(t, tt.core, tt.cmd.Annotations[annotationCore] == "true")
			assert.Equal(t, tt.server, tt.cmd.Annotations[annotationServer] == "true")
		})
	}
}

func TestBootstrap_BuildsAppForCoreCommands(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ingestionService, queryService, corpusService = nil, nil, nil

	oldBuild := buildApp
	defer func() { buildApp = oldBuild }()

	var gotDir string
	buildApp = func(_ context.Context, dir string, settings driving.SettingsService) (*app.App, error) {
		gotDir = dir
		assert.Same(t, ts.settings, settings)
		return &app.App{}, nil
	}

	oldConfigDir := configDir
	configDir = t.TempDir()
	defer func() { configDir = oldConfigDir }()

	require.NoError(t, bootstrap(askCmd, nil))
	assert.Equal(t, configDir, gotDir)
	assert.NotNil(t, current)

	require.NoError(t, shutdown(askCmd, nil))
	assert.Nil(t, current)
}

func TestBootstrap_BuildErrorIsReturned(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	ingestionService = nil

	oldBuild := buildApp
	defer func() { buildApp = oldBuild }()
	buildApp = func(context.Context, string, driving.SettingsService) (*app.App, error) {
		return nil, errors.New("no store")
	}

	err := bootstrap(askCmd, nil)
	assert.EqualError(t, err, "no store")
}

func TestBootstrap_SkipsAppForPlainCommands(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	ingestionService = nil

	oldBuild := buildApp
	defer func() { buildApp = oldBuild }()
	buildApp = func(context.Context, string, driving.SettingsService) (*app.App, error) {
		t.Fatal("app must not be built for version")
		return nil, nil
	}

	assert.NoError(t, bootstrap(versionCmd, nil))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DOCQA_TEST_DOTENV=from-file\n"), 0o600))

	oldConfigDir := configDir
	configDir = dir
	defer func() { configDir = oldConfigDir }()

	t.Setenv("DOCQA_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("DOCQA_TEST_DOTENV"))

	loadDotEnv()

	assert.Equal(t, "from-file", os.Getenv("DOCQA_TEST_DOTENV"))
}

func TestLoadDotEnv_EnvironmentWins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DOCQA_TEST_DOTENV=from-file\n"), 0o600))

	oldConfigDir := configDir
	configDir = dir
	defer func() { configDir = oldConfigDir }()

	t.Setenv("DOCQA_TEST_DOTENV", "from-env")

	loadDotEnv()

	assert.Equal(t, "from-env", os.Getenv("DOCQA_TEST_DOTENV"))
}
