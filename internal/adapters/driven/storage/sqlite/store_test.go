package sqlite

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "docqa-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

func TestNewStore_ErrorHandling(t *testing.T) {
	_, err := NewStore("/invalid\x00path")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "creating data directory")
}

func TestNewStore_Success(t *testing.T) {
	tempDir := t.TempDir()

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	dbPath := filepath.Join(tempDir, "metadata.db")
	assert.Equal(t, dbPath, store.Path())
	assert.FileExists(t, dbPath)
	assert.NoError(t, store.db.Ping())
}

func TestNewStore_DirectoryCreation(t *testing.T) {
	nestedDir := filepath.Join(t.TempDir(), "nested", "path", "to", "db")

	store, err := NewStore(nestedDir)
	require.NoError(t, err)
	defer store.Close()

	assert.DirExists(t, nestedDir)
}

func TestNewStore_Migrations(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	var count int
	err := store.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	for _, table := range []string{"documents", "chunks", "index_meta"} {
		var exists int
		err := store.db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&exists)
		require.NoError(t, err)
		assert.Equal(t, 1, exists, "table %s should exist", table)
	}
}

func TestNewStore_ReopenSkipsAppliedMigrations(t *testing.T) {
	tempDir := t.TempDir()

	first, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewStore(tempDir)
	require.NoError(t, err)
	defer second.Close()

	var count int
	require.NoError(t, second.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestStore_Close(t *testing.T) {
	store, _ := setupTestStore(t)

	assert.NoError(t, store.Close())
	assert.Error(t, store.db.Ping())
}

func TestStore_Exclusive_Alone(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	calls := 0
	ran, err := store.Exclusive(func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 1, calls)
	assert.True(t, store.lock.RLocked())
}

func TestStore_Exclusive_SkippedWhileAnotherStoreIsOpen(t *testing.T) {
	dir := t.TempDir()

	first, err := NewStore(dir)
	require.NoError(t, err)
	second, err := NewStore(dir)
	require.NoError(t, err)
	defer second.Close()

	ran, err := second.Exclusive(func() error {
		t.Fatal("must not run while another store holds the directory")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, ran)
	assert.True(t, second.lock.RLocked())

	require.NoError(t, first.Close())

	ran, err = second.Exclusive(func() error { return nil })
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestStore_Exclusive_ReturnsCallbackError(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	boom := errors.New("boom")
	ran, err := store.Exclusive(func() error { return boom })

	assert.True(t, ran)
	assert.ErrorIs(t, err, boom)

	// The shared lock is back, so a second store still opens.
	other, err := NewStore(filepath.Dir(store.Path()))
	require.NoError(t, err)
	assert.NoError(t, other.Close())
}

func TestFloat32Conversion(t *testing.T) {
	tests := []struct {
		name  string
		input []float32
	}{
		{name: "nil", input: nil},
		{name: "single", input: []float32{1.5}},
		{name: "mixed", input: []float32{-0.25, 0, 3.14159, 1e-7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := bytesToFloat32Slice(float32SliceToBytes(tt.input))
			assert.Equal(t, tt.input, got)
		})
	}
}
