package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*ConfigStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	return store, dir
}

func TestNewConfigStore(t *testing.T) {
	store, dir := newTestStore(t)
	assert.Equal(t, filepath.Join(dir, "config.toml"), store.Path())
}

func TestSetAndGetTypes(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Set("embedding.model", "nomic-embed-text"))
	require.NoError(t, store.Set("ingest.batch_size", 64))
	require.NoError(t, store.Set("search.rerank", true))

	assert.Equal(t, "nomic-embed-text", store.GetString("embedding.model"))
	assert.Equal(t, 64, store.GetInt("ingest.batch_size"))
	assert.True(t, store.GetBool("search.rerank"))

	// Missing keys and wrong types fall back to zero values.
	assert.Equal(t, "", store.GetString("nonexistent"))
	assert.Equal(t, 0, store.GetInt("embedding.model"))
	assert.False(t, store.GetBool("ingest.batch_size"))

	_, ok := store.Get("nonexistent")
	assert.False(t, ok)
}

func TestPersistenceAcrossReload(t *testing.T) {
	store, dir := newTestStore(t)

	require.NoError(t, store.Set("qdrant.url", "http://localhost:6333"))
	require.NoError(t, store.Set("ingest.workers", 8))

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:6333", reloaded.GetString("qdrant.url"))
	assert.Equal(t, 8, reloaded.GetInt("ingest.workers"))
}

func TestLoadFlattensNestedTables(t *testing.T) {
	dir := t.TempDir()
	content := []byte("[embedding]\nprovider = \"ollama\"\n\n[embedding.ollama]\nmodel = \"nomic-embed-text\"\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), content, 0600))

	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.Equal(t, "ollama", store.GetString("embedding.provider"))
	assert.Equal(t, "nomic-embed-text", store.GetString("embedding.ollama.model"))
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	store, _ := newTestStore(t)

	_, ok := store.Get("any_key")
	assert.False(t, ok)
}

func TestLoadCorruptedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"),
		[]byte("not toml {{{["), 0600))

	store, err := NewConfigStore(dir)
	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestFilePermissions(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Set("test", "value"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestOverwriteValue(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Set("key", "original"))
	require.NoError(t, store.Set("key", "updated"))
	assert.Equal(t, "updated", store.GetString("key"))
}

func TestGetIntHandlesInt64(t *testing.T) {
	store, _ := newTestStore(t)

	// TOML unmarshals integers as int64.
	store.mu.Lock()
	store.data["int64_key"] = int64(9999)
	store.mu.Unlock()

	assert.Equal(t, 9999, store.GetInt("int64_key"))
}

func TestNestedConfigDirIsCreated(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "deep")

	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), store.Path())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
