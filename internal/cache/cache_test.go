package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	k := Key("gpt-4o-mini", "Dataset domain? Columns: tenure, Churn")
	assert.Len(t, k, 64)
	assert.Equal(t, k, Key("gpt-4o-mini", "Dataset domain? Columns: tenure, Churn"))
	assert.NotEqual(t, k, Key("gpt-4o", "Dataset domain? Columns: tenure, Churn"))
	assert.NotEqual(t, k, Key("gpt-4o-mini", "Dataset domain? Columns: tenure"))

	// parts are delimited, so shifting text between them changes the key
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
}

func TestCache_GetPut(t *testing.T) {
	c := New(t.TempDir())

	_, found := c.Get("missing")
	assert.False(t, found)

	require.NoError(t, c.Put("key1", &Entry{Kind: "domain", Model: "m", Output: `{"domain": "Telecom"}`}))

	e, found := c.Get("key1")
	require.True(t, found)
	assert.Equal(t, "domain", e.Kind)
	assert.Equal(t, `{"domain": "Telecom"}`, e.Output)
	assert.False(t, e.CreatedAt.IsZero())
}

func TestCache_InvalidEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0644))

	_, found := c.Get("bad")
	assert.False(t, found)
}

func TestCache_EmptyDir(t *testing.T) {
	c := New("")

	require.NoError(t, c.Put("key", &Entry{Output: "x"}))
	_, found := c.Get("key")
	assert.False(t, found)
	assert.NoError(t, c.Clear())

	var nilCache *Cache
	_, found = nilCache.Get("key")
	assert.False(t, found)
}

func TestCache_Clear_SafetyChecks(t *testing.T) {
	t.Run("refuses to clear directory with subdirectories", func(t *testing.T) {
		cacheDir := t.TempDir()
		c := New(cacheDir)
		require.NoError(t, c.Put("key1", &Entry{Output: "x"}))
		require.NoError(t, os.Mkdir(filepath.Join(cacheDir, "subdir"), 0755))

		err := c.Clear()
		assert.ErrorContains(t, err, "subdirectories")
		assert.DirExists(t, cacheDir)
	})

	t.Run("refuses to clear directory with non-json files", func(t *testing.T) {
		cacheDir := t.TempDir()
		c := New(cacheDir)
		require.NoError(t, c.Put("key1", &Entry{Output: "x"}))
		require.NoError(t, os.WriteFile(filepath.Join(cacheDir, "README.txt"), []byte("test"), 0644))

		err := c.Clear()
		assert.ErrorContains(t, err, "non-cache files")
		assert.DirExists(t, cacheDir)
	})

	t.Run("successfully clears valid cache directory", func(t *testing.T) {
		cacheDir := t.TempDir()
		c := New(cacheDir)
		require.NoError(t, c.Put("key1", &Entry{Output: "x"}))
		require.NoError(t, c.Put("key2", &Entry{Output: "y"}))

		require.NoError(t, c.Clear())
		assert.NoDirExists(t, cacheDir)
	})

	t.Run("missing directory is a no-op", func(t *testing.T) {
		assert.NoError(t, New(filepath.Join(t.TempDir(), "never-created")).Clear())
	})
}

func TestCache_ConcurrentOperations(t *testing.T) {
	cacheDir := t.TempDir()
	c := New(cacheDir)

	const numGoroutines = 8
	const numOperations = 20

	var wg sync.WaitGroup
	for i := range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range numOperations {
				key := fmt.Sprintf("key-%d-%d", i, j)
				assert.NoError(t, c.Put(key, &Entry{Output: key}))
				e, found := c.Get(key)
				if assert.True(t, found) {
					assert.Equal(t, key, e.Output)
				}
			}
		}()
	}
	wg.Wait()

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	assert.Len(t, entries, numGoroutines*numOperations)
}
