package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

func newStore(t *testing.T) *ConfigStore {
	t.Helper()
	store, err := NewConfigStore(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)
	return store
}

func TestNewConfigStore(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "config.toml")
		store, err := NewConfigStore(path)
		require.NoError(t, err)
		assert.Equal(t, path, store.Path())
		assert.Empty(t, store.Keys())
	})

	t.Run("default path", func(t *testing.T) {
		home, err := os.UserHomeDir()
		if err != nil {
			t.Skip("cannot determine home directory")
		}
		store, err := NewConfigStore("")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".kbase", "config.toml"), store.Path())
	})

	t.Run("corrupted file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(path, []byte("[chunking\nsize = "), 0o600))
		_, err := NewConfigStore(path)
		assert.ErrorIs(t, err, domain.ErrConfig)
	})
}

func TestConfigStore_SetAndGet(t *testing.T) {
	store := newStore(t)

	require.NoError(t, store.Set("embedding.provider", "ollama"))
	require.NoError(t, store.Set("retrieval.top_k", 5))

	assert.Equal(t, "ollama", store.GetString("embedding.provider"))
	assert.Equal(t, 5, store.GetInt("retrieval.top_k"))
	assert.Equal(t, []string{"embedding.provider", "retrieval.top_k"}, store.Keys())

	_, ok := store.Get("missing")
	assert.False(t, ok)
	assert.Empty(t, store.GetString("missing"))
	assert.Zero(t, store.GetInt("embedding.provider"))
}

func TestConfigStore_SetRejectsInvalid(t *testing.T) {
	store := newStore(t)

	tests := []struct {
		key   string
		value any
	}{
		{"embedding.provider", "anthropic"},
		{"chunking.size", 100}, // below default overlap
		{"chunking.size", "big"},
		{"retrieval.top_k", 0},
		{"fetch.timeout", "soon"},
		{"", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := store.Set(tt.key, tt.value)
			assert.ErrorIs(t, err, domain.ErrConfig)
		})
	}

	assert.Empty(t, store.Keys())
	_, err := os.Stat(store.Path())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfigStore_PersistsNestedTables(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Set("chunking.size", 500))
	require.NoError(t, store.Set("chunking.overlap", 50))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[chunking]")

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := NewConfigStore(store.Path())
	require.NoError(t, err)
	assert.Equal(t, 500, reopened.GetInt("chunking.size"))
	assert.Equal(t, 50, reopened.GetInt("chunking.overlap"))

	cfg, err := Load(store.Path())
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Chunking.Size)
	assert.Equal(t, 50, cfg.Chunking.Overlap)
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := newStore(t)
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Set("retrieval.top_k", i+1)
			_ = store.GetInt("retrieval.top_k")
		}()
	}
	wg.Wait()
	assert.Positive(t, store.GetInt("retrieval.top_k"))
}

func TestFlattenUnflatten(t *testing.T) {
	nested := map[string]any{
		"a": map[string]any{"b": int64(1), "c": map[string]any{"d": "x"}},
		"e": []any{"y"},
	}
	flat := flattenMap(nested, "")
	assert.Equal(t, map[string]any{"a.b": int64(1), "a.c.d": "x", "e": []any{"y"}}, flat)
	assert.Equal(t, nested, unflattenMap(flat))
}
