package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/adapters/driven/config/file"
	"github.com/custodia-labs/kbase/internal/core/domain"
)

func setupConfigStore(t *testing.T) (*file.ConfigStore, *mockKnowledgeBase) {
	t.Helper()
	store, err := file.NewConfigStore(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)

	kb := &mockKnowledgeBase{}
	SetServices(&Services{ConfigStore: store, KnowledgeBase: kb})
	t.Cleanup(func() { SetServices(&Services{}) })
	return store, kb
}

func TestConfigCmd_SetAndGet(t *testing.T) {
	store, kb := setupConfigStore(t)

	out, err := execute(t, "config", "set", "chunking.size", "500")
	require.NoError(t, err)
	assert.Contains(t, out, "chunking.size = 500")
	assert.Equal(t, 500, store.GetInt("chunking.size"))

	_, err = execute(t, "config", "set", "embedding.provider", "ollama")
	require.NoError(t, err)

	out, err = execute(t, "config", "get", "embedding.provider")
	require.NoError(t, err)
	assert.Equal(t, "\"ollama\"\n", out)

	out, err = execute(t, "config", "get")
	require.NoError(t, err)
	assert.Contains(t, out, "chunking.size = 500")
	assert.Contains(t, out, `embedding.provider = "ollama"`)

	assert.Zero(t, kb.initCalls, "config commands never restore the index")
}

func TestConfigCmd_SetRejectsInvalid(t *testing.T) {
	store, _ := setupConfigStore(t)

	_, err := execute(t, "config", "set", "embedding.provider", "word2vec")

	assert.ErrorIs(t, err, domain.ErrConfig)
	_, ok := store.Get("embedding.provider")
	assert.False(t, ok)
}

func TestConfigCmd_GetUnknownKey(t *testing.T) {
	setupConfigStore(t)

	_, err := execute(t, "config", "get", "nope.key")

	require.Error(t, err)
	assert.Contains(t, err.Error(), `key "nope.key" is not set`)
}

func TestConfigCmd_Path(t *testing.T) {
	store, _ := setupConfigStore(t)

	out, err := execute(t, "config", "path")

	require.NoError(t, err)
	assert.Equal(t, store.Path()+"\n", out)
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"42", int64(42)},
		{"0.25", 0.25},
		{"true", true},
		{"[a, \"b\"]", []any{"a", "b"}},
		{"[]", []any{}},
		{"cosine", "cosine"},
		{"10s", "10s"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseValue(tt.in))
		})
	}
}
