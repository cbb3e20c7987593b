package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

func newTestServer(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/embeddings", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultModel, req.Model)

		data := make([]map[string]any, 0, len(req.Input))
		// Reverse order to check index-based reordering.
		for i := len(req.Input) - 1; i >= 0; i-- {
			vec := make([]float32, dims)
			vec[0] = float32(len(req.Input[i]))
			data = append(data, map[string]any{"object": "embedding", "index": i, "embedding": vec})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": req.Model})
	})
	mux.HandleFunc("/models", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewEmbeddingService(t *testing.T) {
	t.Run("requires API key", func(t *testing.T) {
		_, err := NewEmbeddingService(Config{})
		assert.ErrorIs(t, err, domain.ErrConfig)
	})

	t.Run("unknown model", func(t *testing.T) {
		_, err := NewEmbeddingService(Config{APIKey: "k", Model: "text-embedding-9-huge"})
		assert.ErrorIs(t, err, domain.ErrConfig)
	})

	t.Run("model without known dimensions", func(t *testing.T) {
		_, err := NewEmbeddingService(Config{APIKey: "k", Model: "text-search-ada-doc-001"})
		assert.ErrorIs(t, err, domain.ErrConfig)

		s, err := NewEmbeddingService(Config{APIKey: "k", Model: "text-search-ada-doc-001", Dimensions: 1024})
		require.NoError(t, err)
		assert.Equal(t, 1024, s.Dimensions())
		assert.Equal(t, "text-search-ada-doc-001", s.ModelName())
	})

	t.Run("defaults", func(t *testing.T) {
		s, err := NewEmbeddingService(Config{APIKey: "k"})
		require.NoError(t, err)
		assert.Equal(t, DefaultModel, s.ModelName())
		assert.Equal(t, 1536, s.Dimensions())
	})
}

func TestEmbedBatch(t *testing.T) {
	srv := newTestServer(t, 4)
	s, err := NewEmbeddingService(Config{APIKey: "test-key", BaseURL: srv.URL, Dimensions: 4, BatchSize: 2})
	require.NoError(t, err)

	vecs, err := s.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, float32(1), vecs[0][0])
	assert.Equal(t, float32(2), vecs[1][0])
	assert.Equal(t, float32(3), vecs[2][0])

	one, err := s.Embed(context.Background(), "dddd")
	require.NoError(t, err)
	assert.Equal(t, float32(4), one[0])

	assert.NoError(t, s.Ping(context.Background()))
}

func TestEmbed_DimensionMismatch(t *testing.T) {
	srv := newTestServer(t, 8)
	s, err := NewEmbeddingService(Config{APIKey: "test-key", BaseURL: srv.URL, Dimensions: 4})
	require.NoError(t, err)

	_, err = s.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, domain.ErrEmbeddingMismatch)
}

func TestEmbed_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	s, err := NewEmbeddingService(Config{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = s.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Error(t, s.Ping(context.Background()))
}
