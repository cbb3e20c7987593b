package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

func TestExtractDocumentID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{
			name:     "valid document URI",
			uri:      "kbase://documents/doc-456",
			expected: "doc-456",
		},
		{
			name:     "invalid prefix",
			uri:      "file://documents/doc-456",
			expected: "",
		},
		{
			name:     "nested path",
			uri:      "kbase://documents/doc-456/chunks",
			expected: "",
		},
		{
			name:     "empty URI",
			uri:      "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractDocumentID(tt.uri)
			assert.Equal(t, tt.expected, result)
		})
	}
}

// Helper to create a ReadResourceRequest with the given URI.
func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func sampleKB() *mockKnowledgeBase {
	return &mockKnowledgeBase{docs: []domain.DocumentSummary{{
		Document: domain.Document{
			ID:         "doc-1",
			Title:      "Evidence",
			SourceName: "climate.nasa.gov",
			Origin:     domain.Origin{Kind: domain.OriginWebPage, Locator: "https://climate.nasa.gov/evidence/"},
			RawText:    "Earth's climate has changed throughout history.",
		},
		ChunkCount: 2,
	}}}
}

func TestServer_handleDocumentsResource(t *testing.T) {
	ctx := context.Background()

	t.Run("nil knowledge base returns empty list", func(t *testing.T) {
		server := newTestServer(t, &Ports{})

		result, err := server.handleDocumentsResource(ctx, makeReadResourceRequest("kbase://documents"))
		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "[]", result.Contents[0].Text)
	})

	t.Run("returns documents", func(t *testing.T) {
		server := newTestServer(t, &Ports{KnowledgeBase: sampleKB()})

		result, err := server.handleDocumentsResource(ctx, makeReadResourceRequest("kbase://documents"))
		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "application/json", result.Contents[0].MIMEType)
		assert.Contains(t, result.Contents[0].Text, `"id": "doc-1"`)
		assert.Contains(t, result.Contents[0].Text, `"chunks": 2`)
	})

	t.Run("returns error on list failure", func(t *testing.T) {
		server := newTestServer(t, &Ports{KnowledgeBase: &mockKnowledgeBase{err: errors.New("database error")}})

		_, err := server.handleDocumentsResource(ctx, makeReadResourceRequest("kbase://documents"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "listing documents")
	})
}

func TestServer_handleDocumentContentResource(t *testing.T) {
	ctx := context.Background()

	t.Run("nil knowledge base returns not found", func(t *testing.T) {
		server := newTestServer(t, &Ports{})
		_, err := server.handleDocumentContentResource(ctx, makeReadResourceRequest("kbase://documents/doc-1"))
		require.Error(t, err)
	})

	t.Run("invalid URI returns not found", func(t *testing.T) {
		server := newTestServer(t, &Ports{KnowledgeBase: sampleKB()})
		_, err := server.handleDocumentContentResource(ctx, makeReadResourceRequest("kbase://invalid/uri"))
		require.Error(t, err)
	})

	t.Run("unknown document returns not found", func(t *testing.T) {
		server := newTestServer(t, &Ports{KnowledgeBase: sampleKB()})
		_, err := server.handleDocumentContentResource(ctx, makeReadResourceRequest("kbase://documents/missing"))
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "getting document")
	})

	t.Run("returns document text", func(t *testing.T) {
		server := newTestServer(t, &Ports{KnowledgeBase: sampleKB()})

		result, err := server.handleDocumentContentResource(ctx, makeReadResourceRequest("kbase://documents/doc-1"))
		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "text/plain", result.Contents[0].MIMEType)
		assert.Equal(t, "Earth's climate has changed throughout history.", result.Contents[0].Text)
	})

	t.Run("store error is wrapped", func(t *testing.T) {
		server := newTestServer(t, &Ports{KnowledgeBase: &mockKnowledgeBase{err: errors.New("io error")}})
		_, err := server.handleDocumentContentResource(ctx, makeReadResourceRequest("kbase://documents/doc-1"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "getting document")
	})
}
