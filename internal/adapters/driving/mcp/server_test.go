package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

func TestNewServer(t *testing.T) {
	t.Run("nil retrieval service returns error", func(t *testing.T) {
		server, err := NewServer(&Ports{})
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingRetrievalService)
	})

	t.Run("built-in defaults", func(t *testing.T) {
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}})
		require.NoError(t, err)
		assert.Equal(t, 3, server.defaults.K)
		assert.Equal(t, domain.RetrievalSemantic, server.defaults.Mode)
		assert.Equal(t, 5*time.Second, server.shutdownTimeout)
		assert.NotNil(t, server.Handler())
	})

	t.Run("with defaults", func(t *testing.T) {
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}},
			WithDefaults(domain.RetrievalOptions{K: 5, Mode: domain.RetrievalHybrid, MinScore: 0.2}))
		require.NoError(t, err)
		assert.Equal(t, domain.RetrievalOptions{K: 5, Mode: domain.RetrievalHybrid, MinScore: 0.2}, server.defaults)
	})

	t.Run("non-positive default k falls back", func(t *testing.T) {
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}},
			WithDefaults(domain.RetrievalOptions{K: -1}))
		require.NoError(t, err)
		assert.Equal(t, 3, server.defaults.K)
		assert.Equal(t, domain.RetrievalSemantic, server.defaults.Mode)
	})

	t.Run("non-positive shutdown timeout is ignored", func(t *testing.T) {
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}}, WithShutdownTimeout(0))
		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, server.shutdownTimeout)
	})
}

func TestServer_Initialize(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}}, WithInstructions("ask about climate"))
	require.NoError(t, err)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	result := session.InitializeResult()
	require.NotNil(t, result)
	assert.Equal(t, "ask about climate", result.Instructions)
	assert.Equal(t, "kbase", result.ServerInfo.Name)
	assert.Equal(t, Version, result.ServerInfo.Version)

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.Contains(t, names, "retrieve")
}

func TestPorts_Validate(t *testing.T) {
	t.Run("nil retrieval service returns error", func(t *testing.T) {
		ports := &Ports{}
		err := ports.Validate()
		assert.ErrorIs(t, err, ErrMissingRetrievalService)
	})

	t.Run("retrieval only is valid", func(t *testing.T) {
		ports := &Ports{
			Retrieval: &mockRetrievalService{},
		}
		assert.NoError(t, ports.Validate())
	})

	t.Run("all ports is valid", func(t *testing.T) {
		ports := &Ports{
			Retrieval:     &mockRetrievalService{},
			Citations:     mockCitationService{},
			KnowledgeBase: &mockKnowledgeBase{},
			Ingest:        &mockIngestService{},
		}
		assert.NoError(t, ports.Validate())
	})
}
