package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/logger"
)

// Version is reported to clients during initialisation.
const Version = "0.1.0"

const instructions = "Search the knowledge base with retrieve and quote passages " +
	"together with their citation labels."

// Server exposes the knowledge base as MCP tools and resources.
type Server struct {
	ports           *Ports
	defaults        domain.RetrievalOptions
	instructions    string
	shutdownTimeout time.Duration
	server          *mcp.Server
}

// Option configures a Server.
type Option func(*Server)

// WithDefaults sets the retrieval options applied when a tool call leaves
// k or mode out. A non-positive K keeps the built-in default.
func WithDefaults(opts domain.RetrievalOptions) Option {
	return func(s *Server) {
		k := s.defaults.K
		s.defaults = opts
		if s.defaults.K <= 0 {
			s.defaults.K = k
		}
		if s.defaults.Mode == "" {
			s.defaults.Mode = domain.RetrievalSemantic
		}
	}
}

// WithInstructions replaces the usage hint sent to clients.
func WithInstructions(text string) Option {
	return func(s *Server) { s.instructions = text }
}

// WithShutdownTimeout bounds how long RunHTTP waits for open streams.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// NewServer validates ports and registers the tools and resources they back.
func NewServer(ports *Ports, opts ...Option) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("mcp server: %w", err)
	}

	s := &Server{
		ports:           ports,
		defaults:        domain.RetrievalOptions{K: 3, Mode: domain.RetrievalSemantic},
		instructions:    instructions,
		shutdownTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.server = mcp.NewServer(
		&mcp.Implementation{Name: "kbase", Version: Version},
		&mcp.ServerOptions{Instructions: s.instructions},
	)
	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run serves a single client over stdin and stdout until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler serves the streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.server }, nil)
}

// RunHTTP listens on addr until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("mcp shutdown: %v", err)
		}
	}()

	logger.Debug("mcp http transport on %s", addr)
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("mcp http: %w", err)
	}
	return nil
}
