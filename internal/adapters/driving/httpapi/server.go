package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
	"github.com/custodia-labs/kbase/internal/logger"
)

// ErrMissingPorts is returned when a required driving port is nil.
var ErrMissingPorts = errors.New("httpapi: retrieval and knowledge base services are required")

// Ports aggregates the driving ports the API serves.
type Ports struct {
	Ingest        driving.IngestService
	Retrieval     driving.RetrievalService
	Citations     driving.CitationService
	KnowledgeBase driving.KnowledgeBaseService
}

// Config configures the HTTP server.
type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string
	MaxUploadBytes int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// Defaults fills in retrieval options a request leaves out.
	Defaults domain.RetrievalOptions
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:           "127.0.0.1",
		Port:           8080,
		AllowedOrigins: []string{"*"},
		MaxUploadBytes: 20 << 20,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   2 * time.Minute,
		Defaults:       domain.RetrievalOptions{K: 3, Mode: domain.RetrievalSemantic},
	}
}

// Server serves the JSON API.
type Server struct {
	config  Config
	ports   Ports
	router  *mux.Router
	handler http.Handler
}

// NewServer creates a server. Ingest and Citations may be nil.
func NewServer(config Config, ports Ports) (*Server, error) {
	if ports.Retrieval == nil || ports.KnowledgeBase == nil {
		return nil, ErrMissingPorts
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}
	if config.Defaults.K <= 0 {
		config.Defaults.K = DefaultConfig().Defaults.K
	}

	s := &Server{
		config: config,
		ports:  ports,
		router: mux.NewRouter(),
	}
	s.setupRoutes()

	c := cors.New(cors.Options{
		AllowedOrigins: config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	s.handler = c.Handler(s.router)

	return s, nil
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(requestLogger)

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/retrieve", s.handleRetrieve).Methods(http.MethodPost)

	docs := api.PathPrefix("/documents").Subrouter()
	docs.HandleFunc("", s.handleListDocuments).Methods(http.MethodGet)
	docs.HandleFunc("", s.handleCreateDocument).Methods(http.MethodPost)
	docs.HandleFunc("/{id}", s.handleGetDocument).Methods(http.MethodGet)
	docs.HandleFunc("/{id}", s.handleDeleteDocument).Methods(http.MethodDelete)
	docs.HandleFunc("/{id}/chunks", s.handleGetChunks).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErrorResponse(w, http.StatusNotFound, "not_found", "no route for "+r.URL.Path)
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" not allowed")
	})
}

// Handler returns the root handler, CORS included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

// Run listens on Addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
	}

	// Graceful shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	logger.Info("HTTP API listening on http://%s", s.Addr())
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("http api: %w", err)
}

// requestLogger logs each request at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}
