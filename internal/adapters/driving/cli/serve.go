package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbase/internal/adapters/driving/httpapi"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP JSON API",
	Long: `Serves the knowledge base over HTTP under /api/v1:

  GET    /health
  GET    /stats
  POST   /retrieve             {"query": "...", "k": 3, "mode": "semantic"}
  GET    /documents
  POST   /documents            {"url": "..."} or multipart "file" upload
  GET    /documents/{id}
  DELETE /documents/{id}
  GET    /documents/{id}/chunks`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (default from config)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if retrievalService == nil || knowledgeBase == nil {
		return errors.New("retrieval service not configured")
	}

	cfg := httpapi.DefaultConfig()
	cfg.Defaults = retrievalDefaults()
	if appConfig != nil {
		cfg.Host = appConfig.Server.Host
		cfg.Port = appConfig.Server.Port
		cfg.AllowedOrigins = appConfig.Server.AllowedOrigins
		cfg.MaxUploadBytes = appConfig.Fetch.MaxBodyBytes
	}
	if serveHost != "" {
		cfg.Host = serveHost
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	server, err := httpapi.NewServer(cfg, httpapi.Ports{
		Ingest:        ingestService,
		Retrieval:     retrievalService,
		Citations:     citationService,
		KnowledgeBase: knowledgeBase,
	})
	if err != nil {
		return err
	}

	cmd.Printf("HTTP API listening on http://%s/api/v1\n", server.Addr())
	return server.Run(cmd.Context())
}
