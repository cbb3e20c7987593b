package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Query    string  `json:"query" jsonschema:"the question or keywords to look up"`
	K        int     `json:"k,omitempty" jsonschema:"maximum number of passages to return"`
	Mode     string  `json:"mode,omitempty" jsonschema:"semantic, keyword or hybrid"`
	MinScore float64 `json:"min_score,omitempty" jsonschema:"drop passages scoring below this"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Results []PassageOutput `json:"results"`
	Count   int             `json:"count"`
	Context string          `json:"context,omitempty"`
}

// PassageOutput represents a single retrieved chunk.
type PassageOutput struct {
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	Label      string  `json:"label,omitempty"`
	SourceName string  `json:"source_name"`
	Title      string  `json:"title,omitempty"`
	Locator    string  `json:"locator"`
	Kind       string  `json:"kind"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
}

// ListDocumentsInput is the (empty) input schema for the list_documents tool.
type ListDocumentsInput struct{}

// ListDocumentsOutput is the output schema for the list_documents tool.
type ListDocumentsOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Count     int              `json:"count"`
}

// DocumentOutput describes one stored document.
type DocumentOutput struct {
	ID          string    `json:"id"`
	Title       string    `json:"title,omitempty"`
	SourceName  string    `json:"source_name"`
	Locator     string    `json:"locator"`
	Kind        string    `json:"kind"`
	Chunks      int       `json:"chunks"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// IngestURLInput is the input schema for the ingest_url tool.
type IngestURLInput struct {
	URL  string `json:"url" jsonschema:"http or https URL of the page to add"`
	Name string `json:"name,omitempty" jsonschema:"display name for the source (defaults to the host)"`
}

// IngestURLOutput is the output schema for the ingest_url tool.
type IngestURLOutput struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title,omitempty"`
	SourceName string `json:"source_name"`
	Chunks     int    `json:"chunks"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Retrieve the most relevant cited passages from the knowledge base",
	}, s.handleRetrieve)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List every document in the knowledge base",
	}, s.handleListDocuments)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest_url",
		Description: "Fetch a web page and add it to the knowledge base",
	}, s.handleIngestURL)
}

// handleRetrieve handles the retrieve tool invocation.
func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	opts := s.defaults
	if input.K > 0 {
		opts.K = input.K
	}
	if input.Mode != "" {
		opts.Mode = domain.RetrievalMode(input.Mode)
	}
	if input.MinScore != 0 {
		opts.MinScore = input.MinScore
	}

	results, err := s.ports.Retrieval.Retrieve(ctx, input.Query, opts)
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	output := RetrieveOutput{
		Results: make([]PassageOutput, len(results)),
		Count:   len(results),
	}

	var labels []domain.Citation
	if s.ports.Citations != nil {
		built := s.ports.Citations.BuildContext(results)
		output.Context = built.Text
		labels = built.Citations
	}

	for i := range results {
		output.Results[i] = PassageOutput{
			DocumentID: results[i].DocumentID,
			ChunkID:    results[i].ChunkID,
			SourceName: results[i].SourceName,
			Title:      results[i].Title,
			Locator:    results[i].Origin.Locator,
			Kind:       string(results[i].Origin.Kind),
			Score:      results[i].Score,
			Text:       results[i].Text,
		}
		if i < len(labels) {
			output.Results[i].Label = labels[i].Label
		}
	}

	return nil, output, nil
}

// handleListDocuments handles the list_documents tool invocation.
func (s *Server) handleListDocuments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	if s.ports.KnowledgeBase == nil {
		return nil, ListDocumentsOutput{}, errNotConfigured
	}

	docs, err := s.ports.KnowledgeBase.List(ctx)
	if err != nil {
		return nil, ListDocumentsOutput{}, err
	}

	output := ListDocumentsOutput{
		Documents: make([]DocumentOutput, len(docs)),
		Count:     len(docs),
	}
	for i := range docs {
		output.Documents[i] = documentOutput(docs[i])
	}
	return nil, output, nil
}

// handleIngestURL handles the ingest_url tool invocation.
func (s *Server) handleIngestURL(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestURLInput,
) (*mcp.CallToolResult, IngestURLOutput, error) {
	if s.ports.Ingest == nil {
		return nil, IngestURLOutput{}, errNotConfigured
	}

	source := domain.URLSource(input.URL).WithName(input.Name)
	outcomes := s.ports.Ingest.IngestAll(ctx, []domain.Source{source}, nil)
	if outcomes[0].Err != nil {
		return nil, IngestURLOutput{}, outcomes[0].Err
	}

	doc := outcomes[0].Document
	return nil, IngestURLOutput{
		DocumentID: doc.ID,
		Title:      doc.Title,
		SourceName: doc.SourceName,
		Chunks:     outcomes[0].Chunks,
	}, nil
}

func documentOutput(d domain.DocumentSummary) DocumentOutput {
	return DocumentOutput{
		ID:          d.Document.ID,
		Title:       d.Document.Title,
		SourceName:  d.Document.SourceName,
		Locator:     d.Document.Origin.Locator,
		Kind:        string(d.Document.Origin.Kind),
		Chunks:      d.ChunkCount,
		RetrievedAt: d.Document.RetrievedAt,
	}
}
