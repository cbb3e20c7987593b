package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// DocumentView is the JSON form of a stored document.
type DocumentView struct {
	ID          string         `json:"id"`
	Kind        string         `json:"kind"`
	Locator     string         `json:"locator"`
	SourceName  string         `json:"source_name"`
	Title       string         `json:"title,omitempty"`
	RetrievedAt time.Time      `json:"retrieved_at"`
	Chunks      int            `json:"chunks"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Text        string         `json:"text,omitempty"`
}

// ChunkView is the JSON form of a chunk.
type ChunkView struct {
	ID       string `json:"id"`
	Sequence int    `json:"sequence"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Text     string `json:"text"`
}

// CreateDocumentRequest is the JSON body of POST /documents.
type CreateDocumentRequest struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// RetrieveRequest is the JSON body of POST /retrieve.
type RetrieveRequest struct {
	Query    string  `json:"query"`
	K        int     `json:"k,omitempty"`
	Mode     string  `json:"mode,omitempty"`
	MinScore float64 `json:"min_score,omitempty"`
}

// ResultView is one retrieved chunk with its citation.
type ResultView struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Score      float64 `json:"score"`
	Kind       string  `json:"kind"`
	Locator    string  `json:"locator"`
	SourceName string  `json:"source_name"`
	Title      string  `json:"title,omitempty"`
	Sequence   int     `json:"sequence"`
	Text       string  `json:"text"`
	Label      string  `json:"label,omitempty"`
	Excerpt    string  `json:"excerpt,omitempty"`
}

// RetrieveResponse is the data of POST /retrieve.
type RetrieveResponse struct {
	Results []ResultView `json:"results"`
	Context string       `json:"context,omitempty"`
	Sources []string     `json:"sources,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"}, nil)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ports.KnowledgeBase.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	kinds := make([]string, len(stats.Kinds))
	for i, k := range stats.Kinds {
		kinds[i] = string(k)
	}
	writeData(w, http.StatusOK, map[string]any{
		"total_documents": stats.TotalDocuments,
		"total_chunks":    stats.TotalChunks,
		"sources":         stats.Sources,
		"source_list":     stats.SourceList,
		"kinds":           kinds,
		"embedding_model": stats.Space.Model,
		"dimensions":      stats.Space.Dimensions,
	}, nil)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.ports.KnowledgeBase.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]DocumentView, len(docs))
	for i := range docs {
		views[i] = documentView(&docs[i].Document, docs[i].ChunkCount)
	}
	writeData(w, http.StatusOK, views, &APIMeta{Total: len(views)})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	doc, err := s.ports.KnowledgeBase.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	chunks, err := s.ports.KnowledgeBase.Chunks(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	view := documentView(doc, len(chunks))
	view.Metadata = doc.Metadata
	view.Text = doc.RawText
	writeData(w, http.StatusOK, view, nil)
}

func (s *Server) handleGetChunks(w http.ResponseWriter, r *http.Request) {
	chunks, err := s.ports.KnowledgeBase.Chunks(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]ChunkView, len(chunks))
	for i, c := range chunks {
		views[i] = ChunkView{ID: c.ID, Sequence: c.Sequence, Start: c.Span.Start, End: c.Span.End, Text: c.Text}
	}
	writeData(w, http.StatusOK, views, &APIMeta{Total: len(views)})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.ports.KnowledgeBase.Remove(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCreateDocument ingests a URL (JSON body) or an uploaded PDF
// (multipart form with a "file" field and an optional "name").
func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	if s.ports.Ingest == nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "unavailable", "ingestion is not enabled")
		return
	}

	source, err := s.sourceFromRequest(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	outcomes := s.ports.Ingest.IngestAll(r.Context(), []domain.Source{source}, nil)
	if err := outcomes[0].Err; err != nil {
		writeError(w, err)
		return
	}

	view := documentView(outcomes[0].Document, outcomes[0].Chunks)
	w.Header().Set("Location", "/api/v1/documents/"+view.ID)
	writeData(w, http.StatusCreated, view, nil)
}

func (s *Server) sourceFromRequest(w http.ResponseWriter, r *http.Request) (domain.Source, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			return domain.Source{}, fmt.Errorf("%w: multipart field \"file\": %v", domain.ErrInvalidInput, err)
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return domain.Source{}, fmt.Errorf("%w: upload exceeds %d bytes", domain.ErrInvalidInput, tooLarge.Limit)
			}
			return domain.Source{}, fmt.Errorf("%w: read upload: %v", domain.ErrInvalidInput, err)
		}
		return domain.PDFSource(header.Filename, data).WithName(r.FormValue("name")), nil
	}

	var req CreateDocumentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return domain.Source{}, err
	}
	if strings.TrimSpace(req.URL) == "" {
		return domain.Source{}, fmt.Errorf("%w: url is required", domain.ErrInvalidInput)
	}
	return domain.URLSource(strings.TrimSpace(req.URL)).WithName(req.Name), nil
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	opts := s.config.Defaults
	if req.K != 0 {
		opts.K = req.K
	}
	if req.Mode != "" {
		opts.Mode = domain.RetrievalMode(req.Mode)
	}
	if req.MinScore != 0 {
		opts.MinScore = req.MinScore
	}

	results, err := s.ports.Retrieval.Retrieve(r.Context(), req.Query, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := RetrieveResponse{Results: make([]ResultView, len(results))}
	var citations []domain.Citation
	if s.ports.Citations != nil {
		built := s.ports.Citations.BuildContext(results)
		resp.Context = built.Text
		resp.Sources = built.Sources
		citations = built.Citations
	}
	for i, res := range results {
		resp.Results[i] = ResultView{
			ChunkID:    res.ChunkID,
			DocumentID: res.DocumentID,
			Score:      res.Score,
			Kind:       string(res.Origin.Kind),
			Locator:    res.Origin.Locator,
			SourceName: res.SourceName,
			Title:      res.Title,
			Sequence:   res.Sequence,
			Text:       res.Text,
		}
		if i < len(citations) {
			resp.Results[i].Label = citations[i].Label
			resp.Results[i].Excerpt = citations[i].Excerpt
		}
	}
	writeData(w, http.StatusOK, resp, &APIMeta{Total: len(results)})
}

// decodeJSON decodes a bounded JSON body, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

func documentView(doc *domain.Document, chunks int) DocumentView {
	return DocumentView{
		ID:          doc.ID,
		Kind:        string(doc.Origin.Kind),
		Locator:     doc.Origin.Locator,
		SourceName:  doc.SourceName,
		Title:       doc.Title,
		RetrievedAt: doc.RetrievedAt,
		Chunks:      chunks,
	}
}
