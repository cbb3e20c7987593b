package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/logger"
)

// APIResponse is the envelope of every response.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta carries listing metadata.
type APIMeta struct {
	Total int `json:"total"`
}

func writeJSONResponse(w http.ResponseWriter, status int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Warn("Failed to encode response: %v", err)
	}
}

func writeData(w http.ResponseWriter, status int, data any, meta *APIMeta) {
	writeJSONResponse(w, status, APIResponse{Success: true, Data: data, Meta: meta})
}

func writeErrorResponse(w http.ResponseWriter, status int, code, message string) {
	writeJSONResponse(w, status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
	})
}

// writeError maps a domain error to its status code and writes it.
func writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(err, "Request failed")
	}
	writeErrorResponse(w, status, code, err.Error())
}

// statusFor maps domain errors to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	var statusErr *domain.HTTPStatusError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrConfig):
		return http.StatusBadRequest, "invalid_config"
	case errors.Is(err, domain.ErrFormat):
		return http.StatusUnprocessableEntity, "unparseable_source"
	case errors.Is(err, domain.ErrEmptyContent):
		return http.StatusUnprocessableEntity, "empty_content"
	case errors.Is(err, domain.ErrEmbeddingMismatch):
		return http.StatusConflict, "embedding_mismatch"
	case errors.Is(err, domain.ErrFetchTimeout):
		return http.StatusGatewayTimeout, "fetch_timeout"
	case errors.As(err, &statusErr):
		return http.StatusBadGateway, "upstream_status"
	case errors.Is(err, domain.ErrFetch):
		return http.StatusBadGateway, "fetch_failed"
	case errors.Is(err, domain.ErrEmbeddingUnavailable), errors.Is(err, domain.ErrSearchUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
