package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"coursechat/internal/log"
	"coursechat/internal/rag"
	"coursechat/internal/session"
)

// maxQueryBodySize bounds the request body for POST /api/query.
const maxQueryBodySize = 64 * 1024

// Answerer answers a user query, resuming the given session when its ID
// is non-empty.
type Answerer interface {
	AnswerQuery(ctx context.Context, sessionID, query string) (*rag.Response, error)
}

type queryHandler struct {
	rag    Answerer
	logger log.Logger
}

// queryRequest is the body of POST /api/query.
type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// answer handles POST /api/query.
func (h *queryHandler) answer(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxQueryBodySize)

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "query is required", h.logger)
		return
	}

	resp, err := h.rag.AnswerQuery(r.Context(), req.SessionID, req.Query)
	if err != nil {
		if errors.Is(err, session.ErrInvalidSessionID) {
			writeError(w, http.StatusBadRequest, "invalid_session_id", "session_id is not a valid UUID", h.logger)
			return
		}
		h.logger.Error("query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to answer query", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, resp, h.logger)
}
