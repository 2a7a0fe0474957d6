package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"coursechat/internal/log"
	"coursechat/internal/session"
)

const (
	defaultSessionPageSize = 20
	maxSessionPageSize     = 100
)

// SessionManager is the session surface the API exposes.
type SessionManager interface {
	List(ctx context.Context, limit, offset int32) ([]*session.Session, error)
	Delete(ctx context.Context, sessionID uuid.UUID) error
	History(ctx context.Context, sessionID uuid.UUID, window int32) ([]session.Exchange, error)
}

type sessionHandler struct {
	sessions SessionManager
	logger   log.Logger
}

// listSessions handles GET /api/sessions.
func (h *sessionHandler) listSessions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt32(r, "limit", defaultSessionPageSize)
	if limit < 1 || limit > maxSessionPageSize {
		limit = defaultSessionPageSize
	}
	offset := queryInt32(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	sessions, err := h.sessions.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list sessions", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	}, h.logger)
}

// getHistory handles GET /api/sessions/{id}/exchanges.
func (h *sessionHandler) getHistory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_session_id", "session id is not a valid UUID", h.logger)
		return
	}

	window := queryInt32(r, "window", session.DefaultWindow)
	exchanges, err := h.sessions.History(r.Context(), id, window)
	if err != nil {
		h.logger.Error("failed to load history", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load history", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"exchanges":  exchanges,
	}, h.logger)
}

// deleteSession handles DELETE /api/sessions/{id}.
func (h *sessionHandler) deleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_session_id", "session id is not a valid UUID", h.logger)
		return
	}

	if err := h.sessions.Delete(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session_not_found", "session does not exist", h.logger)
			return
		}
		h.logger.Error("failed to delete session", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete session", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"}, h.logger)
}

// queryInt32 parses an int32 query parameter, falling back on absence or
// garbage.
func queryInt32(r *http.Request, key string, fallback int32) int32 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return fallback
	}
	return int32(v)
}
