package api

import (
	"context"
	"errors"
	"net/http"

	"coursechat/internal/log"
	"coursechat/internal/search"
)

// CourseCatalog is the read-only course surface the API exposes.
type CourseCatalog interface {
	ListCourseTitles(ctx context.Context) ([]string, error)
	Outline(ctx context.Context, name string) (*search.Course, error)
	CountChunks(ctx context.Context) (int64, error)
}

type courseHandler struct {
	catalog CourseCatalog
	logger  log.Logger
}

// listCourses handles GET /api/courses.
func (h *courseHandler) listCourses(w http.ResponseWriter, r *http.Request) {
	titles, err := h.catalog.ListCourseTitles(r.Context())
	if err != nil {
		h.logger.Error("failed to list courses", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list courses", h.logger)
		return
	}

	chunks, err := h.catalog.CountChunks(r.Context())
	if err != nil {
		h.logger.Error("failed to count chunks", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list courses", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_courses": len(titles),
		"course_titles": titles,
		"total_chunks":  chunks,
	}, h.logger)
}

// getOutline handles GET /api/courses/{title}. The title is resolved with
// the same fuzzy matching the search tools use.
func (h *courseHandler) getOutline(w http.ResponseWriter, r *http.Request) {
	title := r.PathValue("title")

	course, err := h.catalog.Outline(r.Context(), title)
	if err != nil {
		switch {
		case errors.Is(err, search.ErrCourseNotFound):
			writeError(w, http.StatusNotFound, "course_not_found", "no course matches the given title", h.logger)
		case errors.Is(err, search.ErrCourseAmbiguous):
			writeError(w, http.StatusConflict, "course_ambiguous", "title matches multiple courses", h.logger)
		default:
			h.logger.Error("failed to load outline", "title", title, "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to load outline", h.logger)
		}
		return
	}

	writeJSON(w, http.StatusOK, course, h.logger)
}
