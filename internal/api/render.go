package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/meracare/frontdesk/internal/queue"
	"github.com/meracare/frontdesk/internal/shared/errors"
)

// pageMeta describes one page of a derived view. Pages are 1-based and the
// requested page is clamped, never rejected: a refresh that shrinks the
// list must not strand the operator on an empty page.
type pageMeta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
	TotalItems int `json:"total_items"`
}

func paginate[T any](items []T, page, pageSize int) ([]T, pageMeta) {
	totalPages := queue.TotalPages(len(items), pageSize)
	page = queue.ClampPage(page, totalPages)
	return queue.Page(items, page, pageSize), pageMeta{
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		TotalItems: len(items),
	}
}

func (h *Handler) pageParams(r *http.Request) (page, pageSize int) {
	page = 1
	pageSize = h.pageSize
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			pageSize = n
		}
	}
	return page, pageSize
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
