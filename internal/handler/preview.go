package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/repo-rater/internal/service"
)

// PreviewHandler exposes the metadata fetcher to clients that render their
// own link previews.
type PreviewHandler struct {
	previews service.Previewer
	logger   *slog.Logger
}

func NewPreviewHandler(previews service.Previewer, logger *slog.Logger) *PreviewHandler {
	return &PreviewHandler{previews: previews, logger: logger}
}

// HandleOG returns the preview metadata of a page.
//
// HTTP: GET /api/og?url=https://github.com/foo/bar
//
//	200 {"title": "...", "description": "...", "image": "...", "favicon": "..."}
//	400 {"error": "URL is required"}
//	500 {"error": "Failed to fetch metadata"}
func (h *PreviewHandler) HandleOG(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "URL is required"})
		return
	}

	p, err := h.previews.Preview(r.Context(), url)
	if err != nil {
		h.logger.Warn("metadata fetch failed",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch metadata"})
		return
	}

	writeJSON(w, http.StatusOK, p)
}
