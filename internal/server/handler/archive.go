package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/alanyoungcy/agentrader/internal/domain"
)

// ArchiveHandler serves the cold-storage archive: monthly JSONL files of
// pruned trades and finished workflow runs.
type ArchiveHandler struct {
	reader domain.BlobReader
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler over the given blob reader.
func NewArchiveHandler(reader domain.BlobReader, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{reader: reader, logger: logger}
}

type archiveObjectView struct {
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	LastModified string `json:"last_modified"`
}

// List returns the archived objects under the archive prefix.
// GET /api/archives?prefix=trades
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	prefix := "archive/"
	if p := r.URL.Query().Get("prefix"); p != "" {
		prefix += strings.TrimPrefix(path.Clean("/"+p), "/") // confine to the archive tree
	}

	objects, err := h.reader.List(r.Context(), prefix)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list archives",
			slog.String("prefix", prefix),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list archives")
		return
	}

	views := make([]archiveObjectView, 0, len(objects))
	for _, o := range objects {
		views = append(views, archiveObjectView{
			Path:         o.Path,
			Size:         o.Size,
			LastModified: o.LastModified.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"objects": views})
}

// Download streams one archived JSONL file.
// GET /api/archives/{path...}
func (h *ArchiveHandler) Download(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(path.Clean("/"+r.PathValue("path")), "/")
	if rel == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	key := "archive/" + rel

	rc, err := h.reader.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "archive object not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "fetch archive object",
			slog.String("path", key),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to fetch archive object")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(r.Context(), "stream archive object",
			slog.String("path", key),
			slog.String("error", err.Error()))
	}
}
