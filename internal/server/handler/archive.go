package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/autotrader-saida/internal/domain"
)

// ArchiveHandler uploads and lists realized-history snapshots.
type ArchiveHandler struct {
	archiver domain.Archiver
	lister   domain.BlobLister
	prefix   string
	logger   *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler. lister may be nil.
func NewArchiveHandler(archiver domain.Archiver, lister domain.BlobLister, prefix string, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{archiver: archiver, lister: lister, prefix: prefix, logger: logger}
}

// Archive uploads the current realized partition.
// POST /api/saida/archive
func (h *ArchiveHandler) Archive(w http.ResponseWriter, r *http.Request) {
	res, err := h.archiver.ArchiveRealized(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "archive", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "archive": res})
}

// ListArchives lists uploaded snapshots.
// GET /api/saida/archive
func (h *ArchiveHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	if h.lister == nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "archives": []domain.BlobInfo{}})
		return
	}
	items, err := h.lister.List(r.Context(), h.prefix)
	if err != nil {
		writeServiceError(w, r, h.logger, "list archives", err)
		return
	}
	if items == nil {
		items = []domain.BlobInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "archives": items})
}
