package handler

import (
	"net/http"
	"os"
	"strings"
)

// VersionHandler reports the deployed build.
type VersionHandler struct {
	file     string
	fallback string
}

// NewVersionHandler reads the version from file on every request, falling
// back to fallback (then "unknown") when the file is missing or empty.
func NewVersionHandler(file, fallback string) *VersionHandler {
	return &VersionHandler{file: file, fallback: fallback}
}

// Version returns the current version string.
func (h *VersionHandler) Version() string {
	if h.file != "" {
		if data, err := os.ReadFile(h.file); err == nil {
			if v := strings.TrimSpace(string(data)); v != "" {
				return v
			}
		}
	}
	if h.fallback != "" {
		return h.fallback
	}
	return "unknown"
}

// GetVersion responds with the version.
// GET /version, GET /api/saida/version
func (h *VersionHandler) GetVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "version": h.Version()})
}
