package handler

import (
	"net/http"
	"path/filepath"
)

// PanelHandler serves the browser panel from the dist directory.
type PanelHandler struct {
	dir   string
	files http.Handler
}

// NewPanelHandler creates a PanelHandler rooted at dir.
func NewPanelHandler(dir string) *PanelHandler {
	return &PanelHandler{
		dir:   dir,
		files: http.StripPrefix("/dist/", http.FileServer(http.Dir(dir))),
	}
}

// Dist serves static assets.
// GET /dist/
func (h *PanelHandler) Dist(w http.ResponseWriter, r *http.Request) {
	h.files.ServeHTTP(w, r)
}

// Page serves saida.html.
// GET /saida
func (h *PanelHandler) Page(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(h.dir, "saida.html"))
}

// Redirect sends legacy entry points to /saida.
// GET /{$}, GET /saida2
func (h *PanelHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/saida", http.StatusFound)
}
