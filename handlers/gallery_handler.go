package handlers

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// GalleryReloader rescans the reference gallery.
type GalleryReloader interface {
	Reload() error
}

// GalleryHandler lets a running server pick up gallery changes without a restart.
type GalleryHandler struct {
	Gallery GalleryReloader
}

func (h *GalleryHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.Gallery.Reload(); err != nil {
		log.Printf("handlers: gallery reload failed: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "gallery_reload_failed", "Gallery reload failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func (h *GalleryHandler) Mount(r chi.Router) {
	r.Post("/api/gallery/reload", h.Reload)
}
