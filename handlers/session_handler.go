package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/camden-git/facesession/models"
	"github.com/camden-git/facesession/services"
	"github.com/go-chi/chi/v5"
)

// DefaultMaxUploadBytes bounds the multipart body of an upload.
const DefaultMaxUploadBytes int64 = 512 << 20

type Ingester interface {
	Ingest(name string, data io.Reader) ([]models.FaceRecord, error)
}

type Identifier interface {
	Identify(trackID string) (services.IdentifyResult, error)
}

type SessionHandler struct {
	Ingestion      Ingester
	Identification Identifier
	Sessions       services.SessionManager
	MaxUploadBytes int64
}

type facesResponse struct {
	Faces []models.FaceRecord `json:"faces"`
}

// UploadVideo ingests the multipart field "video" and starts a new session.
func (h *SessionHandler) UploadVideo(w http.ResponseWriter, r *http.Request) {
	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	if r.ContentLength > limit {
		WriteAPIError(w, http.StatusRequestEntityTooLarge, "upload_too_large", "Video exceeds the upload size limit")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	file, header, err := r.FormFile("video")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			WriteAPIError(w, http.StatusRequestEntityTooLarge, "upload_too_large", "Video exceeds the upload size limit")
		case errors.Is(err, http.ErrMissingFile):
			WriteAPIError(w, http.StatusBadRequest, "invalid_request", "Missing multipart field 'video'")
		default:
			WriteAPIError(w, http.StatusBadRequest, "invalid_request", "Invalid multipart upload: "+err.Error())
		}
		return
	}
	defer file.Close()

	records, err := h.Ingestion.Ingest(header.Filename, file)
	if err != nil {
		log.Printf("handlers: upload of %q failed", header.Filename)
		writeServiceError(w, err)
		return
	}
	if records == nil {
		records = []models.FaceRecord{}
	}
	writeJSON(w, http.StatusOK, facesResponse{Faces: records})
}

// Frontalize identifies the track named by the form field "track_id". A track
// without a frontal image is still a success and carries a note.
func (h *SessionHandler) Frontalize(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		WriteAPIError(w, http.StatusBadRequest, "invalid_request", "Invalid form body: "+err.Error())
		return
	}
	trackID := r.FormValue("track_id")

	res, err := h.Identification.Identify(trackID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListFaces returns the records of the current session.
func (h *SessionHandler) ListFaces(w http.ResponseWriter, r *http.Request) {
	records, err := services.CurrentFaces(h.Sessions)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if records == nil {
		records = []models.FaceRecord{}
	}
	writeJSON(w, http.StatusOK, facesResponse{Faces: records})
}

// Mount attaches the session routes to r.
func (h *SessionHandler) Mount(r chi.Router) {
	r.Post("/upload_video", h.UploadVideo)
	r.Post("/frontalize", h.Frontalize)
	r.Get("/api/session/faces", h.ListFaces)
}
