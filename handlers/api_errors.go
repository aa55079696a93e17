package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/camden-git/facesession/services"
)

// APIErrorResponse is the body of every failed request.
type APIErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retriable bool   `json:"retriable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("handlers: error encoding JSON response: %v", err)
		}
	}
}

// WriteAPIError writes a standardized error response with the given HTTP status, code, and detail.
func WriteAPIError(w http.ResponseWriter, httpStatus int, code string, detail string) {
	writeJSON(w, httpStatus, APIErrorResponse{Error: detail, Code: code})
}

// writeServiceError converts a controller failure into a single error response.
// The body carries a fixed message per kind; the detail is only logged.
func writeServiceError(w http.ResponseWriter, err error) {
	var e *services.Error
	if !errors.As(err, &e) {
		log.Printf("handlers: unclassified error: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}
	log.Printf("handlers: %s: %v", e.Kind, e)
	writeJSON(w, statusForKind(e.Kind), APIErrorResponse{
		Error:     messageFor(e),
		Code:      string(e.Kind),
		Retriable: e.Retriable(),
	})
}

func statusForKind(kind services.Kind) int {
	switch kind {
	case services.KindSessionMissing, services.KindStaleTrack:
		return http.StatusConflict
	case services.KindUnknownTrack:
		return http.StatusNotFound
	case services.KindDetectionFailure, services.KindIdentificationFailure, services.KindFrontalizationFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(e *services.Error) string {
	switch e.Kind {
	case services.KindSessionMissing:
		return "Upload video first"
	case services.KindUnknownTrack:
		return "Invalid track_id"
	case services.KindStaleTrack:
		return "Track was replaced by a newer upload, refresh the face list"
	case services.KindCorruptSession:
		return "Stored session is corrupt, upload video again"
	case services.KindDetectionFailure:
		return "Face detection failed"
	case services.KindIdentificationFailure:
		return "Identification failed"
	case services.KindFrontalizationFailure:
		return "Frontalization failed"
	case services.KindStorage:
		return "Storage error"
	}
	return "Internal server error"
}
