package services

import (
	"io"

	"github.com/camden-git/facesession/faces"
	"github.com/camden-git/facesession/media"
	"github.com/camden-git/facesession/models"
)

// SessionManager serialises access to the current session.
type SessionManager interface {
	Replace(build func() (*models.SessionRegistry, error), committed ...func(*models.SessionRegistry)) (*models.SessionRegistry, error)
	UpdateRecord(trackID string, fn func(record *models.FaceRecord) error, committed ...func(models.FaceRecord)) (models.FaceRecord, error)
	Snapshot() (*models.SessionRegistry, error)
}

// VideoStore persists uploads and owns the face scratch area.
type VideoStore interface {
	SaveUpload(name string, data io.Reader) (string, error)
	ResetDir(assetType media.AssetType) (string, error)
	PublicURL(assetType media.AssetType, fullPath string) string
	Delete(fullPath string) error
}

// ResultStore locates frontalized outputs.
type ResultStore interface {
	EnsureDir(assetType media.AssetType) (string, error)
	PublicURL(assetType media.AssetType, fullPath string) string
}

// FaceDetector returns one image path per distinct face in a video, in
// detection order. A video without faces yields an empty slice.
type FaceDetector interface {
	DetectFaces(videoPath, outputDir string) ([]string, error)
}

// PersonIdentifier names the person in a face image.
type PersonIdentifier interface {
	Identify(imagePath string) (faces.Identification, error)
}

// Frontalizer produces the canonical frontal image for a track.
type Frontalizer interface {
	Frontalize(candidatePath, outputDir, trackID string) (string, error)
}

// ArtifactRecorder remembers which session produced which files.
type ArtifactRecorder interface {
	RecordSession(videoPath string, cropPaths []string) error
	RecordFrontal(path string) error
}

// EventPublisher broadcasts session changes to listeners.
type EventPublisher interface {
	Publish(eventType string, payload interface{})
}

// PurgeRequester schedules removal of artifacts left by replaced sessions.
type PurgeRequester interface {
	RequestPurge() bool
}

const (
	EventSessionIngested = "session.ingested"
	EventFaceIdentified  = "face.identified"
)
