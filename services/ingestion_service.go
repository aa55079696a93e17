package services

import (
	"fmt"
	"io"
	"log"

	"github.com/camden-git/facesession/media"
	"github.com/camden-git/facesession/models"
)

// IngestionService turns an uploaded video into a new session.
type IngestionService struct {
	sessions SessionManager
	store    VideoStore
	detector FaceDetector

	// optional collaborators, may be nil
	recorder ArtifactRecorder
	events   EventPublisher
	janitor  PurgeRequester
}

// NewIngestionService creates a new ingestion service. recorder, events and
// janitor are optional.
func NewIngestionService(
	sessions SessionManager,
	store VideoStore,
	detector FaceDetector,
	recorder ArtifactRecorder,
	events EventPublisher,
	janitor PurgeRequester,
) *IngestionService {
	return &IngestionService{
		sessions: sessions,
		store:    store,
		detector: detector,
		recorder: recorder,
		events:   events,
		janitor:  janitor,
	}
}

// SessionIngestedEvent is published after a successful ingest.
type SessionIngestedEvent struct {
	Faces []models.FaceRecord `json:"faces"`
}

// Ingest stores the video, detects its faces and replaces the current session
// with one unidentified record per face. On any failure the previous session
// stays current and the uploaded video is removed.
func (s *IngestionService) Ingest(name string, data io.Reader) ([]models.FaceRecord, error) {
	const op = "ingest"

	var videoPath string
	err := call(func() error {
		var err error
		videoPath, err = s.store.SaveUpload(name, data)
		return err
	})
	if err != nil {
		return nil, &Error{Kind: KindStorage, Op: op, Err: fmt.Errorf("save upload: %w", err)}
	}

	var cropPaths []string
	build := func() (*models.SessionRegistry, error) {
		var faceDir string
		err := call(func() error {
			var err error
			faceDir, err = s.store.ResetDir(media.AssetTypeFace)
			return err
		})
		if err != nil {
			return nil, &Error{Kind: KindStorage, Op: op, Err: fmt.Errorf("reset face directory: %w", err)}
		}

		err = call(func() error {
			var err error
			cropPaths, err = s.detector.DetectFaces(videoPath, faceDir)
			return err
		})
		if err != nil {
			return nil, &Error{Kind: KindDetectionFailure, Op: op, Err: err}
		}

		registry := models.NewSessionRegistry()
		for idx, p := range cropPaths {
			rec := models.NewFaceRecord(models.TrackID(idx), p, s.store.PublicURL(media.AssetTypeFace, p))
			if err := registry.Add(rec); err != nil {
				return nil, &Error{Kind: KindDetectionFailure, Op: op, Err: err}
			}
		}
		return registry, nil
	}

	committed := func(registry *models.SessionRegistry) {
		if s.recorder == nil {
			return
		}
		if err := s.recorder.RecordSession(videoPath, cropPaths); err != nil {
			log.Printf("ingest: failed to record session artifacts: %v", err)
		}
	}

	registry, err := s.sessions.Replace(build, committed)
	if err != nil {
		if delErr := s.store.Delete(videoPath); delErr != nil {
			log.Printf("ingest: failed to remove upload %s after error: %v", videoPath, delErr)
		}
		e := storeError(op, "", err)
		log.Printf("ingest: %v", e)
		return nil, e
	}

	records := registry.Records()
	log.Printf("ingest: new session from %s with %d face(s)", videoPath, len(records))

	if s.janitor != nil && !s.janitor.RequestPurge() {
		log.Printf("ingest: purge of replaced session artifacts already pending")
	}
	if s.events != nil {
		s.events.Publish(EventSessionIngested, SessionIngestedEvent{Faces: records})
	}
	return records, nil
}

// CurrentFaces returns the records of the current session in detection order.
func CurrentFaces(sessions SessionManager) ([]models.FaceRecord, error) {
	registry, err := sessions.Snapshot()
	if err != nil {
		return nil, storeError("faces", "", err)
	}
	return registry.Records(), nil
}
