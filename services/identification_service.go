package services

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/camden-git/facesession/faces"
	"github.com/camden-git/facesession/media"
	"github.com/camden-git/facesession/models"
)

// IdentificationService names a tracked face and produces its frontal image.
type IdentificationService struct {
	sessions    SessionManager
	results     ResultStore
	identifier  PersonIdentifier
	frontalizer Frontalizer

	// optional collaborators, may be nil
	recorder ArtifactRecorder
	events   EventPublisher
}

// NewIdentificationService creates a new identification service. recorder and
// events are optional.
func NewIdentificationService(
	sessions SessionManager,
	results ResultStore,
	identifier PersonIdentifier,
	frontalizer Frontalizer,
	recorder ArtifactRecorder,
	events EventPublisher,
) *IdentificationService {
	return &IdentificationService{
		sessions:    sessions,
		results:     results,
		identifier:  identifier,
		frontalizer: frontalizer,
		recorder:    recorder,
		events:      events,
	}
}

// IdentifyResult is the outcome of one identification.
type IdentifyResult struct {
	FrontalizedImageURL *string  `json:"frontalized_image_url"`
	Match               string   `json:"match"`
	Score               *float64 `json:"score"`
	// Note is NoFrontalNote when no frontal image exists for the match.
	Note string `json:"note,omitempty"`
}

// FaceIdentifiedEvent is published after a successful identification.
type FaceIdentifiedEvent struct {
	Record models.FaceRecord `json:"face"`
	Note   string            `json:"note,omitempty"`
}

// Identify runs identification and frontalization for trackID and persists
// the outcome. The session lock is held throughout, so a concurrent ingest
// cannot replace the session halfway. If any step fails nothing is persisted.
func (s *IdentificationService) Identify(trackID string) (IdentifyResult, error) {
	const op = "identify"
	if trackID == "" {
		return IdentifyResult{}, &Error{Kind: KindUnknownTrack, Op: op, Err: errors.New("track id is empty")}
	}

	var note, frontalPath string
	record, err := s.sessions.UpdateRecord(trackID, func(record *models.FaceRecord) error {
		note, frontalPath = "", ""
		if _, err := os.Stat(record.ImagePath); err != nil {
			return s.imageError(op, trackID, err)
		}

		var id faces.Identification
		err := call(func() error {
			var err error
			id, err = s.identifier.Identify(record.ImagePath)
			return err
		})
		if err != nil {
			if _, statErr := os.Stat(record.ImagePath); errors.Is(statErr, fs.ErrNotExist) {
				return &Error{Kind: KindStaleTrack, Op: op, TrackID: trackID, Err: err}
			}
			return &Error{Kind: KindIdentificationFailure, Op: op, TrackID: trackID, Err: err}
		}
		record.UpdateIdentification(id.Name, id.Score)

		if len(id.FrontalCandidates) == 0 {
			record.ClearFrontalization()
			note = NoFrontalNote
			return nil
		}

		outDir, err := s.results.EnsureDir(media.AssetTypeResult)
		if err != nil {
			return &Error{Kind: KindStorage, Op: op, TrackID: trackID, Err: fmt.Errorf("results directory: %w", err)}
		}
		var outPath string
		err = call(func() error {
			var err error
			outPath, err = s.frontalizer.Frontalize(id.FrontalCandidates[0], outDir, trackID)
			return err
		})
		if err != nil {
			return &Error{Kind: KindFrontalizationFailure, Op: op, TrackID: trackID, Err: err}
		}
		record.UpdateFrontalization(s.results.PublicURL(media.AssetTypeResult, outPath))
		frontalPath = outPath
		return nil
	}, func(models.FaceRecord) {
		if s.recorder == nil || frontalPath == "" {
			return
		}
		if err := s.recorder.RecordFrontal(frontalPath); err != nil {
			log.Printf("identify: failed to record frontal artifact %s: %v", frontalPath, err)
		}
	})
	if err != nil {
		e := storeError(op, trackID, err)
		log.Printf("identify: %v", e)
		return IdentifyResult{}, e
	}

	log.Printf("identify: %s matched %s", trackID, record.Match)
	if s.events != nil {
		s.events.Publish(EventFaceIdentified, FaceIdentifiedEvent{Record: record, Note: note})
	}
	return IdentifyResult{
		FrontalizedImageURL: record.FrontalizedImageURL,
		Match:               record.Match,
		Score:               record.Score,
		Note:                note,
	}, nil
}

// imageError classifies a failure to access the track's own face image. A
// missing image means a newer ingest reset the scratch area.
func (s *IdentificationService) imageError(op, trackID string, err error) *Error {
	if errors.Is(err, fs.ErrNotExist) {
		return &Error{Kind: KindStaleTrack, Op: op, TrackID: trackID, Err: fmt.Errorf("face image is gone: %w", err)}
	}
	return &Error{Kind: KindStorage, Op: op, TrackID: trackID, Err: fmt.Errorf("face image: %w", err)}
}
