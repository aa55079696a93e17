package services

import (
	"errors"
	"fmt"

	"github.com/camden-git/facesession/models"
	"github.com/camden-git/facesession/session"
)

// Kind classifies a controller failure.
type Kind string

const (
	KindStorage               Kind = "storage"
	KindCorruptSession        Kind = "corrupt_session"
	KindSessionMissing        Kind = "session_missing"
	KindUnknownTrack          Kind = "unknown_track"
	KindDetectionFailure      Kind = "detection_failure"
	KindIdentificationFailure Kind = "identification_failure"
	KindFrontalizationFailure Kind = "frontalization_failure"
	KindStaleTrack            Kind = "stale_track"
)

// NoFrontalNote accompanies an identification that found no frontal image.
// It is a soft condition, not an error.
const NoFrontalNote = "No frontal image found"

// Error is returned by every controller operation.
type Error struct {
	Kind    Kind
	Op      string
	TrackID string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.TrackID != "" {
		msg += " " + e.TrackID
	}
	msg += ": " + string(e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retriable reports whether repeating the request may succeed without any
// other action. Only a track invalidated by a concurrent ingest qualifies.
func (e *Error) Retriable() bool {
	return e.Kind == KindStaleTrack
}

// KindOf returns the Kind of a controller error, or "" for other errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// storeError classifies a failure reported by the session manager.
func storeError(op, trackID string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	kind := KindStorage
	switch {
	case errors.Is(err, session.ErrNoSession):
		kind = KindSessionMissing
	case errors.Is(err, session.ErrCorruptSession):
		kind = KindCorruptSession
	case errors.Is(err, models.ErrTrackNotFound):
		kind = KindUnknownTrack
	case errors.Is(err, session.ErrInvalidRecord):
		kind = KindIdentificationFailure
	}
	return &Error{Kind: kind, Op: op, TrackID: trackID, Err: err}
}

// call runs fn, converting a panic into an error so a misbehaving
// collaborator is reported like any other failure.
func call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
