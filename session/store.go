// Package session persists the single current SessionRegistry and serialises
// every read-modify-write against it.
package session

import (
	"errors"

	"github.com/camden-git/facesession/models"
)

var (
	// ErrNoSession is returned by Load when nothing has been saved yet.
	ErrNoSession = errors.New("no session has been saved")
	// ErrCorruptSession is returned by Load when the stored content is not a valid registry.
	ErrCorruptSession = errors.New("stored session is corrupt")

	// ErrInvalidRecord is returned by UpdateRecord when the mutated record
	// would not survive a reload.
	ErrInvalidRecord = errors.New("updated record is invalid")
)

// Store persists the current registry at one fixed location.
type Store interface {
	// Save serialises the whole registry, replacing any previous content.
	Save(registry *models.SessionRegistry) error
	// Load returns the current registry, ErrNoSession, or an error wrapping ErrCorruptSession.
	Load() (*models.SessionRegistry, error)
}

// RecordWriter is implemented by stores that can persist one record without
// rewriting the whole registry.
type RecordWriter interface {
	SaveRecord(record *models.FaceRecord) error
}

// Locker is a cross-process lock around the backing location.
type Locker interface {
	Lock() error
	Unlock() error
}
