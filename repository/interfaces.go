package repository

import (
	"github.com/camden-git/facesession/models"
	"github.com/camden-git/facesession/session"
)

// SessionRepositoryInterface defines the methods for session data operations
type SessionRepositoryInterface interface {
	Save(registry *models.SessionRegistry) error
	Load() (*models.SessionRegistry, error)
	SaveRecord(record *models.FaceRecord) error
}

var (
	_ SessionRepositoryInterface = (*SessionRepository)(nil)
	_ session.Store              = SessionRepositoryInterface(nil)
	_ session.RecordWriter       = SessionRepositoryInterface(nil)
)
