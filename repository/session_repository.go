package repository

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/camden-git/facesession/models"
	"github.com/camden-git/facesession/session"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionRepository stores the current session in the 'sessions' and 'faces'
// tables. Each face is its own row, so a single identification updates one
// row instead of rewriting the registry.
type SessionRepository struct {
	DB *gorm.DB
}

// NewSessionRepository creates a new instance of SessionRepository
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{DB: db}
}

// Save replaces the current session with registry in one transaction.
func (r *SessionRepository) Save(registry *models.SessionRegistry) error {
	if registry == nil {
		return errors.New("cannot save a nil registry")
	}
	now := time.Now().Unix()

	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Face{}).Error; err != nil {
			return fmt.Errorf("failed to clear faces: %w", err)
		}

		rows := make([]models.Face, 0, registry.Len())
		for i, rec := range registry.Records() {
			row := models.FaceFromRecord(rec, i)
			row.ImagePath = filepath.ToSlash(row.ImagePath)
			row.UpdatedAt = now
			rows = append(rows, row)
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("failed to insert %d faces: %w", len(rows), err)
			}
		}

		marker := models.SessionRow{
			ID:        models.SessionSingletonID,
			Token:     uuid.NewString(),
			FaceCount: len(rows),
			CreatedAt: now,
			UpdatedAt: now,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"token", "face_count", "created_at", "updated_at"}),
		}).Create(&marker).Error
		if err != nil {
			return fmt.Errorf("failed to upsert session marker: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load rebuilds the registry from its rows in detection order.
func (r *SessionRepository) Load() (*models.SessionRegistry, error) {
	var marker models.SessionRow
	err := r.DB.First(&marker, models.SessionSingletonID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, session.ErrNoSession
		}
		return nil, fmt.Errorf("failed to load session marker: %w", err)
	}

	var rows []models.Face
	if err := r.DB.Order("position ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list faces: %w", err)
	}
	if len(rows) != marker.FaceCount {
		return nil, fmt.Errorf("%w: session expects %d faces, found %d", session.ErrCorruptSession, marker.FaceCount, len(rows))
	}

	registry := models.NewSessionRegistry()
	for _, row := range rows {
		rec := row.Record()
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", session.ErrCorruptSession, err)
		}
		if err := registry.Add(rec); err != nil {
			return nil, fmt.Errorf("%w: %v", session.ErrCorruptSession, err)
		}
	}
	return registry, nil
}

// SaveRecord overwrites the mutable fields of one face row.
func (r *SessionRepository) SaveRecord(record *models.FaceRecord) error {
	if record == nil {
		return errors.New("cannot save a nil record")
	}
	updates := map[string]interface{}{
		"match":                 record.Match,
		"score":                 record.Score,
		"frontalized_image_url": record.FrontalizedImageURL,
		"updated_at":            time.Now().Unix(),
	}
	result := r.DB.Model(&models.Face{}).Where("track_id = ?", record.TrackID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update face %s: %w", record.TrackID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to update face %s: %w", record.TrackID, models.ErrTrackNotFound)
	}
	return nil
}
