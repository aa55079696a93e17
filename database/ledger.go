package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Ledger remembers which session wrote each artifact so files left behind by
// replaced sessions can be found later.
type Ledger struct {
	DB  *sql.DB
	now func() time.Time
}

// NewLedger wraps an initialised ledger database.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{DB: db, now: time.Now}
}

// RecordSession starts a new current session that owns the uploaded video and
// the face crops detected from it.
func (l *Ledger) RecordSession(videoPath string, cropPaths []string) error {
	token := uuid.NewString()
	now := l.now().Unix()

	tx, err := l.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin ledger transaction: %w", err)
	}
	defer tx.Rollback()

	if err := RecordSession(tx, token, videoPath, len(cropPaths), now); err != nil {
		return err
	}
	if err := RecordArtifact(tx, token, videoPath, ArtifactVideo, now); err != nil {
		return err
	}
	for _, p := range cropPaths {
		if err := RecordArtifact(tx, token, p, ArtifactFaceCrop, now); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger session: %w", err)
	}
	return nil
}

// RecordFrontal attributes a frontalized image to the current session.
func (l *Ledger) RecordFrontal(path string) error {
	current, err := CurrentSession(l.DB)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errors.New("no session recorded in the ledger")
		}
		return err
	}
	return RecordArtifact(l.DB, current.Token, path, ArtifactFrontal, l.now().Unix())
}

// Orphans lists artifacts still owned by sessions that have been replaced.
func (l *Ledger) Orphans() ([]Artifact, error) {
	return ListOrphanedArtifacts(l.DB)
}

// Claim marks a as purged if it still belongs to the session that owned it
// when it was listed.
func (l *Ledger) Claim(a Artifact) (bool, error) {
	return ClaimArtifactForPurge(l.DB, a.Path, a.SessionToken, l.now().Unix())
}
