package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/camden-git/facesession/models"
	"github.com/gofrs/flock"
)

// FileStore keeps the registry as one JSON document at a fixed path.
type FileStore struct {
	path string
	lock *flock.Flock
}

// NewFileStore creates a store backed by path, creating its parent directory so
// the lock file can be opened before the first Save.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("session file path cannot be empty")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid session file path '%s': %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &FileStore{
		path: absPath,
		lock: flock.New(absPath + ".lock"),
	}, nil
}

// Path returns the absolute location of the registry document.
func (fs *FileStore) Path() string {
	return fs.path
}

// Locker returns the advisory file lock other processes sharing this document
// must hold during a read-modify-write.
func (fs *FileStore) Locker() Locker {
	return fs.lock
}

// Save writes the registry to a temp file in the same directory and renames it
// over the document, so readers never observe a partial write.
func (fs *FileStore) Save(registry *models.SessionRegistry) error {
	if registry == nil {
		return errors.New("cannot save a nil registry")
	}
	data, err := json.Marshal(registry)
	if err != nil {
		return fmt.Errorf("session.file: encode registry: %w", err)
	}

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("session.file: create directory '%s': %w", dir, err)
	}
	return writeFileAtomic(fs.path, data, 0644)
}

// Load reads and decodes the registry document.
func (fs *FileStore) Load() (*models.SessionRegistry, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("session.file: read '%s': %w", fs.path, err)
	}

	registry := models.NewSessionRegistry()
	if err := json.Unmarshal(data, registry); err != nil {
		log.Printf("session.file: failed to parse %s: %v", fs.path, err)
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptSession, fs.path, err)
	}
	return registry, nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("session.file: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("session.file: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("session.file: sync temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("session.file: chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("session.file: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("session.file: rename temp file: %w", err)
	}
	return nil
}
