package session

import (
	"fmt"
	"log"
	"sync"

	"github.com/camden-git/facesession/models"
)

// Manager owns the critical sections around the current session. Every
// load->mutate->save and every full replace runs while holding its mutex and,
// when configured, a cross-process lock on the backing location.
type Manager struct {
	store  Store
	locker Locker
	mu     sync.Mutex
}

// NewManager wraps store. locker may be nil when only one process uses the store.
func NewManager(store Store, locker Locker) *Manager {
	return &Manager{store: store, locker: locker}
}

func (m *Manager) acquire() (func(), error) {
	m.mu.Lock()
	if m.locker != nil {
		if err := m.locker.Lock(); err != nil {
			m.mu.Unlock()
			return nil, fmt.Errorf("session: acquire session lock: %w", err)
		}
	}
	return func() {
		if m.locker != nil {
			if err := m.locker.Unlock(); err != nil {
				log.Printf("session: failed to release session lock: %v", err)
			}
		}
		m.mu.Unlock()
	}, nil
}

// Replace runs build under the session lock and saves the registry it returns,
// replacing the current session. Nothing is saved when build fails. Each
// committed hook runs after a successful save, still under the lock.
func (m *Manager) Replace(build func() (*models.SessionRegistry, error), committed ...func(*models.SessionRegistry)) (*models.SessionRegistry, error) {
	release, err := m.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	registry, err := build()
	if err != nil {
		return nil, err
	}
	if err := m.store.Save(registry); err != nil {
		return nil, &SaveError{Err: err}
	}
	log.Printf("session: replaced session with %d face(s)", registry.Len())
	for _, hook := range committed {
		hook(registry)
	}
	return registry, nil
}

// UpdateRecord loads the current registry, runs fn against the record for
// trackID and persists the result. Nothing is persisted when fn fails or
// leaves the record invalid. Each committed hook runs after a successful save,
// still under the lock. The returned record is a copy of the persisted state.
func (m *Manager) UpdateRecord(trackID string, fn func(record *models.FaceRecord) error, committed ...func(models.FaceRecord)) (models.FaceRecord, error) {
	release, err := m.acquire()
	if err != nil {
		return models.FaceRecord{}, err
	}
	defer release()

	registry, err := m.store.Load()
	if err != nil {
		return models.FaceRecord{}, err
	}
	record, err := registry.Get(trackID)
	if err != nil {
		return models.FaceRecord{}, err
	}
	if err := fn(record); err != nil {
		return models.FaceRecord{}, err
	}
	if err := record.Validate(); err != nil {
		return models.FaceRecord{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	if rw, ok := m.store.(RecordWriter); ok {
		err = rw.SaveRecord(record)
	} else {
		err = m.store.Save(registry)
	}
	if err != nil {
		return models.FaceRecord{}, &SaveError{Err: err}
	}

	saved := record.Clone()
	for _, hook := range committed {
		hook(saved.Clone())
	}
	return saved, nil
}

// Snapshot loads the current registry under the session lock.
func (m *Manager) Snapshot() (*models.SessionRegistry, error) {
	release, err := m.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return m.store.Load()
}

// Exclusive runs fn while holding the session lock, so fn never observes a
// replace or record update in progress.
func (m *Manager) Exclusive(fn func() error) error {
	release, err := m.acquire()
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// SaveError reports that the registry could not be persisted.
type SaveError struct {
	Err error
}

func (e *SaveError) Error() string {
	return "session: save registry: " + e.Err.Error()
}

func (e *SaveError) Unwrap() error {
	return e.Err
}
