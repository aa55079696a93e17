package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/camden-git/facesession/faces"
	"github.com/camden-git/facesession/media"
	"github.com/camden-git/facesession/models"
	"github.com/camden-git/facesession/session"
)

type fakeDetector struct {
	count int
	paths []string // returned as-is when set
	err   error
	panic bool
	calls int
}

func (d *fakeDetector) DetectFaces(videoPath, outputDir string) ([]string, error) {
	d.calls++
	if d.panic {
		panic("detector crashed")
	}
	if d.err != nil {
		return nil, d.err
	}
	if d.paths != nil {
		return d.paths, nil
	}
	if _, err := os.Stat(videoPath); err != nil {
		return nil, err
	}
	paths := make([]string, 0, d.count)
	for i := 0; i < d.count; i++ {
		p := filepath.Join(outputDir, fmt.Sprintf("face_%04d.jpg", i))
		if err := os.WriteFile(p, []byte("crop"), 0644); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

type fakeIdentifier struct {
	mu     sync.Mutex
	result faces.Identification
	byPath map[string]faces.Identification
	err    error
	panic  bool
	calls  []string

	// when gate is set, Identify signals entered and waits for gate to close
	entered chan struct{}
	gate    chan struct{}
}

func (f *fakeIdentifier) Identify(imagePath string) (faces.Identification, error) {
	if f.gate != nil {
		f.entered <- struct{}{}
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, imagePath)
	if f.panic {
		panic("identifier crashed")
	}
	if f.err != nil {
		return faces.Identification{}, f.err
	}
	if id, ok := f.byPath[filepath.Base(imagePath)]; ok {
		return id, nil
	}
	return f.result, nil
}

type frontalCall struct {
	candidate, outputDir, trackID string
}

type fakeFrontalizer struct {
	mu    sync.Mutex
	err   error
	calls []frontalCall
}

func (f *fakeFrontalizer) Frontalize(candidatePath, outputDir, trackID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, frontalCall{candidatePath, outputDir, trackID})
	if f.err != nil {
		return "", f.err
	}
	out := filepath.Join(outputDir, media.FrontalFilename(trackID))
	if err := os.WriteFile(out, []byte("frontal"), 0644); err != nil {
		return "", err
	}
	return out, nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	videos   []string
	crops    [][]string
	frontals []string
	err      error
}

func (r *fakeRecorder) RecordSession(videoPath string, cropPaths []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videos = append(r.videos, videoPath)
	r.crops = append(r.crops, cropPaths)
	return r.err
}

func (r *fakeRecorder) RecordFrontal(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frontals = append(r.frontals, path)
	return r.err
}

type publishedEvent struct {
	eventType string
	payload   interface{}
}

type fakeEvents struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (e *fakeEvents) Publish(eventType string, payload interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, publishedEvent{eventType, payload})
}

func (e *fakeEvents) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, ev := range e.events {
		out = append(out, ev.eventType)
	}
	return out
}

// failingSaveStore loads from the wrapped store but refuses every save.
type failingSaveStore struct {
	session.Store
}

func (failingSaveStore) Save(*models.SessionRegistry) error {
	return errors.New("disk full")
}

type fakeJanitor struct {
	requests int
}

func (j *fakeJanitor) RequestPurge() bool {
	j.requests++
	return true
}

type fixture struct {
	dir         string
	storage     *media.LocalStorage
	store       *session.FileStore
	sessions    *session.Manager
	detector    *fakeDetector
	identifier  *fakeIdentifier
	frontalizer *fakeFrontalizer
	recorder    *fakeRecorder
	events      *fakeEvents
	janitor     *fakeJanitor
	ingestion   *IngestionService
	identifySvc *IdentificationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	storage, err := media.NewLocalStorage(dir,
		map[media.AssetType]string{
			media.AssetTypeUpload: "uploads",
			media.AssetTypeFace:   filepath.Join("temp", "faces"),
			media.AssetTypeResult: "results",
		},
		map[media.AssetType]string{
			media.AssetTypeUpload: "/uploads",
			media.AssetTypeFace:   "/temp/faces",
			media.AssetTypeResult: "/results",
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	store, err := session.NewFileStore(filepath.Join(dir, "temp", "last_faces_map.json"))
	if err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		dir:         dir,
		storage:     storage,
		store:       store,
		sessions:    session.NewManager(store, store.Locker()),
		detector:    &fakeDetector{count: 2},
		identifier:  &fakeIdentifier{},
		frontalizer: &fakeFrontalizer{},
		recorder:    &fakeRecorder{},
		events:      &fakeEvents{},
		janitor:     &fakeJanitor{},
	}
	f.rebuild()
	return f
}

// rebuild recreates the services, picking up replaced collaborators.
func (f *fixture) rebuild() {
	f.ingestion = NewIngestionService(f.sessions, f.storage, f.detector, f.recorder, f.events, f.janitor)
	f.identifySvc = NewIdentificationService(f.sessions, f.storage, f.identifier, f.frontalizer, f.recorder, f.events)
}

var errBoom = errors.New("boom")

func wantKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("error = %v (%T), want *Error of kind %s", err, err, kind)
	}
	if e.Kind != kind {
		t.Fatalf("error kind = %s, want %s (%v)", e.Kind, kind, err)
	}
	return e
}
