package workers

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/camden-git/facesession/database"
	"github.com/camden-git/facesession/media"
)

type countingGuard struct {
	mu    sync.Mutex
	calls int
}

func (g *countingGuard) Exclusive(fn func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return fn()
}

type failingLedger struct{}

func (failingLedger) Orphans() ([]database.Artifact, error) { return nil, errors.New("ledger down") }
func (failingLedger) Claim(database.Artifact) (bool, error) { return false, nil }

type janitorFixture struct {
	dir     string
	ledger  *database.Ledger
	storage *media.LocalStorage
	guard   *countingGuard
}

func newJanitorFixture(t *testing.T) *janitorFixture {
	t.Helper()
	dir := t.TempDir()
	db, err := database.InitDB(filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	storage, err := media.NewLocalStorage(filepath.Join(dir, "data"),
		map[media.AssetType]string{media.AssetTypeUpload: "uploads"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return &janitorFixture{dir: dir, ledger: database.NewLedger(db), storage: storage, guard: &countingGuard{}}
}

func (f *janitorFixture) file(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(f.storage.BasePath(), "uploads", name)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func TestJanitor_PurgeDeletesOnlyOrphans(t *testing.T) {
	f := newJanitorFixture(t)
	oldVideo := f.file(t, "old.mp4")
	newVideo := f.file(t, "new.mp4")
	crop := f.file(t, "face_0000.jpg")

	if err := f.ledger.RecordSession(oldVideo, []string{crop}); err != nil {
		t.Fatal(err)
	}
	if err := f.ledger.RecordSession(newVideo, []string{crop}); err != nil {
		t.Fatal(err)
	}

	j := NewJanitor(f.guard, f.ledger, f.storage, 1)
	defer j.Stop()

	stats, err := j.Purge()
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if stats.Listed != 1 || stats.Deleted != 1 || stats.Failed != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if exists(oldVideo) {
		t.Error("orphaned video survived the purge")
	}
	if !exists(newVideo) || !exists(crop) {
		t.Error("purge removed a file owned by the current session")
	}
	if f.guard.calls != 1 {
		t.Errorf("Exclusive called %d times", f.guard.calls)
	}

	stats, err = j.Purge()
	if err != nil || stats.Listed != 0 {
		t.Errorf("second purge = %+v, %v", stats, err)
	}
}

func TestJanitor_MissingFileIsNotAFailure(t *testing.T) {
	f := newJanitorFixture(t)
	gone := filepath.Join(f.storage.BasePath(), "uploads", "gone.mp4")
	if err := f.ledger.RecordSession(gone, nil); err != nil {
		t.Fatal(err)
	}
	if err := f.ledger.RecordSession(f.file(t, "next.mp4"), nil); err != nil {
		t.Fatal(err)
	}
	j := NewJanitor(f.guard, f.ledger, f.storage, 1)
	defer j.Stop()
	stats, err := j.Purge()
	if err != nil || stats.Deleted != 1 || stats.Failed != 0 {
		t.Errorf("Purge() = %+v, %v", stats, err)
	}
}

func TestJanitor_OutsideStorageCountsAsFailure(t *testing.T) {
	f := newJanitorFixture(t)
	outside := filepath.Join(f.dir, "outside.mp4")
	if err := os.WriteFile(outside, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := f.ledger.RecordSession(outside, nil); err != nil {
		t.Fatal(err)
	}
	if err := f.ledger.RecordSession(f.file(t, "next.mp4"), nil); err != nil {
		t.Fatal(err)
	}
	j := NewJanitor(f.guard, f.ledger, f.storage, 1)
	defer j.Stop()
	stats, err := j.Purge()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Claimed != 1 || stats.Failed != 1 || !exists(outside) {
		t.Errorf("stats = %+v, outside exists = %v", stats, exists(outside))
	}
}

func TestJanitor_LedgerError(t *testing.T) {
	f := newJanitorFixture(t)
	j := NewJanitor(f.guard, failingLedger{}, f.storage, 1)
	defer j.Stop()
	if _, err := j.Purge(); err == nil {
		t.Error("Purge succeeded with a failing ledger")
	}
}

func TestJanitor_RequestPurgeRunsInBackground(t *testing.T) {
	f := newJanitorFixture(t)
	old := f.file(t, "old.mp4")
	if err := f.ledger.RecordSession(old, nil); err != nil {
		t.Fatal(err)
	}
	if err := f.ledger.RecordSession(f.file(t, "new.mp4"), nil); err != nil {
		t.Fatal(err)
	}

	done := make(chan PurgeStats, 4)
	j := NewJanitor(f.guard, f.ledger, f.storage, 1)
	j.OnPurge = func(s PurgeStats, err error) {
		if err != nil {
			t.Errorf("background purge: %v", err)
		}
		done <- s
	}
	defer j.Stop()

	if !j.RequestPurge() {
		t.Fatal("RequestPurge() = false on an idle janitor")
	}
	select {
	case s := <-done:
		if s.Deleted != 1 {
			t.Errorf("background stats = %+v", s)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("background purge did not run")
	}
	if exists(old) {
		t.Error("orphaned video survived the background purge")
	}
}

func TestJanitor_RequestsCoalesce(t *testing.T) {
	f := newJanitorFixture(t)
	// no workers are draining a janitor built by hand
	j := &Janitor{
		JobQueue: make(chan struct{}, 1),
		Guard:    f.guard,
		Ledger:   f.ledger,
		Storage:  f.storage,
		StopChan: make(chan struct{}),
	}
	if !j.RequestPurge() {
		t.Fatal("first request rejected")
	}
	if j.RequestPurge() {
		t.Error("second request queued while one is pending")
	}
	j.Stop()
	<-j.JobQueue
	if j.RequestPurge() {
		t.Error("request accepted after Stop")
	}
}
