package repository

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/camden-git/facesession/database"
	"github.com/camden-git/facesession/models"
	"github.com/camden-git/facesession/session"
	"gorm.io/gorm/logger"
)

func newTestRepository(t *testing.T) *SessionRepository {
	t.Helper()
	db, err := database.InitGormDB(filepath.Join(t.TempDir(), "session.db"), logger.Silent)
	if err != nil {
		t.Fatalf("InitGormDB: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		t.Fatalf("AutoMigrateModels: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewSessionRepository(db)
}

func registryOf(t *testing.T, ids ...string) *models.SessionRegistry {
	t.Helper()
	reg := models.NewSessionRegistry()
	for _, id := range ids {
		if err := reg.Add(models.NewFaceRecord(id, "/data/temp/faces/"+id+".jpg", "/temp/faces/"+id+".jpg")); err != nil {
			t.Fatal(err)
		}
	}
	return reg
}

func TestSessionRepository_LoadWithoutSession(t *testing.T) {
	repo := newTestRepository(t)
	if _, err := repo.Load(); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("Load() error = %v, want ErrNoSession", err)
	}
}

func TestSessionRepository_EmptySessionIsNotMissing(t *testing.T) {
	repo := newTestRepository(t)
	if err := repo.Save(models.NewSessionRegistry()); err != nil {
		t.Fatal(err)
	}
	reg, err := repo.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if reg.Len() != 0 {
		t.Errorf("Load() returned %d records", reg.Len())
	}
}

func TestSessionRepository_SaveLoadKeepsOrder(t *testing.T) {
	repo := newTestRepository(t)
	reg := registryOf(t, "face_0002", "face_0000", "face_0001")
	if err := repo.Save(reg); err != nil {
		t.Fatal(err)
	}
	got, err := repo.Load()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.Records(), reg.Records()) {
		t.Errorf("Load() = %+v, want %+v", got.Records(), reg.Records())
	}
}

func TestSessionRepository_SaveReplaces(t *testing.T) {
	repo := newTestRepository(t)
	if err := repo.Save(registryOf(t, "face_0000", "face_0001", "face_0002")); err != nil {
		t.Fatal(err)
	}
	if err := repo.Save(registryOf(t, "face_0000")); err != nil {
		t.Fatal(err)
	}
	got, err := repo.Load()
	if err != nil {
		t.Fatal(err)
	}
	if ids := got.TrackIDs(); !reflect.DeepEqual(ids, []string{"face_0000"}) {
		t.Errorf("TrackIDs() = %v", ids)
	}
}

func TestSessionRepository_SaveRecord(t *testing.T) {
	repo := newTestRepository(t)
	if err := repo.Save(registryOf(t, "face_0000", "face_0001")); err != nil {
		t.Fatal(err)
	}

	rec := models.NewFaceRecord("face_0001", "/data/temp/faces/face_0001.jpg", "/temp/faces/face_0001.jpg")
	rec.UpdateIdentification("Alice", 0.87)
	rec.UpdateFrontalization("/results/face_0001_frontal.jpg")
	if err := repo.SaveRecord(&rec); err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}

	got, err := repo.Load()
	if err != nil {
		t.Fatal(err)
	}
	r1, _ := got.Get("face_0001")
	if r1.Match != "Alice" || *r1.Score != 0.87 || *r1.FrontalizedImageURL != "/results/face_0001_frontal.jpg" {
		t.Errorf("face_0001 = %+v", r1)
	}
	r0, _ := got.Get("face_0000")
	if r0.Match != models.UnknownMatch || r0.Score != nil || r0.FrontalizedImageURL != nil {
		t.Errorf("face_0000 changed: %+v", r0)
	}

	missing := models.NewFaceRecord("face_0009", "/x.jpg", "/t/x.jpg")
	if err := repo.SaveRecord(&missing); !errors.Is(err, models.ErrTrackNotFound) {
		t.Errorf("SaveRecord(unknown) error = %v, want ErrTrackNotFound", err)
	}
}

func TestSessionRepository_WithManager(t *testing.T) {
	repo := newTestRepository(t)
	m := session.NewManager(repo, nil)
	if _, err := m.Replace(func() (*models.SessionRegistry, error) { return registryOf(t, "face_0000"), nil }); err != nil {
		t.Fatal(err)
	}
	got, err := m.UpdateRecord("face_0000", func(r *models.FaceRecord) error {
		r.UpdateIdentification("Bob", 0.5)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Match != "Bob" {
		t.Errorf("UpdateRecord returned %+v", got)
	}
}

func TestSessionRepository_CountMismatchIsCorrupt(t *testing.T) {
	repo := newTestRepository(t)
	if err := repo.Save(registryOf(t, "face_0000", "face_0001")); err != nil {
		t.Fatal(err)
	}
	if err := repo.DB.Where("track_id = ?", "face_0001").Delete(&models.Face{}).Error; err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Load(); !errors.Is(err, session.ErrCorruptSession) {
		t.Errorf("Load() error = %v, want ErrCorruptSession", err)
	}
}
