package session

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/camden-git/facesession/models"
)

func newTestRegistry(t *testing.T, n int) *models.SessionRegistry {
	t.Helper()
	reg := models.NewSessionRegistry()
	for i := 0; i < n; i++ {
		id := models.TrackID(i)
		if err := reg.Add(models.NewFaceRecord(id, "/faces/"+id+".jpg", "/temp/faces/"+id+".jpg")); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	return reg
}

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "temp", "last_faces_map.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return fs
}

func TestNewFileStore_EmptyPath(t *testing.T) {
	if _, err := NewFileStore(""); err == nil {
		t.Error("NewFileStore(\"\") succeeded")
	}
}

func TestFileStore_LoadWithoutSession(t *testing.T) {
	fs := newTestFileStore(t)
	if _, err := fs.Load(); !errors.Is(err, ErrNoSession) {
		t.Errorf("Load() error = %v, want ErrNoSession", err)
	}
}

func TestFileStore_SaveLoad(t *testing.T) {
	fs := newTestFileStore(t)
	reg := newTestRegistry(t, 3)
	r, _ := reg.Get("face_0001")
	r.UpdateIdentification("Alice", 0.87)

	if err := fs.Save(reg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := fs.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got.Records(), reg.Records()) {
		t.Errorf("Load() = %+v, want %+v", got.Records(), reg.Records())
	}
}

func TestFileStore_SaveOverwrites(t *testing.T) {
	fs := newTestFileStore(t)
	if err := fs.Save(newTestRegistry(t, 5)); err != nil {
		t.Fatal(err)
	}
	if err := fs.Save(newTestRegistry(t, 2)); err != nil {
		t.Fatal(err)
	}
	got, err := fs.Load()
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"face_0000", "face_0001"}; !reflect.DeepEqual(got.TrackIDs(), want) {
		t.Errorf("TrackIDs() = %v, want %v", got.TrackIDs(), want)
	}
}

func TestFileStore_SaveLeavesNoTempFiles(t *testing.T) {
	fs := newTestFileStore(t)
	for i := 0; i < 3; i++ {
		if err := fs.Save(newTestRegistry(t, i)); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := os.ReadDir(filepath.Dir(fs.Path()))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "last_faces_map.json" {
		names := []string{}
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory contains %v, want only the registry document", names)
	}
}

func TestFileStore_SaveNil(t *testing.T) {
	fs := newTestFileStore(t)
	if err := fs.Save(nil); err == nil {
		t.Error("Save(nil) succeeded")
	}
}

func TestFileStore_LoadCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"truncated", `{"face_0000":{"track_id":"face_0000"`},
		{"empty file", ``},
		{"wrong shape", `[1,2,3]`},
		{"key mismatch", `{"face_0000":{"track_id":"face_0009","image_path":"/a","thumbnail_url":"/t","match":"Unknown"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newTestFileStore(t)
			if err := os.MkdirAll(filepath.Dir(fs.Path()), 0755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(fs.Path(), []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := fs.Load(); !errors.Is(err, ErrCorruptSession) {
				t.Errorf("Load() error = %v, want ErrCorruptSession", err)
			}
		})
	}
}
