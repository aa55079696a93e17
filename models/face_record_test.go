package models

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestTrackID(t *testing.T) {
	tests := []struct {
		idx  int
		want string
	}{
		{0, "face_0000"},
		{1, "face_0001"},
		{42, "face_0042"},
		{9999, "face_9999"},
		{10000, "face_10000"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := TrackID(tt.idx); got != tt.want {
				t.Errorf("TrackID(%d) = %q, want %q", tt.idx, got, tt.want)
			}
		})
	}
}

func TestNewFaceRecord(t *testing.T) {
	r := NewFaceRecord("face_0000", "/data/temp/faces/a.jpg", "/temp/faces/a.jpg")
	if r.Match != UnknownMatch {
		t.Errorf("Match = %q, want %q", r.Match, UnknownMatch)
	}
	if r.Score != nil {
		t.Errorf("Score = %v, want nil", *r.Score)
	}
	if r.FrontalizedImageURL != nil {
		t.Errorf("FrontalizedImageURL = %v, want nil", *r.FrontalizedImageURL)
	}
	if r.Identified() {
		t.Error("new record reports Identified() = true")
	}
}

func TestFaceRecord_Updates(t *testing.T) {
	r := NewFaceRecord("face_0001", "/img.jpg", "/thumb.jpg")
	r.UpdateIdentification("Alice", 0.87)
	if r.Match != "Alice" || r.Score == nil || *r.Score != 0.87 {
		t.Fatalf("after UpdateIdentification got match=%q score=%v", r.Match, r.Score)
	}
	if r.FrontalizedImageURL != nil {
		t.Error("UpdateIdentification touched FrontalizedImageURL")
	}
	if r.ImagePath != "/img.jpg" || r.ThumbnailURL != "/thumb.jpg" {
		t.Error("UpdateIdentification touched creation fields")
	}

	r.UpdateFrontalization("/results/face_0001_frontal.jpg")
	if r.FrontalizedImageURL == nil || *r.FrontalizedImageURL != "/results/face_0001_frontal.jpg" {
		t.Fatalf("FrontalizedImageURL = %v", r.FrontalizedImageURL)
	}

	r.UpdateIdentification("Bob", 0.5)
	if r.Match != "Bob" || *r.Score != 0.5 {
		t.Errorf("second identification did not overwrite: match=%q score=%v", r.Match, *r.Score)
	}

	r.ClearFrontalization()
	if r.FrontalizedImageURL != nil {
		t.Errorf("FrontalizedImageURL = %v after ClearFrontalization", *r.FrontalizedImageURL)
	}

	r.UpdateIdentification("", 0.2)
	if r.Match != UnknownMatch || *r.Score != 0.2 {
		t.Errorf("empty match stored as %q, score %v", r.Match, *r.Score)
	}
}

func TestSessionRegistry_AddGet(t *testing.T) {
	reg := NewSessionRegistry()
	if err := reg.Add(NewFaceRecord("face_0000", "/a.jpg", "/ta.jpg")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := reg.Add(NewFaceRecord("face_0000", "/b.jpg", "/tb.jpg")); err == nil {
		t.Error("Add accepted a duplicate track id")
	}
	if err := reg.Add(FaceRecord{}); err == nil {
		t.Error("Add accepted an empty track id")
	}
	if err := reg.Add(NewFaceRecord("face_0001", "", "/t.jpg")); err == nil {
		t.Error("Add accepted a record without an image path")
	}
	noMatch := NewFaceRecord("face_0001", "/a.jpg", "/t.jpg")
	noMatch.Match = ""
	if err := reg.Add(noMatch); err == nil {
		t.Error("Add accepted a record without a match")
	}

	got, err := reg.Get("face_0000")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got.UpdateIdentification("Alice", 0.9)
	again, _ := reg.Get("face_0000")
	if again.Match != "Alice" {
		t.Error("Get did not return the live record")
	}

	if _, err := reg.Get("face_0002"); !errors.Is(err, ErrTrackNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrTrackNotFound", err)
	}
}

func TestSessionRegistry_RecordsAreCopies(t *testing.T) {
	reg := NewSessionRegistry()
	_ = reg.Add(NewFaceRecord("face_0000", "/a.jpg", "/ta.jpg"))
	recs := reg.Records()
	recs[0].Match = "Mallory"
	live, _ := reg.Get("face_0000")
	if live.Match != UnknownMatch {
		t.Error("mutating Records() output changed the registry")
	}
}

func TestSessionRegistry_JSONKeepsOrder(t *testing.T) {
	reg := NewSessionRegistry()
	// insertion order deliberately differs from lexical order
	ids := []string{"face_0002", "face_0000", "face_0001"}
	for _, id := range ids {
		if err := reg.Add(NewFaceRecord(id, "/faces/"+id+".jpg", "/temp/faces/"+id+".jpg")); err != nil {
			t.Fatal(err)
		}
	}
	r, _ := reg.Get("face_0000")
	r.UpdateIdentification("Alice", 0.87)
	r.UpdateFrontalization("/results/face_0000_frontal.jpg")

	data, err := json.Marshal(reg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.HasPrefix(string(data), `{"face_0002":{"track_id":"face_0002"`) {
		t.Errorf("unexpected document start: %s", data)
	}

	decoded := NewSessionRegistry()
	if err := json.Unmarshal(data, decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(decoded.TrackIDs(), ids) {
		t.Errorf("TrackIDs() = %v, want %v", decoded.TrackIDs(), ids)
	}
	if !reflect.DeepEqual(decoded.Records(), reg.Records()) {
		t.Errorf("decoded records differ:\n got %+v\nwant %+v", decoded.Records(), reg.Records())
	}
}

func TestSessionRegistry_EmptyDocument(t *testing.T) {
	data, err := json.Marshal(NewSessionRegistry())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{}" {
		t.Errorf("empty registry encodes as %s", data)
	}
	reg := NewSessionRegistry()
	if err := json.Unmarshal(data, reg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if reg.Len() != 0 {
		t.Errorf("Len() = %d", reg.Len())
	}
}

func TestSessionRegistry_UnmarshalRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{"face_0000":`},
		{"array", `[]`},
		{"string", `"face_0000"`},
		{"mismatched key", `{"face_0000":{"track_id":"face_0001","image_path":"/a","thumbnail_url":"/t","match":"Unknown"}}`},
		{"duplicate key", `{"face_0000":{"track_id":"face_0000","image_path":"/a","thumbnail_url":"/t","match":"Unknown"},` +
			`"face_0000":{"track_id":"face_0000","image_path":"/b","thumbnail_url":"/t","match":"Unknown"}}`},
		{"missing image path", `{"face_0000":{"track_id":"face_0000","thumbnail_url":"/t","match":"Unknown"}}`},
		{"wrong score type", `{"face_0000":{"track_id":"face_0000","image_path":"/a","match":"Unknown","score":"high"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewSessionRegistry()
			if err := json.Unmarshal([]byte(tt.doc), reg); err == nil {
				t.Errorf("Unmarshal(%s) succeeded, want error", tt.doc)
			}
		})
	}
}

func TestFaceRowRoundTrip(t *testing.T) {
	rec := NewFaceRecord("face_0003", "/a.jpg", "/t.jpg")
	rec.UpdateIdentification("Alice", 0.5)
	row := FaceFromRecord(rec, 3)
	if row.Position != 3 {
		t.Errorf("Position = %d", row.Position)
	}
	if got := row.Record(); !reflect.DeepEqual(got, rec) {
		t.Errorf("Record() = %+v, want %+v", got, rec)
	}
}
