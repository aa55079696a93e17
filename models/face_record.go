package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// UnknownMatch is the match value of a face that has not been identified,
// or that identification could not attribute to a known person.
const UnknownMatch = "Unknown"

// ErrTrackNotFound is returned when a track id is not present in a registry.
var ErrTrackNotFound = errors.New("track not found")

// FaceRecord is one distinct face track detected in the ingested video.
type FaceRecord struct {
	TrackID             string   `json:"track_id"`
	ImagePath           string   `json:"image_path"`
	ThumbnailURL        string   `json:"thumbnail_url"`
	Match               string   `json:"match"`
	Score               *float64 `json:"score"`
	FrontalizedImageURL *string  `json:"frontalized_image_url"`
}

// NewFaceRecord builds an unidentified record for a freshly detected track.
func NewFaceRecord(trackID, imagePath, thumbnailURL string) FaceRecord {
	return FaceRecord{
		TrackID:      trackID,
		ImagePath:    imagePath,
		ThumbnailURL: thumbnailURL,
		Match:        UnknownMatch,
	}
}

// TrackID returns the identifier of the face found at position idx (0-based)
// in detection order.
func TrackID(idx int) string {
	return fmt.Sprintf("face_%04d", idx)
}

// UpdateIdentification overwrites match and score with the latest result.
// An empty match is stored as UnknownMatch.
func (r *FaceRecord) UpdateIdentification(match string, score float64) {
	if match == "" {
		match = UnknownMatch
	}
	r.Match = match
	r.Score = &score
}

// UpdateFrontalization overwrites the frontalized image reference.
func (r *FaceRecord) UpdateFrontalization(url string) {
	r.FrontalizedImageURL = &url
}

// ClearFrontalization drops the frontalized image reference, used when the
// newest identification produced no frontal image.
func (r *FaceRecord) ClearFrontalization() {
	r.FrontalizedImageURL = nil
}

// Identified reports whether identification has run for this track at least once.
func (r *FaceRecord) Identified() bool {
	return r.Score != nil
}

// Validate checks the fields every persisted record must carry.
func (r *FaceRecord) Validate() error {
	if r.TrackID == "" {
		return errors.New("record has an empty track id")
	}
	if r.ImagePath == "" {
		return fmt.Errorf("record %s has no image_path", r.TrackID)
	}
	if r.Match == "" {
		return fmt.Errorf("record %s has no match", r.TrackID)
	}
	return nil
}

// Clone returns a deep copy of the record.
func (r FaceRecord) Clone() FaceRecord {
	c := r
	if r.Score != nil {
		s := *r.Score
		c.Score = &s
	}
	if r.FrontalizedImageURL != nil {
		u := *r.FrontalizedImageURL
		c.FrontalizedImageURL = &u
	}
	return c
}

// SessionRegistry maps track ids to face records and remembers detection order.
// It is not safe for concurrent use; session.Manager serialises access.
type SessionRegistry struct {
	order   []string
	records map[string]*FaceRecord
}

// NewSessionRegistry returns an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{records: make(map[string]*FaceRecord)}
}

// Add appends a record. Track ids are unique within a registry and the
// record must pass Validate.
func (s *SessionRegistry) Add(record FaceRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	if s.records == nil {
		s.records = make(map[string]*FaceRecord)
	}
	if _, exists := s.records[record.TrackID]; exists {
		return fmt.Errorf("duplicate track id %q", record.TrackID)
	}
	r := record.Clone()
	s.records[r.TrackID] = &r
	s.order = append(s.order, r.TrackID)
	return nil
}

// Get returns the live record for trackID so callers can mutate it in place.
func (s *SessionRegistry) Get(trackID string) (*FaceRecord, error) {
	r, ok := s.records[trackID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTrackNotFound, trackID)
	}
	return r, nil
}

// Len returns the number of records.
func (s *SessionRegistry) Len() int {
	return len(s.order)
}

// TrackIDs returns the track ids in detection order.
func (s *SessionRegistry) TrackIDs() []string {
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	return ids
}

// Records returns copies of every record in detection order.
func (s *SessionRegistry) Records() []FaceRecord {
	out := make([]FaceRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].Clone())
	}
	return out
}

// MarshalJSON encodes the registry as an object keyed by track id, keys in
// detection order.
func (s *SessionRegistry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range s.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s.records[id])
		if err != nil {
			return nil, fmt.Errorf("encode record %s: %w", id, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a registry document, keeping the document's key order.
// Duplicate keys and records whose track_id disagrees with their key are rejected.
func (s *SessionRegistry) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("registry document must be a JSON object")
	}

	decoded := NewSessionRegistry()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		var record FaceRecord
		if err := dec.Decode(&record); err != nil {
			return fmt.Errorf("decode record %s: %w", key, err)
		}
		if record.TrackID != key {
			return fmt.Errorf("record under key %q has track_id %q", key, record.TrackID)
		}
		if err := record.Validate(); err != nil {
			return err
		}
		if err := decoded.Add(record); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after registry document")
	}

	*s = *decoded
	return nil
}
