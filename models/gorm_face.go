package models

// SessionRow marks that a session exists in the relational backend. There is
// at most one row; an empty session still has its marker.
// It corresponds to the 'sessions' table.
type SessionRow struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Token     string `gorm:"not null" json:"token"`
	FaceCount int    `gorm:"not null" json:"face_count"`
	CreatedAt int64  `gorm:"not null" json:"created_at"` // Stored as INTEGER in SQLite, Unix timestamp
	UpdatedAt int64  `gorm:"not null" json:"updated_at"` // Stored as INTEGER in SQLite, Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (SessionRow) TableName() string {
	return "sessions"
}

// SessionSingletonID is the primary key of the only SessionRow.
const SessionSingletonID = 1

// Face is one FaceRecord stored as an addressable row.
// It corresponds to the 'faces' table.
type Face struct {
	TrackID             string   `gorm:"primaryKey" json:"track_id"`
	Position            int      `gorm:"not null;index" json:"position"` // detection order
	ImagePath           string   `gorm:"not null" json:"image_path"`
	ThumbnailURL        string   `gorm:"not null" json:"thumbnail_url"`
	Match               string   `gorm:"not null;default:'Unknown'" json:"match"`
	Score               *float64 `json:"score"`
	FrontalizedImageURL *string  `json:"frontalized_image_url"`
	UpdatedAt           int64    `gorm:"not null" json:"updated_at"` // Stored as INTEGER in SQLite, Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (Face) TableName() string {
	return "faces"
}

// FaceFromRecord converts a record into its row form at the given position.
func FaceFromRecord(r FaceRecord, position int) Face {
	return Face{
		TrackID:             r.TrackID,
		Position:            position,
		ImagePath:           r.ImagePath,
		ThumbnailURL:        r.ThumbnailURL,
		Match:               r.Match,
		Score:               r.Score,
		FrontalizedImageURL: r.FrontalizedImageURL,
	}
}

// Record converts the row back into a FaceRecord.
func (f Face) Record() FaceRecord {
	return FaceRecord{
		TrackID:             f.TrackID,
		ImagePath:           f.ImagePath,
		ThumbnailURL:        f.ThumbnailURL,
		Match:               f.Match,
		Score:               f.Score,
		FrontalizedImageURL: f.FrontalizedImageURL,
	}
}
