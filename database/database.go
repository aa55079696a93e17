package database

import (
	"database/sql"
	"fmt"
	"log"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// ArtifactKind identifies what produced a file tracked by the ledger.
type ArtifactKind string

const (
	ArtifactVideo    ArtifactKind = "video"
	ArtifactFaceCrop ArtifactKind = "face_crop"
	ArtifactFrontal  ArtifactKind = "frontal"
)

// Artifact is one file written on behalf of a session.
type Artifact struct {
	Path         string
	SessionToken string
	Kind         ArtifactKind
	RecordedAt   int64
	PurgedAt     *int64
}

// SessionInfo is one ingested session as seen by the ledger.
type SessionInfo struct {
	Seq       int64
	Token     string
	VideoPath string
	FaceCount int
	CreatedAt int64
}

// InitDB opens the artifact ledger and creates its tables.
func InitDB(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// enable write-ahead Logging for better concurrency
	_, err = db.Exec("PRAGMA journal_mode=WAL;")
	if err != nil {
		log.Printf("warning: failed to set WAL mode: %v", err)
	}

	sqlStmt := `
	CREATE TABLE IF NOT EXISTS ledger_sessions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		token TEXT NOT NULL UNIQUE,
		video_path TEXT NOT NULL,
		face_count INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS artifacts (
		path TEXT PRIMARY KEY,
		session_token TEXT NOT NULL,
		kind TEXT NOT NULL,
		recorded_at INTEGER NOT NULL,
		purged_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_artifacts_session_token ON artifacts (session_token);
	`
	_, err = db.Exec(sqlStmt)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ledger tables: %w", err)
	}

	log.Println("artifact ledger initialized successfully at", dataSourceName)
	return db, nil
}

// RecordSession appends a session. The most recently recorded session is the
// current one.
func RecordSession(db Querier, token, videoPath string, faceCount int, createdAt int64) error {
	queryBuilder := psql.Insert("ledger_sessions").
		Columns("token", "video_path", "face_count", "created_at").
		Values(token, filepath.ToSlash(videoPath), faceCount, createdAt)

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for RecordSession: %w", err)
	}
	if _, err := db.Exec(sqlStr, args...); err != nil {
		return fmt.Errorf("failed to record session %s: %w", token, err)
	}
	return nil
}

// CurrentSession returns the most recently recorded session, or sql.ErrNoRows.
func CurrentSession(db Querier) (SessionInfo, error) {
	var info SessionInfo
	queryBuilder := psql.Select("seq", "token", "video_path", "face_count", "created_at").
		From("ledger_sessions").
		OrderBy("seq DESC").
		Limit(1)

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return SessionInfo{}, fmt.Errorf("failed to build SQL query for CurrentSession: %w", err)
	}
	err = db.QueryRow(sqlStr, args...).Scan(&info.Seq, &info.Token, &info.VideoPath, &info.FaceCount, &info.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return SessionInfo{}, sql.ErrNoRows
		}
		return SessionInfo{}, fmt.Errorf("failed to query current session: %w", err)
	}
	return info, nil
}

// RecordArtifact inserts or takes over an artifact path for a session. A path
// written again in a later session belongs to that session from then on.
func RecordArtifact(db Querier, token, path string, kind ArtifactKind, recordedAt int64) error {
	path = filepath.ToSlash(path)
	queryBuilder := psql.Insert("artifacts").
		Columns("path", "session_token", "kind", "recorded_at", "purged_at").
		Values(path, token, string(kind), recordedAt, nil).
		Suffix("ON CONFLICT(path) DO UPDATE SET").
		Suffix("session_token = excluded.session_token,").
		Suffix("kind = excluded.kind,").
		Suffix("recorded_at = excluded.recorded_at,").
		Suffix("purged_at = NULL")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for RecordArtifact: %w", err)
	}
	if _, err := db.Exec(sqlStr, args...); err != nil {
		return fmt.Errorf("failed to record artifact %s: %w", path, err)
	}
	return nil
}

// GetArtifact looks up one artifact by path, or returns sql.ErrNoRows.
func GetArtifact(db Querier, path string) (Artifact, error) {
	var a Artifact
	var kind string
	queryBuilder := psql.Select("path", "session_token", "kind", "recorded_at", "purged_at").
		From("artifacts").
		Where(sq.Eq{"path": filepath.ToSlash(path)}).
		Limit(1)

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to build SQL query for GetArtifact: %w", err)
	}
	err = db.QueryRow(sqlStr, args...).Scan(&a.Path, &a.SessionToken, &kind, &a.RecordedAt, &a.PurgedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Artifact{}, sql.ErrNoRows
		}
		return Artifact{}, fmt.Errorf("failed to query artifact %s: %w", path, err)
	}
	a.Kind = ArtifactKind(kind)
	return a, nil
}

// ListOrphanedArtifacts returns unpurged artifacts owned by any session other
// than the current one.
func ListOrphanedArtifacts(db Querier) ([]Artifact, error) {
	queryBuilder := psql.Select("path", "session_token", "kind", "recorded_at").
		From("artifacts").
		Where(sq.Eq{"purged_at": nil}).
		Where("session_token <> (SELECT token FROM ledger_sessions ORDER BY seq DESC LIMIT 1)").
		OrderBy("recorded_at ASC", "path ASC")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for ListOrphanedArtifacts: %w", err)
	}
	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orphaned artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		var a Artifact
		var kind string
		if err := rows.Scan(&a.Path, &a.SessionToken, &kind, &a.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan orphaned artifact: %w", err)
		}
		a.Kind = ArtifactKind(kind)
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orphaned artifacts: %w", err)
	}
	return artifacts, nil
}

// ClaimArtifactForPurge marks an artifact purged, but only while it still
// belongs to ownerToken. It reports whether the claim succeeded.
func ClaimArtifactForPurge(db Querier, path, ownerToken string, purgedAt int64) (bool, error) {
	queryBuilder := psql.Update("artifacts").
		Set("purged_at", purgedAt).
		Where(sq.Eq{"path": filepath.ToSlash(path), "session_token": ownerToken, "purged_at": nil})

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build SQL query for ClaimArtifactForPurge: %w", err)
	}
	result, err := db.Exec(sqlStr, args...)
	if err != nil {
		return false, fmt.Errorf("failed to claim artifact %s: %w", path, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected for artifact %s: %w", path, err)
	}
	return n == 1, nil
}
