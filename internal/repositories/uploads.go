package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/ibx/internal/shared"
)

// UploadRecord is one row of bulk upload history.
type UploadRecord struct {
	ID         string
	Path       string
	MD5        string
	TrackID    string
	UploadedAt time.Time
}

// UploadRepository persists bulk upload history keyed by checksum.
type UploadRepository struct {
	db *sql.DB
}

// NewUploadRepository creates a new [UploadRepository] with the given database connection
func NewUploadRepository(db *sql.DB) *UploadRepository {
	return &UploadRepository{db: db}
}

// Record stores a completed upload. An existing row with the same checksum
// is replaced, so re-uploading a moved file updates its path.
func (r *UploadRepository) Record(path, md5, trackID string) error {
	query := `
		INSERT INTO uploads (id, path, md5, track_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(md5) DO UPDATE SET
			path = excluded.path,
			track_id = excluded.track_id,
			uploaded_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.Exec(query, shared.GenerateID(), path, md5, trackID)
	if err != nil {
		return fmt.Errorf("failed to record upload: %w", err)
	}

	return nil
}

// HasChecksum reports whether a file with this checksum was uploaded before.
func (r *UploadRepository) HasChecksum(md5 string) (bool, error) {
	var exists bool
	err := r.db.QueryRow("SELECT EXISTS(SELECT 1 FROM uploads WHERE md5 = ?)", md5).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check upload history: %w", err)
	}
	return exists, nil
}

// List retrieves upload history, newest first.
func (r *UploadRepository) List() ([]UploadRecord, error) {
	query := `
		SELECT id, path, md5, track_id, uploaded_at
		FROM uploads
		ORDER BY uploaded_at DESC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query uploads: %w", err)
	}
	defer rows.Close()

	var records []UploadRecord
	for rows.Next() {
		var rec UploadRecord
		if err := rows.Scan(&rec.ID, &rec.Path, &rec.MD5, &rec.TrackID, &rec.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}
