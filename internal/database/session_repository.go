package database

import (
	"context"
	"database/sql"

	"github.com/clipforge/clipforge/internal/clienterr"
	"github.com/clipforge/clipforge/internal/models"
)

// UploadSessionRepository handles upload session database operations.
// Sessions exist only between initiate and finalize/abort.
type UploadSessionRepository struct {
	db *DB
}

// NewUploadSessionRepository creates a new UploadSessionRepository
func NewUploadSessionRepository(db *DB) *UploadSessionRepository {
	return &UploadSessionRepository{db: db}
}

// Create persists a new upload session.
func (r *UploadSessionRepository) Create(ctx context.Context, s *models.UploadSession) error {
	query := `
		INSERT INTO upload_sessions (
			upload_id, s3_key, job_id, filename, content_type, file_size,
			chunk_size, max_concurrent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		s.UploadID, s.S3Key, s.JobID, s.Filename, s.ContentType, s.FileSize,
		s.ChunkSize, s.MaxConcurrent, s.CreatedAt,
	)
	return err
}

// Get retrieves an upload session by its upload id.
func (r *UploadSessionRepository) Get(ctx context.Context, uploadID string) (*models.UploadSession, error) {
	query := `
		SELECT upload_id, s3_key, job_id, filename, content_type, file_size,
			chunk_size, max_concurrent, created_at
		FROM upload_sessions WHERE upload_id = $1
	`

	s := &models.UploadSession{}
	err := r.db.QueryRowContext(ctx, query, uploadID).Scan(
		&s.UploadID, &s.S3Key, &s.JobID, &s.Filename, &s.ContentType, &s.FileSize,
		&s.ChunkSize, &s.MaxConcurrent, &s.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, clienterr.New(clienterr.KindUploadSessionInvalid, "upload session %s not found", uploadID)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Delete removes a session after finalize or abort.
func (r *UploadSessionRepository) Delete(ctx context.Context, uploadID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM upload_sessions WHERE upload_id = $1`, uploadID)
	return err
}
