package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/clipforge/clipforge/internal/clienterr"
	"github.com/clipforge/clipforge/internal/models"
)

// JobRepository handles job-related database operations.
// After creation a job is mutated only by its owning worker; status updates
// are conditional on the expected current status to keep the single-writer
// discipline even under a duplicate claim.
type JobRepository struct {
	db *DB
}

// NewJobRepository creates a new JobRepository
func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create creates a new job record in QUEUED.
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (
			id, user_id, source_key, filename, content_type, file_size, title,
			status, stage, progress, video_duration, output_keys,
			webhook_url, webhook_secret, cutting_options, text_input,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.UserID, job.SourceKey, job.Filename, job.ContentType, job.FileSize, job.Title,
		job.Status, job.Stage, job.Progress, job.VideoDuration, pq.Array(job.OutputKeys),
		job.WebhookURL, job.WebhookSecret, nullableJSON(job.CuttingJSON), nullableJSON(job.TextJSON),
		job.CreatedAt, job.UpdatedAt,
	)

	return err
}

// GetByID retrieves a job by ID
func (r *JobRepository) GetByID(ctx context.Context, jobID string) (*models.Job, error) {
	query := `
		SELECT id, user_id, source_key, filename, content_type, file_size, title,
			status, stage, progress, video_duration, output_keys,
			webhook_url, webhook_secret, cutting_options, text_input,
			error_message, created_at, updated_at
		FROM jobs WHERE id = $1
	`

	job := &models.Job{}
	var outputKeys pq.StringArray
	var cutting, text []byte
	err := r.db.QueryRowContext(ctx, query, jobID).Scan(
		&job.ID, &job.UserID, &job.SourceKey, &job.Filename, &job.ContentType, &job.FileSize, &job.Title,
		&job.Status, &job.Stage, &job.Progress, &job.VideoDuration, &outputKeys,
		&job.WebhookURL, &job.WebhookSecret, &cutting, &text,
		&job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, clienterr.New(clienterr.KindJobNotFound, "job %s not found", jobID)
	}
	if err != nil {
		return nil, err
	}

	job.OutputKeys = outputKeys
	job.CuttingJSON = cutting
	job.TextJSON = text
	return job, nil
}

// Claim transitions a QUEUED job to PROCESSING. Returns false when the job was
// already claimed (or finished) by another worker.
func (r *JobRepository) Claim(ctx context.Context, jobID string) (bool, error) {
	query := `
		UPDATE jobs
		SET status = $1, stage = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`

	res, err := r.db.ExecContext(ctx, query,
		models.StatusProcessing, models.StageDownloading, jobID, models.StatusQueued)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdateStage records the current stage and progress percentage. Progress is
// clamped to never decrease.
func (r *JobRepository) UpdateStage(ctx context.Context, jobID string, stage models.Stage, progress int) error {
	query := `
		UPDATE jobs
		SET stage = $1, progress = GREATEST(progress, $2), updated_at = NOW()
		WHERE id = $3
	`

	_, err := r.db.ExecContext(ctx, query, stage, progress, jobID)
	return err
}

// SetVideoDuration caches the probed duration on the job record.
func (r *JobRepository) SetVideoDuration(ctx context.Context, jobID string, duration float64) error {
	query := `
		UPDATE jobs
		SET video_duration = $1, updated_at = NOW()
		WHERE id = $2
	`

	_, err := r.db.ExecContext(ctx, query, duration, jobID)
	return err
}

// AppendOutputKey appends one processed segment key to the job's output list.
func (r *JobRepository) AppendOutputKey(ctx context.Context, jobID, key string) error {
	query := `
		UPDATE jobs
		SET output_keys = array_append(output_keys, $1), updated_at = NOW()
		WHERE id = $2
	`

	_, err := r.db.ExecContext(ctx, query, key, jobID)
	return err
}

// MarkCompleted transitions a PROCESSING job to COMPLETED at 100%.
func (r *JobRepository) MarkCompleted(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET status = $1, stage = $2, progress = 100, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`

	res, err := r.db.ExecContext(ctx, query,
		models.StatusCompleted, models.StageCompleted, jobID, models.StatusProcessing)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("job %s not in PROCESSING, refusing completion", jobID)
	}
	return nil
}

// MarkFailed transitions a job to FAILED with an error message. Terminal
// states are never overwritten.
func (r *JobRepository) MarkFailed(ctx context.Context, jobID, errorMessage string) error {
	query := `
		UPDATE jobs
		SET status = $1, stage = $2, error_message = $3, updated_at = NOW()
		WHERE id = $4 AND status IN ($5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		models.StatusFailed, models.StageFailed, errorMessage, jobID,
		models.StatusQueued, models.StatusProcessing)
	return err
}

// nullableJSON maps an empty raw JSON blob to SQL NULL.
func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
