package upload

import (
	"context"
	"time"

	"github.com/clipforge/clipforge/internal/models"
)

// objectStore is the subset of blob storage operations the coordinator uses.
type objectStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	PresignGet(ctx context.Context, key string, expiration time.Duration) (string, error)
	PresignPut(ctx context.Context, key, contentType string, expiration time.Duration) (string, error)
	InitiateMultipartUpload(ctx context.Context, key, contentType string) (string, error)
	PresignUploadPart(ctx context.Context, key, uploadID string, partNumber int, expiration time.Duration) (string, error)
	CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []models.CompletedPart) (string, error)
	AbortMultipartUpload(ctx context.Context, key, uploadID string) error
}

// sessionStore persists upload sessions between initiate and finalize/abort.
type sessionStore interface {
	Create(ctx context.Context, s *models.UploadSession) error
	Get(ctx context.Context, uploadID string) (*models.UploadSession, error)
	Delete(ctx context.Context, uploadID string) error
}

// jobStore is the subset of job persistence the coordinator uses.
type jobStore interface {
	Create(ctx context.Context, job *models.Job) error
}

// jobPublisher enqueues jobs for the segment worker. May be nil to skip
// publishing.
type jobPublisher interface {
	PublishJob(ctx context.Context, jobID, traceID string) error
}

// durationProber probes a video's duration over a signed URL.
type durationProber interface {
	Duration(ctx context.Context, url string) (float64, error)
}
