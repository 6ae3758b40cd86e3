package worker

import (
	"context"
	"time"

	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/models"
)

// ObjectStore is the subset of blob storage operations the worker uses.
type ObjectStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	DownloadToFile(ctx context.Context, key, localPath string) error
	UploadFile(ctx context.Context, key, localPath, contentType string) error
	PresignGet(ctx context.Context, key string, expiration time.Duration) (string, error)
}

// JobStore is the subset of job persistence operations the worker uses.
// The worker is the only writer after creation.
type JobStore interface {
	GetByID(ctx context.Context, jobID string) (*models.Job, error)
	Claim(ctx context.Context, jobID string) (bool, error)
	UpdateStage(ctx context.Context, jobID string, stage models.Stage, progress int) error
	SetVideoDuration(ctx context.Context, jobID string, duration float64) error
	AppendOutputKey(ctx context.Context, jobID, key string) error
	MarkCompleted(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID, errorMessage string) error
}

// Publisher publishes progress events for a single job, in order.
type Publisher interface {
	Publish(ctx context.Context, update models.ProgressUpdate) error
	Close() error
}

// Bus opens a progress publisher per job.
type Bus interface {
	Publisher(jobID string) Publisher
}

// EventPublisher publishes job lifecycle events for the webhook dispatcher.
// May be nil to skip publishing.
type EventPublisher interface {
	PublishEvent(ctx context.Context, jobID, event, traceID string) error
}

// FileProber validates a local file as video and returns its metadata.
type FileProber interface {
	ProbeFile(ctx context.Context, path string) (media.VideoInfo, error)
}
