package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/clipforge/clipforge/internal/clienterr"
	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/storage"
)

const (
	mib = 1024 * 1024
	gib = 1024 * mib
)

// ChunkPlan computes the chunk size and upload concurrency for a declared
// file size, adapted for mobile clients.
func ChunkPlan(fileSize int64, isMobile bool) (chunkSize int64, maxConcurrent int) {
	if isMobile {
		switch {
		case fileSize <= 100*mib:
			return 5 * mib, 2
		case fileSize <= 500*mib:
			return 8 * mib, 3
		case fileSize <= 1*gib:
			return 10 * mib, 3
		default:
			return 15 * mib, 4
		}
	}
	switch {
	case fileSize <= 100*mib:
		return 10 * mib, 4
	case fileSize <= 500*mib:
		return 15 * mib, 6
	case fileSize <= 1*gib:
		return 20 * mib, 6
	default:
		return 25 * mib, 8
	}
}

// Coordinator orchestrates chunked upload sessions, finalization and the
// hand-off into the processing pipeline.
type Coordinator struct {
	store    objectStore
	sessions sessionStore
	jobs     jobStore
	producer jobPublisher
	prober   durationProber
	cfg      *config.Config
}

// NewCoordinator creates an upload coordinator.
func NewCoordinator(
	store objectStore,
	sessions sessionStore,
	jobs jobStore,
	producer jobPublisher,
	prober durationProber,
	cfg *config.Config,
) *Coordinator {
	return &Coordinator{
		store:    store,
		sessions: sessions,
		jobs:     jobs,
		producer: producer,
		prober:   prober,
		cfg:      cfg,
	}
}

// InitiateSingle starts a single-shot direct upload: a fresh job id, a source
// key and a presigned PUT URL the client uploads to.
func (c *Coordinator) InitiateSingle(ctx context.Context, req *models.InitiateUploadRequest) (*models.InitiateUploadResponse, error) {
	jobID := uuid.New().String()
	key := storage.SourceKey(jobID, req.Filename, time.Now())

	url, err := c.store.PresignPut(ctx, key, req.ContentType, c.cfg.PresignTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	log.Info().
		Str("job_id", jobID).
		Str("s3_key", key).
		Int64("file_size", req.FileSize).
		Msg("Single-shot upload initiated")

	return &models.InitiateUploadResponse{
		PresignedURL: url,
		S3Key:        key,
		JobID:        jobID,
	}, nil
}

// InitiateMultipart starts a chunked upload session.
func (c *Coordinator) InitiateMultipart(ctx context.Context, req *models.InitiateUploadRequest) (*models.InitiateMultipartUploadResponse, error) {
	jobID := uuid.New().String()
	key := storage.SourceKey(jobID, req.Filename, time.Now())
	chunkSize, maxConcurrent := ChunkPlan(req.FileSize, req.IsMobile)

	uploadID, err := c.store.InitiateMultipartUpload(ctx, key, req.ContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to initiate multipart upload: %w", err)
	}

	session := &models.UploadSession{
		UploadID:      uploadID,
		S3Key:         key,
		JobID:         jobID,
		Filename:      req.Filename,
		ContentType:   req.ContentType,
		FileSize:      req.FileSize,
		ChunkSize:     chunkSize,
		MaxConcurrent: maxConcurrent,
		CreatedAt:     time.Now().UTC(),
	}
	if err := c.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist upload session: %w", err)
	}

	log.Info().
		Str("job_id", jobID).
		Str("upload_id", uploadID).
		Int64("chunk_size", chunkSize).
		Int("max_concurrent", maxConcurrent).
		Msg("Multipart upload initiated")

	return &models.InitiateMultipartUploadResponse{
		UploadID:             uploadID,
		S3Key:                key,
		JobID:                jobID,
		ChunkSize:            chunkSize,
		MaxConcurrentUploads: maxConcurrent,
	}, nil
}

// PresignPart returns a short-lived URL the client PUTs one part to.
func (c *Coordinator) PresignPart(ctx context.Context, req *models.UploadPartRequest) (*models.UploadPartResponse, error) {
	session, err := c.sessions.Get(ctx, req.UploadID)
	if err != nil {
		return nil, err
	}
	if session.S3Key != req.S3Key {
		return nil, clienterr.New(clienterr.KindUploadSessionInvalid,
			"s3 key does not match upload session %s", req.UploadID)
	}

	url, err := c.store.PresignUploadPart(ctx, session.S3Key, session.UploadID, req.PartNumber, c.cfg.PresignTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to presign part: %w", err)
	}

	return &models.UploadPartResponse{
		PresignedURL: url,
		PartNumber:   req.PartNumber,
	}, nil
}

// Finalize completes the multipart upload with the parts sorted ascending by
// part number, making the blob durable, and destroys the session.
func (c *Coordinator) Finalize(ctx context.Context, req *models.FinalizeMultipartRequest) (*models.FinalizeMultipartResponse, error) {
	session, err := c.sessions.Get(ctx, req.UploadID)
	if err != nil {
		return nil, err
	}
	if session.S3Key != req.S3Key {
		return nil, clienterr.New(clienterr.KindUploadSessionInvalid,
			"s3 key does not match upload session %s", req.UploadID)
	}
	if len(req.Parts) == 0 {
		return nil, clienterr.New(clienterr.KindUploadSessionInvalid, "no parts submitted at finalize")
	}

	// The object store requires parts in ascending part-number order.
	parts := append([]models.CompletedPart(nil), req.Parts...)
	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })

	location, err := c.store.CompleteMultipartUpload(ctx, session.S3Key, session.UploadID, parts)
	if err != nil {
		return nil, fmt.Errorf("failed to complete multipart upload: %w", err)
	}

	if err := c.sessions.Delete(ctx, req.UploadID); err != nil {
		log.Warn().Err(err).Str("upload_id", req.UploadID).Msg("Failed to delete upload session")
	}

	log.Info().
		Str("upload_id", req.UploadID).
		Str("s3_key", session.S3Key).
		Int("parts", len(req.Parts)).
		Msg("Multipart upload finalized")

	return &models.FinalizeMultipartResponse{S3URL: location}, nil
}

// Abort cancels an upload session; partial parts are discarded by the object
// store.
func (c *Coordinator) Abort(ctx context.Context, req *models.AbortMultipartRequest) error {
	session, err := c.sessions.Get(ctx, req.UploadID)
	if err != nil {
		return err
	}

	if err := c.store.AbortMultipartUpload(ctx, session.S3Key, session.UploadID); err != nil {
		return err
	}

	if err := c.sessions.Delete(ctx, req.UploadID); err != nil {
		log.Warn().Err(err).Str("upload_id", req.UploadID).Msg("Failed to delete upload session")
	}

	log.Info().Str("upload_id", req.UploadID).Msg("Multipart upload aborted")
	return nil
}

// Complete finalizes a pending multipart session when one is still open,
// creates the job record in QUEUED and enqueues it for the segment worker.
// The duration probe is best-effort: the worker reprobes later.
func (c *Coordinator) Complete(ctx context.Context, req *models.CompleteUploadRequest) (*models.JobCreatedResponse, error) {
	if req.UploadID != "" && len(req.Parts) > 0 {
		if _, err := c.sessions.Get(ctx, req.UploadID); err == nil {
			if _, err := c.Finalize(ctx, &models.FinalizeMultipartRequest{
				UploadID: req.UploadID,
				S3Key:    req.S3Key,
				Parts:    req.Parts,
			}); err != nil {
				return nil, err
			}
		}
	}

	exists, err := c.store.Exists(ctx, req.S3Key)
	if err != nil {
		return nil, fmt.Errorf("failed to check source blob: %w", err)
	}
	if !exists {
		return nil, clienterr.New(clienterr.KindSourceMissing, "source blob %s not found", req.S3Key)
	}

	job := &models.Job{
		ID:          req.JobID,
		UserID:      req.UserID,
		SourceKey:   req.S3Key,
		Filename:    req.Filename,
		ContentType: req.ContentType,
		FileSize:    req.FileSize,
		Title:       req.Title,
		Status:      models.StatusQueued,
		Stage:       models.StageQueued,
		Progress:    0,
		OutputKeys:  []string{},
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if req.Webhook != nil {
		job.WebhookURL = &req.Webhook.URL
		job.WebhookSecret = req.Webhook.Secret
	}
	if req.UserID == "" {
		job.UserID = "anonymous"
	}

	if req.CuttingOptions != nil {
		raw, err := json.Marshal(req.CuttingOptions)
		if err != nil {
			return nil, clienterr.Wrap(clienterr.KindBadPolicy, err, "malformed cutting options")
		}
		job.CuttingJSON = raw
	}
	if req.TextInput != nil {
		text := *req.TextInput
		if text.Strategy == "" && req.TextStrategy != nil {
			text.Strategy = *req.TextStrategy
		}
		raw, err := json.Marshal(text)
		if err != nil {
			return nil, clienterr.Wrap(clienterr.KindBadPolicy, err, "malformed text input")
		}
		job.TextJSON = raw
	}

	// Best-effort probe so the status endpoint can show the duration before
	// the worker picks the job up.
	if c.prober != nil {
		if url, err := c.store.PresignGet(ctx, req.S3Key, c.cfg.PresignTTL); err == nil {
			if duration, err := c.prober.Duration(ctx, url); err == nil {
				job.VideoDuration = &duration
			} else {
				log.Warn().Err(err).Str("job_id", req.JobID).Msg("Pre-enqueue probe failed, worker will reprobe")
			}
		}
	}

	if err := c.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if c.producer != nil {
		traceID := uuid.New().String()
		if err := c.producer.PublishJob(ctx, job.ID, traceID); err != nil {
			// The job row stays QUEUED and is not on the queue; nothing in
			// this service re-enqueues it.
			log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to publish job to Kafka")
		}
	}

	log.Info().
		Str("job_id", job.ID).
		Str("user_id", job.UserID).
		Str("s3_key", job.SourceKey).
		Msg("Job created")

	return &models.JobCreatedResponse{
		JobID:   job.ID,
		Status:  models.StatusQueued,
		Message: "Video uploaded successfully, processing started",
	}, nil
}
