package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a processing job.
// Transitions only along QUEUED -> PROCESSING -> (COMPLETED | FAILED).
type JobStatus string

const (
	StatusQueued     JobStatus = "QUEUED"
	StatusProcessing JobStatus = "PROCESSING"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
)

// Stage is the fine-grained processing stage within a job.
type Stage string

const (
	StageQueued            Stage = "queued"
	StageDownloading       Stage = "downloading"
	StageProbing           Stage = "probing"
	StageGeneratingText    Stage = "generating_text"
	StageProcessingSegment Stage = "processing_segment"
	StageUploadingResults  Stage = "uploading_results"
	StageCompleted         Stage = "completed"
	StageFailed            Stage = "failed"
)

// Job represents one end-to-end video segmentation job.
type Job struct {
	ID            string    `json:"job_id"`
	UserID        string    `json:"user_id"`
	SourceKey     string    `json:"source_key"`
	Filename      string    `json:"filename"`
	ContentType   string    `json:"content_type"`
	FileSize      int64     `json:"file_size"`
	Title         string    `json:"title,omitempty"`
	Status        JobStatus `json:"status"`
	Stage         Stage     `json:"stage"`
	Progress      int       `json:"progress"` // percentage in [0,100], non-decreasing
	VideoDuration *float64  `json:"video_duration,omitempty"`
	OutputKeys    []string  `json:"output_keys"`
	ErrorMessage  *string   `json:"error_message,omitempty"`
	WebhookURL    *string   `json:"webhook_url,omitempty"`
	WebhookSecret *string   `json:"webhook_secret,omitempty"`
	CuttingJSON   []byte    `json:"-"` // raw cutting options as submitted
	TextJSON      []byte    `json:"-"` // raw text input as submitted
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Cutting policy types on the wire.
const (
	CutFixed  = "fixed"
	CutRandom = "random"
)

// CuttingOptions selects how segment time windows are computed.
// Type is "fixed" (DurationSeconds) or "random" (MinDuration..MaxDuration).
type CuttingOptions struct {
	Type            string `json:"type"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	MinDuration     int    `json:"min_duration,omitempty"`
	MaxDuration     int    `json:"max_duration,omitempty"`
}

// DefaultCuttingOptions is used when a job is submitted without cutting options.
func DefaultCuttingOptions() CuttingOptions {
	return CuttingOptions{Type: CutFixed, DurationSeconds: 30}
}

// TextStrategy selects how per-segment overlay strings are chosen.
type TextStrategy string

const (
	TextOneForAll    TextStrategy = "one_for_all"
	TextBaseVary     TextStrategy = "base_vary"
	TextUniqueForAll TextStrategy = "unique_for_all"
)

// TextInput carries the inputs for a text strategy.
type TextInput struct {
	Strategy    TextStrategy `json:"strategy"`
	BaseText    string       `json:"base_text,omitempty"`
	Context     string       `json:"context,omitempty"`
	UniqueTexts []string     `json:"unique_texts,omitempty"`
}

// ProgressUpdate is one progress event published to the job's topic and
// streamed to clients.
type ProgressUpdate struct {
	JobID              string    `json:"job_id"`
	Stage              Stage     `json:"stage"`
	Message            string    `json:"message"`
	CurrentSegment     *int      `json:"current_segment,omitempty"`
	TotalSegments      *int      `json:"total_segments,omitempty"`
	ProgressPercentage float64   `json:"progress_percentage"`
	Timestamp          time.Time `json:"timestamp"`
	OutputURLs         []string  `json:"output_urls,omitempty"`
	ErrorMessage       *string   `json:"error_message,omitempty"`
}

// UploadSession is a chunked upload in progress. The ID is the object store's
// multipart upload id; the session is destroyed at finalize or abort.
type UploadSession struct {
	UploadID      string    `json:"upload_id"`
	S3Key         string    `json:"s3_key"`
	JobID         string    `json:"job_id"`
	Filename      string    `json:"filename"`
	ContentType   string    `json:"content_type"`
	FileSize      int64     `json:"file_size"`
	ChunkSize     int64     `json:"chunk_size"`
	MaxConcurrent int       `json:"max_concurrent_uploads"`
	CreatedAt     time.Time `json:"created_at"`
}

// CompletedPart is one uploaded part reported back at finalize.
// Field names match the S3 CompleteMultipartUpload wire form.
type CompletedPart struct {
	PartNumber int    `json:"PartNumber"`
	ETag       string `json:"ETag"`
}

// User represents a user in the system.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     *string   `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// APIKey represents an API key for authentication.
type APIKey struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	KeyHash   string    `json:"-"`
	Status    string    `json:"status"` // active, disabled
	CreatedAt time.Time `json:"created_at"`
}

// InitiateUploadRequest starts a single-shot or multipart upload.
type InitiateUploadRequest struct {
	Filename    string `json:"filename" validate:"required"`
	ContentType string `json:"content_type" validate:"required"`
	FileSize    int64  `json:"file_size" validate:"required,gt=0"`
	IsMobile    bool   `json:"is_mobile,omitempty"`
}

// InitiateUploadResponse returns a presigned PUT URL for direct upload.
type InitiateUploadResponse struct {
	PresignedURL string `json:"presigned_url"`
	S3Key        string `json:"s3_key"`
	JobID        string `json:"job_id"`
}

// InitiateMultipartUploadResponse returns the session handle plus the chunk
// plan the client should follow.
type InitiateMultipartUploadResponse struct {
	UploadID             string `json:"upload_id"`
	S3Key                string `json:"s3_key"`
	JobID                string `json:"job_id"`
	ChunkSize            int64  `json:"chunk_size"`
	MaxConcurrentUploads int    `json:"max_concurrent_uploads"`
}

// UploadPartRequest asks for a presigned URL for one part.
type UploadPartRequest struct {
	UploadID    string `json:"upload_id" validate:"required"`
	S3Key       string `json:"s3_key" validate:"required"`
	PartNumber  int    `json:"part_number" validate:"required,gte=1"`
	ContentType string `json:"content_type,omitempty"`
}

// UploadPartResponse carries the presigned URL for one part.
type UploadPartResponse struct {
	PresignedURL string `json:"presigned_url"`
	PartNumber   int    `json:"part_number"`
}

// FinalizeMultipartRequest completes the object store multipart upload.
type FinalizeMultipartRequest struct {
	UploadID string          `json:"upload_id" validate:"required"`
	S3Key    string          `json:"s3_key" validate:"required"`
	Parts    []CompletedPart `json:"parts" validate:"required,min=1"`
}

// FinalizeMultipartResponse reports the durable blob location.
type FinalizeMultipartResponse struct {
	S3URL string `json:"s3_url"`
}

// CompleteUploadRequest finalizes an upload (multipart or single-shot) and
// creates the processing job.
type CompleteUploadRequest struct {
	UploadID       string          `json:"upload_id,omitempty"`
	S3Key          string          `json:"s3_key" validate:"required"`
	JobID          string          `json:"job_id" validate:"required"`
	Parts          []CompletedPart `json:"parts,omitempty"`
	Filename       string          `json:"filename,omitempty"`
	ContentType    string          `json:"content_type,omitempty"`
	FileSize       int64           `json:"file_size,omitempty"`
	Title          string          `json:"title,omitempty"`
	UserID         string          `json:"user_id,omitempty"`
	CuttingOptions *CuttingOptions `json:"cutting_options,omitempty"`
	TextStrategy   *TextStrategy   `json:"text_strategy,omitempty"`
	TextInput      *TextInput      `json:"text_input,omitempty"`
	Webhook        *WebhookConfig  `json:"webhook,omitempty"`
}

// WebhookConfig is an optional completion webhook for a job.
type WebhookConfig struct {
	URL    string  `json:"url"`
	Secret *string `json:"secret,omitempty"`
}

// AbortMultipartRequest cancels an in-flight upload session.
type AbortMultipartRequest struct {
	UploadID string `json:"upload_id" validate:"required"`
	S3Key    string `json:"s3_key" validate:"required"`
}

// JobCreatedResponse is returned after a job is created.
type JobCreatedResponse struct {
	JobID   string    `json:"job_id"`
	Status  JobStatus `json:"status"`
	Message string    `json:"message"`
}

// JobStatusResponse is the job status view. OutputURLs are short-lived signed
// read URLs regenerated at request time from the stored keys.
type JobStatusResponse struct {
	JobID         string    `json:"job_id"`
	Status        JobStatus `json:"status"`
	Progress      *int      `json:"progress,omitempty"`
	OutputURLs    []string  `json:"output_urls,omitempty"`
	ErrorMessage  *string   `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	VideoDuration *float64  `json:"video_duration,omitempty"`
}

// AnalyzeDurationRequest probes a source blob and previews its segmentation.
type AnalyzeDurationRequest struct {
	S3Key          string         `json:"s3_key" validate:"required"`
	CuttingOptions CuttingOptions `json:"cutting_options" validate:"required"`
}

// AnalyzeDurationResponse carries the probe result and the planned windows.
type AnalyzeDurationResponse struct {
	TotalDuration    float64   `json:"total_duration"`
	NumSegments      int       `json:"num_segments"`
	SegmentDurations []float64 `json:"segment_durations"`
}
