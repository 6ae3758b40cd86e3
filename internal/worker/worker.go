package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/clipforge/clipforge/internal/clienterr"
	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/kafka"
	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/overlay"
	"github.com/clipforge/clipforge/internal/planner"
	"github.com/clipforge/clipforge/internal/storage"
)

// Progress anchors for each stage (percent).
const (
	pctQueued         = 0
	pctDownloading    = 2
	pctProbing        = 5
	pctGeneratingText = 10
	pctUploading      = 95
	pctCompleted      = 100
)

// Worker executes complete segmentation jobs: fetch, plan, resolve text,
// render each segment, upload, mark done. One worker task owns a job for its
// whole lifetime, so all progress events and record mutations are serialized.
type Worker struct {
	jobs      JobStore
	store     ObjectStore
	bus       Bus
	events    EventPublisher
	processor media.Processor
	prober    FileProber
	generator overlay.VariationGenerator
	style     overlay.Style
	cfg       *config.Config

	// scratchRoot is where per-job scratch directories are created.
	// Empty means the OS temp dir.
	scratchRoot string
}

// New creates a segment worker.
func New(
	jobs JobStore,
	store ObjectStore,
	bus Bus,
	events EventPublisher,
	processor media.Processor,
	prober FileProber,
	generator overlay.VariationGenerator,
	cfg *config.Config,
) *Worker {
	return &Worker{
		jobs:      jobs,
		store:     store,
		bus:       bus,
		events:    events,
		processor: processor,
		prober:    prober,
		generator: generator,
		style:     overlay.StyleFromConfig(cfg),
		cfg:       cfg,
	}
}

// HandleJob implements kafka.JobHandler.
func (w *Worker) HandleJob(ctx context.Context, msg *kafka.JobMessage) error {
	return w.ProcessJob(ctx, msg.JobID)
}

// ProcessJob runs one job end to end. Terminal failures are recorded on the
// job and reported on the progress bus; only infrastructure errors (job store
// unreachable) are returned so the queue can redeliver.
func (w *Worker) ProcessJob(ctx context.Context, jobID string) error {
	log.Info().Str("job_id", jobID).Msg("Starting job processing")

	job, err := w.jobs.GetByID(ctx, jobID)
	if err != nil {
		if clienterr.Is(err, clienterr.KindJobNotFound) {
			log.Warn().Str("job_id", jobID).Msg("Job not found, skipping message")
			return nil
		}
		return fmt.Errorf("failed to get job: %w", err)
	}

	// Idempotent for duplicate queue deliveries.
	if job.Status == models.StatusCompleted || job.Status == models.StatusFailed {
		log.Warn().
			Str("job_id", jobID).
			Str("status", string(job.Status)).
			Msg("Job already in terminal state")
		return nil
	}

	pub := w.bus.Publisher(jobID)
	defer pub.Close()

	w.publish(ctx, pub, job, models.StageQueued, pctQueued, "Job received, initializing...", nil, nil)

	if job.Status == models.StatusQueued {
		claimed, err := w.jobs.Claim(ctx, jobID)
		if err != nil {
			return fmt.Errorf("failed to claim job: %w", err)
		}
		if !claimed {
			log.Warn().Str("job_id", jobID).Msg("Job claimed by another worker, skipping")
			return nil
		}
	} else {
		// A previous worker crashed mid-run; re-processing is harmless since
		// segment outputs are written to deterministic keys.
		log.Info().Str("job_id", jobID).Msg("Job was processing, restarting pipeline")
	}

	if err := w.runPipeline(ctx, job, pub); err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("Job processing failed")

		errMsg := err.Error()
		if markErr := w.jobs.MarkFailed(ctx, jobID, errMsg); markErr != nil {
			log.Error().Err(markErr).Str("job_id", jobID).Msg("Failed to mark job failed")
		}

		update := models.ProgressUpdate{
			JobID:              jobID,
			Stage:              models.StageFailed,
			Message:            "Video processing failed",
			ProgressPercentage: 0,
			Timestamp:          time.Now().UTC(),
			ErrorMessage:       &errMsg,
		}
		if pubErr := pub.Publish(ctx, update); pubErr != nil {
			log.Error().Err(pubErr).Str("job_id", jobID).Msg("Failed to publish failed event")
		}

		w.publishLifecycleEvent(ctx, jobID, kafka.EventJobFailed)
		return nil
	}

	w.publishLifecycleEvent(ctx, jobID, kafka.EventJobCompleted)

	log.Info().Str("job_id", jobID).Msg("Job processing completed successfully")
	return nil
}

// runPipeline executes the full processing pipeline for a claimed job.
func (w *Worker) runPipeline(ctx context.Context, job *models.Job, pub Publisher) error {
	jobID := job.ID

	// Step 1: fetch the source into an isolated scratch directory.
	w.publish(ctx, pub, job, models.StageDownloading, pctDownloading, "Downloading video...", nil, nil)

	scratch, err := os.MkdirTemp(w.scratchRoot, "clipforge_"+jobID+"_")
	if err != nil {
		return fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	exists, err := w.store.Exists(ctx, job.SourceKey)
	if err != nil {
		return fmt.Errorf("failed to check source: %w", err)
	}
	if !exists {
		return clienterr.New(clienterr.KindSourceMissing, "source blob %s not found", job.SourceKey)
	}

	inputPath := filepath.Join(scratch, "input_"+filepath.Base(job.SourceKey))
	if err := w.retryStoreOp(ctx, func() error {
		return w.store.DownloadToFile(ctx, job.SourceKey, inputPath)
	}); err != nil {
		return fmt.Errorf("failed to download source: %w", err)
	}

	// Step 2: validate and probe.
	w.publish(ctx, pub, job, models.StageProbing, pctProbing, "Analyzing video...", nil, nil)

	info, err := w.prober.ProbeFile(ctx, inputPath)
	if err != nil {
		return err
	}
	if err := w.jobs.SetVideoDuration(ctx, jobID, info.Duration); err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("Failed to cache video duration")
	}

	// Step 3: plan the windows.
	cutting := models.DefaultCuttingOptions()
	if len(job.CuttingJSON) > 0 {
		if err := json.Unmarshal(job.CuttingJSON, &cutting); err != nil {
			return clienterr.Wrap(clienterr.KindBadPolicy, err, "malformed cutting options")
		}
	}

	rng := rand.New(rand.NewSource(planner.SeedFromJobID(jobID)))
	total, windows, err := planner.CalculateSegments(info.Duration, cutting, rng)
	if err != nil {
		return err
	}

	// Step 4: resolve overlay texts.
	w.publish(ctx, pub, job, models.StageGeneratingText, pctGeneratingText, "Generating text overlays...", nil, nil)

	var textInput *models.TextInput
	if len(job.TextJSON) > 0 {
		textInput = &models.TextInput{}
		if err := json.Unmarshal(job.TextJSON, textInput); err != nil {
			return clienterr.Wrap(clienterr.KindBadPolicy, err, "malformed text input")
		}
	}
	texts := overlay.ResolveTexts(ctx, textInput, total, w.generator)

	// Step 5: render, upload and report each segment.
	frame := overlay.VideoInfo{Width: info.Width, Height: info.Height}
	for i, window := range windows {
		outputKey, err := w.processSegment(ctx, job, scratch, inputPath, window, texts[i], frame, i)
		if err != nil {
			return fmt.Errorf("segment %d/%d: %w", i+1, total, err)
		}

		if err := w.jobs.AppendOutputKey(ctx, jobID, outputKey); err != nil {
			return fmt.Errorf("failed to record output key: %w", err)
		}

		current := i + 1
		pct := pctGeneratingText + int(float64(current)/float64(total)*80)
		w.publish(ctx, pub, job, models.StageProcessingSegment, pct,
			fmt.Sprintf("Processed segment %d of %d", current, total), &current, &total)
	}

	// Step 6: finish.
	w.publish(ctx, pub, job, models.StageUploadingResults, pctUploading, "Finalizing results...", nil, nil)

	if err := w.jobs.MarkCompleted(ctx, jobID); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}

	completed := models.ProgressUpdate{
		JobID:              jobID,
		Stage:              models.StageCompleted,
		Message:            "Video processing completed successfully",
		ProgressPercentage: pctCompleted,
		Timestamp:          time.Now().UTC(),
		OutputURLs:         w.signOutputs(ctx, jobID, total),
	}
	if err := pub.Publish(ctx, completed); err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to publish completed event")
	}

	return nil
}

// processSegment renders one window with its overlay and uploads the artifact.
// Transient processor and store failures are retried within the configured
// budget; a retry exhaustion fails the job.
func (w *Worker) processSegment(
	ctx context.Context,
	job *models.Job,
	scratch, inputPath string,
	window planner.Window,
	text string,
	frame overlay.VideoInfo,
	index int,
) (string, error) {
	outputKey := storage.OutputKey(job.ID, index)
	req := media.Request{
		JobID:      job.ID,
		InputPath:  inputPath,
		SourceKey:  job.SourceKey,
		OutputPath: filepath.Join(scratch, fmt.Sprintf("segment_%03d.mp4", index+1)),
		OutputKey:  outputKey,
		Start:      window.Start,
		End:        window.End,
		Filter:     w.style.Filter(text, frame),
	}

	var result *media.Result
	err := w.retryTransient(ctx, func() error {
		segCtx, cancel := context.WithTimeout(ctx, w.cfg.SegmentTimeout)
		defer cancel()

		var procErr error
		result, procErr = w.processor.ProcessSegment(segCtx, req)
		return procErr
	})
	if err != nil {
		return "", err
	}

	if result.StoredKey != "" {
		// Remote processors write to the object store themselves.
		return result.StoredKey, nil
	}

	if err := w.retryStoreOp(ctx, func() error {
		return w.store.UploadFile(ctx, outputKey, result.LocalPath, "video/mp4")
	}); err != nil {
		return "", fmt.Errorf("failed to upload segment: %w", err)
	}

	return outputKey, nil
}

// publish emits a progress event and mirrors stage and percentage onto the
// job record. Publish failures are logged, not fatal: the job record remains
// the source of truth for reconnecting clients.
func (w *Worker) publish(
	ctx context.Context,
	pub Publisher,
	job *models.Job,
	stage models.Stage,
	pct int,
	message string,
	current, total *int,
) {
	update := models.ProgressUpdate{
		JobID:              job.ID,
		Stage:              stage,
		Message:            message,
		CurrentSegment:     current,
		TotalSegments:      total,
		ProgressPercentage: float64(pct),
		Timestamp:          time.Now().UTC(),
	}
	if err := pub.Publish(ctx, update); err != nil {
		log.Error().
			Err(err).
			Str("job_id", job.ID).
			Str("stage", string(stage)).
			Msg("Failed to publish progress update")
	}

	if stage == models.StageQueued {
		// The record is already QUEUED at 0; nothing to mirror.
		return
	}
	if err := w.jobs.UpdateStage(ctx, job.ID, stage, pct); err != nil {
		log.Warn().
			Err(err).
			Str("job_id", job.ID).
			Str("stage", string(stage)).
			Msg("Failed to update job stage")
	}
}

// signOutputs regenerates short-lived read URLs for the completed event.
func (w *Worker) signOutputs(ctx context.Context, jobID string, total int) []string {
	urls := make([]string, 0, total)
	for i := 0; i < total; i++ {
		url, err := w.store.PresignGet(ctx, storage.OutputKey(jobID, i), w.cfg.OutputURLTTL)
		if err != nil {
			log.Warn().Err(err).Str("job_id", jobID).Int("segment", i+1).Msg("Failed to presign output")
			continue
		}
		urls = append(urls, url)
	}
	return urls
}

func (w *Worker) publishLifecycleEvent(ctx context.Context, jobID, event string) {
	if w.events == nil {
		return
	}
	if err := w.events.PublishEvent(ctx, jobID, event, ""); err != nil {
		log.Error().Err(err).Str("job_id", jobID).Str("event", event).Msg("Failed to publish lifecycle event")
	}
}

// retryTransient retries op for tagged transient errors; anything else stops
// immediately.
func (w *Worker) retryTransient(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if clienterr.IsTransient(err) {
			log.Warn().Err(err).Msg("Transient failure, will retry")
			return err
		}
		return backoff.Permanent(err)
	}, w.newBackOff(ctx))
}

// retryStoreOp retries an object store operation; store failures are treated
// as transient by default.
func (w *Worker) retryStoreOp(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		if err := op(); err != nil {
			log.Warn().Err(err).Msg("Object store operation failed, will retry")
			return err
		}
		return nil
	}, w.newBackOff(ctx))
}

func (w *Worker) newBackOff(ctx context.Context) backoff.BackOffContext {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = w.cfg.WorkerRetryBase
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(w.cfg.WorkerMaxRetries)), ctx)
}
