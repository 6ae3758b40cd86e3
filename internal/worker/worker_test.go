package worker

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/clipforge/clipforge/internal/clienterr"
	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/models"
)

// fakeJobStore is an in-memory JobStore recording every mutation.
type fakeJobStore struct {
	jobs map[string]*models.Job
}

func newFakeJobStore(jobs ...*models.Job) *fakeJobStore {
	s := &fakeJobStore{jobs: map[string]*models.Job{}}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *fakeJobStore) GetByID(ctx context.Context, jobID string) (*models.Job, error) {
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, clienterr.New(clienterr.KindJobNotFound, "job %s not found", jobID)
	}
	copied := *job
	return &copied, nil
}

func (s *fakeJobStore) Claim(ctx context.Context, jobID string) (bool, error) {
	job := s.jobs[jobID]
	if job.Status != models.StatusQueued {
		return false, nil
	}
	job.Status = models.StatusProcessing
	job.Stage = models.StageDownloading
	return true, nil
}

func (s *fakeJobStore) UpdateStage(ctx context.Context, jobID string, stage models.Stage, progress int) error {
	job := s.jobs[jobID]
	job.Stage = stage
	if progress > job.Progress {
		job.Progress = progress
	}
	return nil
}

func (s *fakeJobStore) SetVideoDuration(ctx context.Context, jobID string, duration float64) error {
	s.jobs[jobID].VideoDuration = &duration
	return nil
}

func (s *fakeJobStore) AppendOutputKey(ctx context.Context, jobID, key string) error {
	job := s.jobs[jobID]
	job.OutputKeys = append(job.OutputKeys, key)
	return nil
}

func (s *fakeJobStore) MarkCompleted(ctx context.Context, jobID string) error {
	job := s.jobs[jobID]
	job.Status = models.StatusCompleted
	job.Stage = models.StageCompleted
	job.Progress = 100
	return nil
}

func (s *fakeJobStore) MarkFailed(ctx context.Context, jobID, errorMessage string) error {
	job := s.jobs[jobID]
	job.Status = models.StatusFailed
	job.Stage = models.StageFailed
	job.ErrorMessage = &errorMessage
	return nil
}

// fakeObjectStore backs downloads with a scratch file and records uploads.
type fakeObjectStore struct {
	missing  bool
	uploaded []string
}

func (s *fakeObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	return !s.missing, nil
}

func (s *fakeObjectStore) DownloadToFile(ctx context.Context, key, localPath string) error {
	return os.WriteFile(localPath, []byte("video-bytes"), 0o644)
}

func (s *fakeObjectStore) UploadFile(ctx context.Context, key, localPath, contentType string) error {
	if _, err := os.Stat(localPath); err != nil {
		return err
	}
	s.uploaded = append(s.uploaded, key)
	return nil
}

func (s *fakeObjectStore) PresignGet(ctx context.Context, key string, exp time.Duration) (string, error) {
	return "https://signed.example/" + key, nil
}

// memPublisher collects every published progress event in order.
type memPublisher struct {
	updates []models.ProgressUpdate
}

func (p *memPublisher) Publish(ctx context.Context, update models.ProgressUpdate) error {
	p.updates = append(p.updates, update)
	return nil
}

func (p *memPublisher) Close() error { return nil }

// memBus hands every job the same collecting publisher.
type memBus struct {
	pub *memPublisher
}

func (b memBus) Publisher(jobID string) Publisher { return b.pub }

// fakeEvents records lifecycle events.
type fakeEvents struct {
	events []string
}

func (e *fakeEvents) PublishEvent(ctx context.Context, jobID, event, traceID string) error {
	e.events = append(e.events, event)
	return nil
}

// fakeProber returns fixed metadata.
type fakeProber struct {
	info media.VideoInfo
	err  error
}

func (p fakeProber) ProbeFile(ctx context.Context, path string) (media.VideoInfo, error) {
	return p.info, p.err
}

// fakeProcessor writes the output file, optionally failing the first
// `failures` calls with a transient error.
type fakeProcessor struct {
	failures int
	calls    int
}

func (p *fakeProcessor) ProcessSegment(ctx context.Context, req media.Request) (*media.Result, error) {
	p.calls++
	if p.calls <= p.failures {
		return nil, clienterr.New(clienterr.KindProcessorTransient, "ffmpeg exited 1")
	}
	if err := os.WriteFile(req.OutputPath, []byte("segment-bytes"), 0o644); err != nil {
		return nil, err
	}
	return &media.Result{LocalPath: req.OutputPath}, nil
}

func testConfig() *config.Config {
	cfg := config.Load()
	cfg.WorkerRetryBase = time.Millisecond
	cfg.SegmentTimeout = 5 * time.Second
	return cfg
}

func testJob(id string) *models.Job {
	return &models.Job{
		ID:          id,
		UserID:      "u1",
		SourceKey:   "uploads/" + id + "/v.mp4",
		Status:      models.StatusQueued,
		Stage:       models.StageQueued,
		CuttingJSON: []byte(`{"type":"fixed","duration_seconds":30}`),
		TextJSON:    []byte(`{"strategy":"one_for_all","base_text":"Hello"}`),
	}
}

func stages(updates []models.ProgressUpdate) []models.Stage {
	out := make([]models.Stage, len(updates))
	for i, u := range updates {
		out[i] = u.Stage
	}
	return out
}

func TestProcessJobFixedCutCompletes(t *testing.T) {
	jobs := newFakeJobStore(testJob("j1"))
	store := &fakeObjectStore{}
	pub := &memPublisher{}
	events := &fakeEvents{}
	processor := &fakeProcessor{}

	w := New(jobs, store, memBus{pub}, events, processor,
		fakeProber{info: media.VideoInfo{Width: 1080, Height: 1920, Duration: 95}}, nil, testConfig())

	if err := w.ProcessJob(context.Background(), "j1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job := jobs.jobs["j1"]
	if job.Status != models.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED (error: %v)", job.Status, job.ErrorMessage)
	}
	if job.Progress != 100 {
		t.Errorf("progress = %d, want 100", job.Progress)
	}

	// 95s at fixed 30s yields 4 windows; output count must match.
	if len(job.OutputKeys) != 4 {
		t.Fatalf("output keys = %v, want 4", job.OutputKeys)
	}
	if job.OutputKeys[0] != "processed/j1/segment_001.mp4" || job.OutputKeys[3] != "processed/j1/segment_004.mp4" {
		t.Errorf("unexpected output keys: %v", job.OutputKeys)
	}
	if len(store.uploaded) != 4 {
		t.Errorf("uploaded %d artifacts, want 4", len(store.uploaded))
	}
	if job.VideoDuration == nil || *job.VideoDuration != 95 {
		t.Errorf("duration not cached: %v", job.VideoDuration)
	}

	wantStages := []models.Stage{
		models.StageQueued,
		models.StageDownloading,
		models.StageProbing,
		models.StageGeneratingText,
		models.StageProcessingSegment,
		models.StageProcessingSegment,
		models.StageProcessingSegment,
		models.StageProcessingSegment,
		models.StageUploadingResults,
		models.StageCompleted,
	}
	got := stages(pub.updates)
	if len(got) != len(wantStages) {
		t.Fatalf("stages = %v, want %v", got, wantStages)
	}
	for i := range wantStages {
		if got[i] != wantStages[i] {
			t.Errorf("event %d stage = %s, want %s", i, got[i], wantStages[i])
		}
	}

	// Percentages never decrease, end at 100.
	last := -1.0
	for i, u := range pub.updates {
		if u.ProgressPercentage < last {
			t.Errorf("event %d percentage %v dropped below %v", i, u.ProgressPercentage, last)
		}
		last = u.ProgressPercentage
	}
	if last != 100 {
		t.Errorf("final percentage = %v, want 100", last)
	}

	// Per-segment events carry (current, total).
	seg := pub.updates[4]
	if seg.CurrentSegment == nil || *seg.CurrentSegment != 1 || seg.TotalSegments == nil || *seg.TotalSegments != 4 {
		t.Errorf("first segment event missing counters: %+v", seg)
	}

	// Completed event carries signed output URLs.
	completed := pub.updates[len(pub.updates)-1]
	if len(completed.OutputURLs) != 4 {
		t.Errorf("completed event has %d output urls, want 4", len(completed.OutputURLs))
	}

	if len(events.events) != 1 || events.events[0] != "job_completed" {
		t.Errorf("lifecycle events = %v, want [job_completed]", events.events)
	}
}

func TestProcessJobTooShortFails(t *testing.T) {
	jobs := newFakeJobStore(testJob("j2"))
	pub := &memPublisher{}
	events := &fakeEvents{}

	w := New(jobs, &fakeObjectStore{}, memBus{pub}, events, &fakeProcessor{},
		fakeProber{info: media.VideoInfo{Width: 1080, Height: 1920, Duration: 8}}, nil, testConfig())

	if err := w.ProcessJob(context.Background(), "j2"); err != nil {
		t.Fatalf("terminal failure should not bubble: %v", err)
	}

	job := jobs.jobs["j2"]
	if job.Status != models.StatusFailed {
		t.Fatalf("status = %s, want FAILED", job.Status)
	}
	if job.ErrorMessage == nil || !strings.Contains(*job.ErrorMessage, "too short") {
		t.Errorf("error message = %v, want mention of too short", job.ErrorMessage)
	}

	last := pub.updates[len(pub.updates)-1]
	if last.Stage != models.StageFailed {
		t.Errorf("last event stage = %s, want failed", last.Stage)
	}
	if last.ErrorMessage == nil || !strings.Contains(*last.ErrorMessage, "too short") {
		t.Errorf("failed event missing error message: %+v", last)
	}

	if len(events.events) != 1 || events.events[0] != "job_failed" {
		t.Errorf("lifecycle events = %v, want [job_failed]", events.events)
	}
}

func TestProcessJobMissingSourceFails(t *testing.T) {
	jobs := newFakeJobStore(testJob("j3"))
	pub := &memPublisher{}

	w := New(jobs, &fakeObjectStore{missing: true}, memBus{pub}, nil, &fakeProcessor{},
		fakeProber{info: media.VideoInfo{Width: 1080, Height: 1920, Duration: 95}}, nil, testConfig())

	if err := w.ProcessJob(context.Background(), "j3"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job := jobs.jobs["j3"]
	if job.Status != models.StatusFailed {
		t.Fatalf("status = %s, want FAILED", job.Status)
	}
	if job.ErrorMessage == nil || !strings.Contains(*job.ErrorMessage, "not found") {
		t.Errorf("error message = %v", job.ErrorMessage)
	}
}

func TestProcessJobRetriesTransientProcessorFailures(t *testing.T) {
	jobs := newFakeJobStore(testJob("j4"))
	pub := &memPublisher{}
	processor := &fakeProcessor{failures: 2}

	w := New(jobs, &fakeObjectStore{}, memBus{pub}, nil, processor,
		fakeProber{info: media.VideoInfo{Width: 1080, Height: 1920, Duration: 95}}, nil, testConfig())

	if err := w.ProcessJob(context.Background(), "j4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job := jobs.jobs["j4"]
	if job.Status != models.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED after retries (error: %v)", job.Status, job.ErrorMessage)
	}
	// Two failed attempts plus four successful segments.
	if processor.calls != 6 {
		t.Errorf("processor called %d times, want 6", processor.calls)
	}
}

func TestProcessJobExhaustedRetriesFails(t *testing.T) {
	jobs := newFakeJobStore(testJob("j5"))
	pub := &memPublisher{}
	processor := &fakeProcessor{failures: 1000}

	w := New(jobs, &fakeObjectStore{}, memBus{pub}, nil, processor,
		fakeProber{info: media.VideoInfo{Width: 1080, Height: 1920, Duration: 95}}, nil, testConfig())

	if err := w.ProcessJob(context.Background(), "j5"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job := jobs.jobs["j5"]
	if job.Status != models.StatusFailed {
		t.Fatalf("status = %s, want FAILED", job.Status)
	}
	if len(job.OutputKeys) != 0 {
		t.Errorf("no outputs expected, got %v", job.OutputKeys)
	}
}

func TestProcessJobTerminalStateIsIdempotent(t *testing.T) {
	done := testJob("j6")
	done.Status = models.StatusCompleted
	jobs := newFakeJobStore(done)
	pub := &memPublisher{}

	w := New(jobs, &fakeObjectStore{}, memBus{pub}, nil, &fakeProcessor{},
		fakeProber{info: media.VideoInfo{Width: 1080, Height: 1920, Duration: 95}}, nil, testConfig())

	if err := w.ProcessJob(context.Background(), "j6"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.updates) != 0 {
		t.Errorf("terminal job republished %d events", len(pub.updates))
	}
}

func TestProcessJobUnknownJobSkipsMessage(t *testing.T) {
	jobs := newFakeJobStore()
	w := New(jobs, &fakeObjectStore{}, memBus{&memPublisher{}}, nil, &fakeProcessor{},
		fakeProber{}, nil, testConfig())

	if err := w.ProcessJob(context.Background(), "ghost"); err != nil {
		t.Fatalf("missing job should be skipped, got %v", err)
	}
}
