package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clipforge/clipforge/internal/clienterr"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/migrations"
)

// connectTestDB connects to the database named by DATABASE_URL, or skips the
// test when it is not set.
func connectTestDB(t *testing.T) *DB {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := Connect(dbURL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := migrations.Run(db.DB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestJobLifecycle(t *testing.T) {
	db := connectTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	jobID := uuid.New().String()
	job := &models.Job{
		ID:          jobID,
		UserID:      "test-user",
		SourceKey:   "uploads/" + jobID + "/v.mp4",
		Filename:    "v.mp4",
		ContentType: "video/mp4",
		FileSize:    1024,
		Status:      models.StatusQueued,
		Stage:       models.StageQueued,
		OutputKeys:  []string{},
		CuttingJSON: []byte(`{"type":"fixed","duration_seconds":30}`),
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}

	// First claim wins, second is refused.
	claimed, err := repo.Claim(ctx, jobID)
	if err != nil || !claimed {
		t.Fatalf("claim: claimed=%v err=%v", claimed, err)
	}
	claimed, err = repo.Claim(ctx, jobID)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if claimed {
		t.Error("second claim should be refused")
	}

	if err := repo.SetVideoDuration(ctx, jobID, 95.0); err != nil {
		t.Fatalf("set duration: %v", err)
	}
	if err := repo.UpdateStage(ctx, jobID, models.StageProcessingSegment, 50); err != nil {
		t.Fatalf("update stage: %v", err)
	}
	// A lower percentage must not lower stored progress.
	if err := repo.UpdateStage(ctx, jobID, models.StageProcessingSegment, 30); err != nil {
		t.Fatalf("update stage: %v", err)
	}

	for i := 0; i < 2; i++ {
		key := "processed/" + jobID + "/segment_00" + string(rune('1'+i)) + ".mp4"
		if err := repo.AppendOutputKey(ctx, jobID, key); err != nil {
			t.Fatalf("append output: %v", err)
		}
	}

	if err := repo.MarkCompleted(ctx, jobID); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	got, err := repo.GetByID(ctx, jobID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.StatusCompleted || got.Progress != 100 {
		t.Errorf("job = (%s, %d), want (COMPLETED, 100)", got.Status, got.Progress)
	}
	if got.VideoDuration == nil || *got.VideoDuration != 95.0 {
		t.Errorf("duration = %v, want 95", got.VideoDuration)
	}
	if len(got.OutputKeys) != 2 {
		t.Errorf("output keys = %v, want 2", got.OutputKeys)
	}

	// Terminal states stay terminal.
	if err := repo.MarkFailed(ctx, jobID, "late failure"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	got, err = repo.GetByID(ctx, jobID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.StatusCompleted {
		t.Errorf("completed job overwritten to %s", got.Status)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	db := connectTestDB(t)
	repo := NewJobRepository(db)

	_, err := repo.GetByID(context.Background(), uuid.New().String())
	if !clienterr.Is(err, clienterr.KindJobNotFound) {
		t.Fatalf("got %v, want JobNotFound", err)
	}
}

func TestUploadSessionLifecycle(t *testing.T) {
	db := connectTestDB(t)
	repo := NewUploadSessionRepository(db)
	ctx := context.Background()

	session := &models.UploadSession{
		UploadID:      uuid.New().String(),
		S3Key:         "uploads/j/v.mp4",
		JobID:         uuid.New().String(),
		Filename:      "v.mp4",
		ContentType:   "video/mp4",
		FileSize:      250 << 20,
		ChunkSize:     15 << 20,
		MaxConcurrent: 6,
		CreatedAt:     time.Now().UTC(),
	}

	if err := repo.Create(ctx, session); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.Get(ctx, session.UploadID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ChunkSize != session.ChunkSize || got.MaxConcurrent != session.MaxConcurrent {
		t.Errorf("session round-trip mismatch: %+v", got)
	}

	if err := repo.Delete(ctx, session.UploadID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, session.UploadID); !clienterr.Is(err, clienterr.KindUploadSessionInvalid) {
		t.Fatalf("got %v, want UploadSessionInvalid after delete", err)
	}
}
