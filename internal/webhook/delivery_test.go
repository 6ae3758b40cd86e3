package webhook

import (
	"context"
	"crypto/hmac"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clipforge/clipforge/internal/clienterr"
	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/kafka"
	"github.com/clipforge/clipforge/internal/models"
)

type fakeJobs struct {
	jobs map[string]*models.Job
}

func (f *fakeJobs) GetByID(ctx context.Context, jobID string) (*models.Job, error) {
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, clienterr.New(clienterr.KindJobNotFound, "job %s not found", jobID)
	}
	return job, nil
}

func testDeliveryConfig() *config.Config {
	return &config.Config{
		WebhookMaxRetries:     3,
		WebhookRetryBaseDelay: time.Millisecond,
		WebhookRetryMaxDelay:  10 * time.Millisecond,
	}
}

func TestHandleEventDeliversSignedWebhook(t *testing.T) {
	secret := "hush"
	var gotSignature string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Clipforge-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	url := srv.URL
	jobs := &fakeJobs{jobs: map[string]*models.Job{
		"j1": {
			ID:            "j1",
			Status:        models.StatusCompleted,
			OutputKeys:    []string{"processed/j1/segment_001.mp4"},
			WebhookURL:    &url,
			WebhookSecret: &secret,
		},
	}}

	s := NewDeliveryService(jobs, testDeliveryConfig())
	if err := s.HandleEvent(context.Background(), &kafka.EventMessage{JobID: "j1", Event: kafka.EventJobCompleted}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !hmac.Equal([]byte(gotSignature), []byte(Sign(secret, gotBody))) {
		t.Errorf("signature %q does not verify against delivered body", gotSignature)
	}
}

func TestHandleEventRetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	url := srv.URL
	jobs := &fakeJobs{jobs: map[string]*models.Job{
		"j1": {ID: "j1", Status: models.StatusFailed, WebhookURL: &url},
	}}

	s := NewDeliveryService(jobs, testDeliveryConfig())
	if err := s.HandleEvent(context.Background(), &kafka.EventMessage{JobID: "j1", Event: kafka.EventJobFailed}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestHandleEventStopsOnClientRejection(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	url := srv.URL
	jobs := &fakeJobs{jobs: map[string]*models.Job{
		"j1": {ID: "j1", Status: models.StatusCompleted, WebhookURL: &url},
	}}

	s := NewDeliveryService(jobs, testDeliveryConfig())
	if err := s.HandleEvent(context.Background(), &kafka.EventMessage{JobID: "j1", Event: kafka.EventJobCompleted}); err == nil {
		t.Fatal("expected permanent delivery error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on 4xx)", attempts)
	}
}

func TestHandleEventNoWebhookConfigured(t *testing.T) {
	jobs := &fakeJobs{jobs: map[string]*models.Job{
		"j1": {ID: "j1", Status: models.StatusCompleted},
	}}

	s := NewDeliveryService(jobs, testDeliveryConfig())
	if err := s.HandleEvent(context.Background(), &kafka.EventMessage{JobID: "j1", Event: kafka.EventJobCompleted}); err != nil {
		t.Fatalf("jobs without webhooks must be acked: %v", err)
	}
}
