package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/kafka"
	"github.com/clipforge/clipforge/internal/models"
)

// jobGetter is the subset of job DB operations the delivery service uses.
type jobGetter interface {
	GetByID(ctx context.Context, jobID string) (*models.Job, error)
}

// DeliveryService delivers job lifecycle webhooks with retries. It consumes
// events from the events topic (kafka.EventHandler).
type DeliveryService struct {
	jobs       jobGetter
	httpClient *http.Client
	config     *config.Config
}

// NewDeliveryService creates a new webhook delivery service
func NewDeliveryService(jobs jobGetter, cfg *config.Config) *DeliveryService {
	return &DeliveryService{
		jobs: jobs,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		config: cfg,
	}
}

// Payload is the webhook request body.
type Payload struct {
	JobID        string           `json:"job_id"`
	Event        string           `json:"event"`
	Status       models.JobStatus `json:"status"`
	OutputKeys   []string         `json:"output_keys,omitempty"`
	ErrorMessage *string          `json:"error_message,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}

// HandleEvent implements kafka.EventHandler: it delivers the webhook for a
// finished job, retrying with exponential backoff within the configured
// budget.
func (s *DeliveryService) HandleEvent(ctx context.Context, msg *kafka.EventMessage) error {
	job, err := s.jobs.GetByID(ctx, msg.JobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	if job.WebhookURL == nil || *job.WebhookURL == "" {
		log.Debug().Str("job_id", job.ID).Msg("No webhook configured for job")
		return nil
	}

	payload := Payload{
		JobID:        job.ID,
		Event:        msg.Event,
		Status:       job.Status,
		OutputKeys:   job.OutputKeys,
		ErrorMessage: job.ErrorMessage,
		Timestamp:    time.Now().UTC(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.config.WebhookRetryBaseDelay
	bo.MaxInterval = s.config.WebhookRetryMaxDelay
	bo.MaxElapsedTime = 0

	attempt := 0
	operation := func() error {
		attempt++
		err := s.deliver(ctx, *job.WebhookURL, job.WebhookSecret, body)
		if err != nil {
			log.Warn().
				Err(err).
				Str("job_id", job.ID).
				Str("url", *job.WebhookURL).
				Int("attempt", attempt).
				Msg("Webhook delivery failed")
		}
		return err
	}

	if err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(s.config.WebhookMaxRetries)), ctx)); err != nil {
		return fmt.Errorf("webhook delivery exhausted retries: %w", err)
	}

	log.Info().
		Str("job_id", job.ID).
		Str("event", msg.Event).
		Int("attempts", attempt).
		Msg("Webhook delivered")

	return nil
}

// deliver performs one webhook POST. A non-retryable client rejection is
// returned as a permanent error.
func (s *DeliveryService) deliver(ctx context.Context, url string, secret *string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to build webhook request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != nil && *secret != "" {
		req.Header.Set("X-Clipforge-Signature", Sign(*secret, body))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	default:
		return backoff.Permanent(fmt.Errorf("webhook endpoint rejected delivery with %d", resp.StatusCode))
	}
}

// Sign computes the hex HMAC-SHA256 signature of the payload.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
