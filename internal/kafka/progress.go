package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/clipforge/clipforge/internal/models"
)

// ProgressBus distributes per-job progress events over one Kafka topic per
// job. Topics are auto-created with a single partition, so subscribers see
// events in publication order. The bus keeps no history: a subscriber joining
// mid-run only sees events published after subscription.
type ProgressBus struct {
	brokers []string
	prefix  string
}

// NewProgressBus creates a progress bus over the given brokers. prefix is the
// topic name prefix, typically "job_progress_".
func NewProgressBus(brokers []string, prefix string) *ProgressBus {
	return &ProgressBus{brokers: brokers, prefix: prefix}
}

// Topic returns the topic name for a job.
func (b *ProgressBus) Topic(jobID string) string {
	return b.prefix + jobID
}

// Publisher opens a publisher for one job's topic. The caller owns the
// returned publisher and must Close it when the job finishes.
func (b *ProgressBus) Publisher(jobID string) *ProgressPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(b.brokers...),
		Topic:                  b.Topic(jobID),
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		Async:                  false,
	}
	return &ProgressPublisher{writer: writer, jobID: jobID}
}

// ProgressPublisher publishes progress events for a single job.
type ProgressPublisher struct {
	writer *kafka.Writer
	jobID  string
}

// Publish sends one progress event to the job's topic.
func (p *ProgressPublisher) Publish(ctx context.Context, update models.ProgressUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal progress update: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(p.jobID),
		Value: data,
	}); err != nil {
		return fmt.Errorf("failed to publish progress update: %w", err)
	}

	log.Debug().
		Str("job_id", p.jobID).
		Str("stage", string(update.Stage)).
		Float64("progress", update.ProgressPercentage).
		Msg("Progress update published")

	return nil
}

// Close closes the publisher.
func (p *ProgressPublisher) Close() error {
	return p.writer.Close()
}

// Subscribe opens a subscription to a job's topic starting at the last
// offset, so only events published after subscription are delivered. Each
// subscription is independent: every subscriber sees every subsequent event.
func (b *ProgressBus) Subscribe(ctx context.Context, jobID string) (*ProgressSubscription, error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.brokers,
		Topic:       b.Topic(jobID),
		MinBytes:    1,
		MaxBytes:    1e6,
		StartOffset: kafka.LastOffset,
	})

	log.Debug().
		Str("job_id", jobID).
		Str("topic", b.Topic(jobID)).
		Msg("Progress subscription opened")

	return &ProgressSubscription{reader: reader}, nil
}

// ProgressSubscription is one subscriber's ordered view of a job's events.
type ProgressSubscription struct {
	reader *kafka.Reader
}

// Next blocks until the next progress event arrives or ctx is cancelled.
func (s *ProgressSubscription) Next(ctx context.Context) (*models.ProgressUpdate, error) {
	msg, err := s.reader.ReadMessage(ctx)
	if err != nil {
		return nil, err
	}

	var update models.ProgressUpdate
	if err := json.Unmarshal(msg.Value, &update); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress update: %w", err)
	}
	return &update, nil
}

// Close releases the subscription.
func (s *ProgressSubscription) Close() error {
	return s.reader.Close()
}
