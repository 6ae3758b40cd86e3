package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// JobHandler processes dequeued job messages.
type JobHandler interface {
	HandleJob(ctx context.Context, msg *JobMessage) error
}

// EventHandler processes job lifecycle events.
type EventHandler interface {
	HandleEvent(ctx context.Context, msg *EventMessage) error
}

// Consumer wraps a Kafka consumer group reader with a retry-then-skip
// processing loop.
type Consumer struct {
	reader  *kafka.Reader
	process func(ctx context.Context, msg kafka.Message) error
}

// NewJobConsumer creates a consumer over the jobs topic.
func NewJobConsumer(brokers []string, topic, groupID string, handler JobHandler) *Consumer {
	return newConsumer(brokers, topic, groupID, func(ctx context.Context, msg kafka.Message) error {
		var jobMsg JobMessage
		if err := json.Unmarshal(msg.Value, &jobMsg); err != nil {
			return fmt.Errorf("failed to unmarshal job message: %w", err)
		}
		if err := handler.HandleJob(ctx, &jobMsg); err != nil {
			return fmt.Errorf("handler error: %w", err)
		}
		log.Info().Str("job_id", jobMsg.JobID).Msg("Job message processed")
		return nil
	})
}

// NewEventConsumer creates a consumer over the events topic.
func NewEventConsumer(brokers []string, topic, groupID string, handler EventHandler) *Consumer {
	return newConsumer(brokers, topic, groupID, func(ctx context.Context, msg kafka.Message) error {
		var eventMsg EventMessage
		if err := json.Unmarshal(msg.Value, &eventMsg); err != nil {
			return fmt.Errorf("failed to unmarshal event message: %w", err)
		}
		if err := handler.HandleEvent(ctx, &eventMsg); err != nil {
			return fmt.Errorf("handler error: %w", err)
		}
		log.Info().Str("job_id", eventMsg.JobID).Str("event", eventMsg.Event).Msg("Event message processed")
		return nil
	})
}

func newConsumer(brokers []string, topic, groupID string, process func(ctx context.Context, msg kafka.Message) error) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: 0,    // manual commits
		// Start from the earliest message when no committed offset exists so
		// messages published before the first consumer startup are not lost.
		StartOffset: kafka.FirstOffset,
	})

	log.Info().
		Strs("brokers", brokers).
		Str("topic", topic).
		Str("group_id", groupID).
		Msg("Kafka consumer initialized")

	return &Consumer{reader: reader, process: process}
}

// Start consumes messages until the context is cancelled. Failed messages are
// retried with exponential backoff; after the retry budget is exhausted the
// message is committed and skipped so one bad message cannot block the topic.
func (c *Consumer) Start(ctx context.Context) error {
	log.Info().Msg("Starting Kafka consumer")

	const (
		maxBackoffShift = 10
		baseDelay       = 1 * time.Second
		maxDelay        = 5 * time.Minute
		maxAttempts     = 50
	)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Consumer context cancelled, stopping")
			return ctx.Err()
		default:
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Error().Err(err).Msg("Failed to fetch message")
				continue
			}

			var lastErr error
			for attempt := 0; attempt < maxAttempts; attempt++ {
				if err := c.process(ctx, msg); err != nil {
					lastErr = err
					log.Error().
						Err(err).
						Str("topic", msg.Topic).
						Int("partition", msg.Partition).
						Int64("offset", msg.Offset).
						Int("attempt", attempt+1).
						Msg("Failed to process message - will retry")

					shift := attempt
					if shift > maxBackoffShift {
						shift = maxBackoffShift
					}
					delay := baseDelay * time.Duration(1<<uint(shift))
					if delay > maxDelay {
						delay = maxDelay
					}

					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(delay):
						continue
					}
				}

				lastErr = nil
				if err := c.reader.CommitMessages(ctx, msg); err != nil {
					// Message was processed; it may be redelivered on restart,
					// handlers must be idempotent.
					log.Error().Err(err).Msg("Failed to commit message")
				}
				break
			}

			if lastErr != nil {
				log.Error().
					Err(lastErr).
					Str("topic", msg.Topic).
					Int("partition", msg.Partition).
					Int64("offset", msg.Offset).
					Msg("Message processing failed after all retries, skipping")

				if err := c.reader.CommitMessages(ctx, msg); err != nil {
					log.Error().Err(err).Msg("Failed to commit skipped message")
				}
			}
		}
	}
}

// Close closes the consumer
func (c *Consumer) Close() error {
	log.Info().Msg("Closing Kafka consumer")
	return c.reader.Close()
}
