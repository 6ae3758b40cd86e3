package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// Producer wraps a Kafka producer bound to one topic.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		Async:                  false,
	}

	log.Info().
		Strs("brokers", brokers).
		Str("topic", topic).
		Msg("Kafka producer initialized")

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishJob publishes a job message for the segment worker.
func (p *Producer) PublishJob(ctx context.Context, jobID, traceID string) error {
	msg := JobMessage{
		JobID:   jobID,
		TraceID: traceID,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal job message: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(jobID),
		Value: data,
	}); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	log.Info().
		Str("job_id", jobID).
		Str("topic", p.topic).
		Msg("Job message published to Kafka")

	return nil
}

// PublishEvent publishes a job lifecycle event (events topic).
func (p *Producer) PublishEvent(ctx context.Context, jobID, event, traceID string) error {
	msg := EventMessage{
		JobID:   jobID,
		Event:   event,
		TraceID: traceID,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal event message: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(jobID),
		Value: data,
	}); err != nil {
		return fmt.Errorf("failed to write event message to kafka: %w", err)
	}

	log.Info().
		Str("job_id", jobID).
		Str("event", event).
		Str("topic", p.topic).
		Msg("Job event published to Kafka")

	return nil
}

// Close closes the producer
func (p *Producer) Close() error {
	log.Info().Str("topic", p.topic).Msg("Closing Kafka producer")
	return p.writer.Close()
}
