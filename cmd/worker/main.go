package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/database"
	"github.com/clipforge/clipforge/internal/kafka"
	"github.com/clipforge/clipforge/internal/llm"
	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/storage"
	"github.com/clipforge/clipforge/internal/worker"
)

// progressBus adapts the Kafka progress bus to the worker publisher
// interface.
type progressBus struct {
	bus *kafka.ProgressBus
}

func (b progressBus) Publisher(jobID string) worker.Publisher {
	return b.bus.Publisher(jobID)
}

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Msg("Starting Clipforge worker")

	// Initialize database connection
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Initialize S3 storage client
	storageClient, err := storage.NewClient(
		cfg.S3Endpoint,
		cfg.S3Region,
		cfg.S3Bucket,
		cfg.S3AccessKey,
		cfg.S3SecretKey,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage client")
	}

	// Initialize Gemini LLM client for text variations
	llmClient := llm.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel)

	// Initialize Kafka producer for lifecycle events
	eventProducer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicEvents)
	defer eventProducer.Close()

	bus := kafka.NewProgressBus(cfg.KafkaBrokers, cfg.ProgressTopicPrefix)

	// Media processor variant is a deployment choice
	processor, err := media.FromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize media processor")
	}

	jobRepo := database.NewJobRepository(db)
	segmentWorker := worker.New(
		jobRepo,
		storageClient,
		progressBus{bus},
		eventProducer,
		processor,
		media.Prober{},
		llmClient,
		cfg,
	)

	// Initialize Kafka consumer for jobs
	consumer := kafka.NewJobConsumer(
		cfg.KafkaBrokers,
		cfg.KafkaTopicJobs,
		cfg.KafkaConsumerGroup,
		segmentWorker,
	)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start Kafka consumer in goroutine
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := consumer.Start(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("Kafka consumer error")
		}
	}()

	log.Info().Msg("Worker started, consuming job messages...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker...")

	cancel()

	// Wait for consumer to finish with timeout
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("Consumer shutdown complete")
	case <-time.After(30 * time.Second):
		log.Warn().Msg("Consumer shutdown timeout")
	}

	log.Info().Msg("Worker exited")
}
