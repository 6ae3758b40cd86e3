package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/clipforge/clipforge/internal/auth"
	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/database"
	"github.com/clipforge/clipforge/internal/handlers"
	"github.com/clipforge/clipforge/internal/kafka"
	"github.com/clipforge/clipforge/internal/planner"
	"github.com/clipforge/clipforge/internal/storage"
	"github.com/clipforge/clipforge/internal/upload"
	"github.com/clipforge/clipforge/migrations"
)

// progressBus adapts the Kafka progress bus to the handlers subscription
// interface.
type progressBus struct {
	bus *kafka.ProgressBus
}

func (b progressBus) Subscribe(ctx context.Context, jobID string) (handlers.ProgressStream, error) {
	return b.bus.Subscribe(ctx, jobID)
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

	log.Info().Msg("Starting Clipforge API server")

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := migrations.Run(db.DB); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

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

	// Initialize Kafka producer for the jobs topic
	jobProducer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicJobs)
	defer jobProducer.Close()

	bus := kafka.NewProgressBus(cfg.KafkaBrokers, cfg.ProgressTopicPrefix)

	// Repositories and services
	jobRepo := database.NewJobRepository(db)
	sessionRepo := database.NewUploadSessionRepository(db)
	userRepo := database.NewUserRepository(db)
	apiKeyRepo := database.NewAPIKeyRepository(db)

	prober := planner.FFProbe{}
	coordinator := upload.NewCoordinator(storageClient, sessionRepo, jobRepo, jobProducer, prober, cfg)
	handler := handlers.NewHandler(coordinator, jobRepo, storageClient, progressBus{bus}, prober, userRepo, apiKeyRepo, cfg)
	authService := auth.NewService(db)

	// Setup HTTP router
	router := mux.NewRouter()

	// Health check
	router.HandleFunc("/health", healthHandler(db)).Methods("GET")
	router.HandleFunc("/api/users", handler.CreateUser).Methods("POST")

	apiRouter := router.PathPrefix("/api").Subrouter()
	if cfg.AuthRequired {
		apiRouter.Use(authService.Middleware)
	}

	apiRouter.HandleFunc("/upload/initiate", handler.InitiateUpload).Methods("POST")
	apiRouter.HandleFunc("/upload/initiate-multipart", handler.InitiateMultipartUpload).Methods("POST")
	apiRouter.HandleFunc("/upload/part", handler.UploadPart).Methods("POST")
	apiRouter.HandleFunc("/upload/finalize-multipart", handler.FinalizeMultipartUpload).Methods("POST")
	apiRouter.HandleFunc("/upload/complete-multipart", handler.CompleteMultipartUpload).Methods("POST")
	apiRouter.HandleFunc("/upload/abort-multipart", handler.AbortMultipartUpload).Methods("POST")
	apiRouter.HandleFunc("/upload/complete", handler.CompleteUpload).Methods("POST")
	apiRouter.HandleFunc("/jobs/{job_id}/status", handler.GetJobStatus).Methods("GET")
	apiRouter.HandleFunc("/video/analyze-duration", handler.AnalyzeDuration).Methods("POST")
	apiRouter.HandleFunc("/job-progress/{job_id}/stream", handler.StreamProgress).Methods("GET")
	apiRouter.HandleFunc("/job-progress/{job_id}/ws", handler.StreamProgressWS).Methods("GET")

	// Setup server. WriteTimeout is 0 (no write deadline) because SSE streams
	// are long-lived responses.
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func healthHandler(db *database.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if err := db.Health(); err != nil {
			log.Error().Err(err).Msg("Database health check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"status":"unhealthy","error":"database"}`)
			return
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ok"}`)
	}
}
