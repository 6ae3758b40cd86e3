package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	// Server
	HTTPAddr     string
	LogLevel     string
	AuthRequired bool

	// Database
	DatabaseURL string

	// Kafka
	KafkaBrokers        []string
	KafkaConsumerGroup  string
	KafkaTopicJobs      string
	KafkaTopicEvents    string
	ProgressTopicPrefix string

	// S3/Storage
	S3Endpoint   string
	S3Region     string
	S3Bucket     string
	S3AccessKey  string
	S3SecretKey  string
	S3UseSSL     bool
	PresignTTL   time.Duration // signed URL lifetime for uploads, probes and downloads
	OutputURLTTL time.Duration // signed URL lifetime for status-endpoint output links

	// Gemini API
	GeminiAPIKey string
	GeminiModel  string

	// Processor selection: local, remote_sync, remote_async
	ProcessorMode      string
	RemoteProcessorURL string

	// Processing
	SegmentTimeout      time.Duration // per-segment media processor timeout
	ResourceConstrained bool          // constrained deployments get the shorter timeout
	WorkerMaxRetries    int
	WorkerRetryBase     time.Duration

	// Overlay rendering. Reference rectangle is 212x420 with 8px padding on a
	// 1080x1920 frame; scaled to the actual frame at render time.
	FontSizeDivisor int
	MinFontSize     int
	MaxFontSize     int
	RectWidthRef    int
	RectHeightRef   int
	PaddingRef      int
	TextColor       string
	TextBorderColor string
	TextBorderWidth int
	TextBackground  string

	// Webhook
	WebhookMaxRetries     int
	WebhookRetryBaseDelay time.Duration
	WebhookRetryMaxDelay  time.Duration
}

// Load loads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		AuthRequired: getEnvBool("AUTH_REQUIRED", false),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		KafkaBrokers:        strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		KafkaConsumerGroup:  getEnv("KAFKA_CONSUMER_GROUP", "clipforge-worker-main"),
		KafkaTopicJobs:      getEnv("KAFKA_TOPIC_JOBS", "clipforge.jobs.v1"),
		KafkaTopicEvents:    getEnv("KAFKA_TOPIC_EVENTS", "clipforge.events.v1"),
		ProgressTopicPrefix: getEnv("KAFKA_PROGRESS_TOPIC_PREFIX", "job_progress_"),

		S3Endpoint:   getEnv("S3_ENDPOINT", ""),
		S3Region:     getEnv("S3_REGION", "us-east-1"),
		S3Bucket:     getEnv("S3_BUCKET", "clipforge-videos"),
		S3AccessKey:  getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:  getEnv("S3_SECRET_KEY", ""),
		S3UseSSL:     getEnvBool("S3_USE_SSL", true),
		PresignTTL:   getEnvDuration("PRESIGN_TTL", time.Hour),
		OutputURLTTL: getEnvDuration("OUTPUT_URL_TTL", time.Hour),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash-lite"),

		ProcessorMode:      getEnv("PROCESSOR_MODE", "local"),
		RemoteProcessorURL: getEnv("REMOTE_PROCESSOR_URL", ""),

		SegmentTimeout:      getEnvDuration("SEGMENT_TIMEOUT", 5*time.Minute),
		ResourceConstrained: getEnvBool("RESOURCE_CONSTRAINED", false),
		WorkerMaxRetries:    getEnvInt("WORKER_MAX_RETRIES", 3),
		WorkerRetryBase:     getEnvDuration("WORKER_RETRY_BASE", 60*time.Second),

		FontSizeDivisor: getEnvInt("OVERLAY_FONT_SIZE_DIVISOR", 15),
		MinFontSize:     getEnvInt("OVERLAY_MIN_FONT_SIZE", 20),
		MaxFontSize:     getEnvInt("OVERLAY_MAX_FONT_SIZE", 72),
		RectWidthRef:    getEnvInt("OVERLAY_RECT_WIDTH", 212),
		RectHeightRef:   getEnvInt("OVERLAY_RECT_HEIGHT", 420),
		PaddingRef:      getEnvInt("OVERLAY_PADDING", 8),
		TextColor:       getEnv("OVERLAY_TEXT_COLOR", "white"),
		TextBorderColor: getEnv("OVERLAY_TEXT_BORDER_COLOR", "black"),
		TextBorderWidth: getEnvInt("OVERLAY_TEXT_BORDER_WIDTH", 2),
		TextBackground:  getEnv("OVERLAY_TEXT_BACKGROUND", "black@0.5"),

		WebhookMaxRetries:     getEnvInt("WEBHOOK_MAX_RETRIES", 10),
		WebhookRetryBaseDelay: getEnvDuration("WEBHOOK_RETRY_BASE_DELAY", 30*time.Second),
		WebhookRetryMaxDelay:  getEnvDuration("WEBHOOK_RETRY_MAX_DELAY", 24*time.Hour),
	}

	if cfg.ResourceConstrained {
		cfg.SegmentTimeout = getEnvDuration("SEGMENT_TIMEOUT", 3*time.Minute)
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
