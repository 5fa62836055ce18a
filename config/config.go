package config

import (
	"fmt"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName                       string `env:"APP_NAME" env-default:"traitsync-api"`
	Port                          int    `env:"PORT" env-default:"3000"`
	LogLevel                      string `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool   `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int    `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int    `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int    `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int    `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int    `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	StartupMaxAttempts            int    `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Profile API base URL
	ProfileBaseURL string `env:"PROFILE_BASE_URL" env-default:"https://profiles.segment.com/v1"`
	// Profile API access token, sent as the basic auth username
	ProfileAPIKey string `env:"PROFILE_API_KEY" env-default:"" validate:"required"`
	// Profile space the user profiles live in
	ProfileSpaceID string `env:"PROFILE_SPACE_ID" env-default:"" validate:"required"`

	// Contact store base URL
	ContactBaseURL string `env:"CONTACT_BASE_URL" env-default:"https://api.sendgrid.com/v3"`
	// Contact store bearer token
	ContactAPIKey string `env:"CONTACT_API_KEY" env-default:"" validate:"required"`

	// Trait names the integration is allowed to sync (comma-separated)
	SyncedTraits []string `env:"SYNCED_TRAITS" env-default:"" validate:"required"`
	// Maximum concurrent profile trait fetches per batch
	FetchConcurrency int `env:"FETCH_CONCURRENCY" env-default:"10" validate:"gte=1"`
	// Timeout for outbound profile and contact requests
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" env-default:"30s"`

	// Shared secret the webhook caller must present; empty disables auth
	WebhookToken string `env:"WEBHOOK_TOKEN" env-default:""`

	// Kafka Consumer
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaInputTopic      string   `env:"KAFKA_INPUT_TOPIC" env-default:"identify-events"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" env-default:"traitsync-consumer"`
	KafkaErrorTopic      string   `env:"KAFKA_ERROR_TOPIC" env-default:"traitsync-errors"`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"true"`
	// Attempts per message before it is dead-lettered
	KafkaMaxRetryAttempts int `env:"KAFKA_MAX_RETRY_ATTEMPTS" env-default:"5" validate:"gte=1"`
	// Initial backoff between retryable attempts, doubled per attempt
	KafkaRetryBackoff time.Duration `env:"KAFKA_RETRY_BACKOFF" env-default:"2s"`

	// Tracing
	TracingEnabled bool   `env:"TRACING_ENABLED" env-default:"false"`
	OTLPEndpoint   string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	OTLPInsecure   bool   `env:"OTLP_INSECURE" env-default:"true"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads .env when present, binds environment variables and validates
// the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
