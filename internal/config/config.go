package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Video host providers accepted in VIDEO_HOST.
const (
	HostCloudflare = "cloudflare"
	HostMux        = "mux"
	HostS3         = "s3"
)

// Config holds application configuration loaded from environment.
type Config struct {
	HTTP      HTTPConfig
	Database  DatabaseConfig
	VideoHost VideoHostConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Outbox    OutboxConfig
	Upload    UploadConfig
	LogLevel  string
}

// HTTPConfig holds API server settings.
type HTTPConfig struct {
	Addr                    string
	ReadHeaderTimeout       time.Duration
	ShutdownTimeout         time.Duration
	CredentialRatePerMinute int
}

// DatabaseConfig holds the Postgres DSN (the Supabase connection string in production).
type DatabaseConfig struct {
	URL string
}

// VideoHostConfig selects and configures the provider that issues one-time upload targets.
type VideoHostConfig struct {
	Provider string

	CloudflareAccountID string
	CloudflareToken     string

	MuxTokenID     string
	MuxTokenSecret string

	AWSRegion            string
	AWSAccessKeyID       string
	AWSSecretAccessKey   string
	S3Bucket             string
	PresignExpireMinutes int
}

// RedisConfig holds the credential ledger connection. Empty Addr disables the ledger.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	CredentialTTL time.Duration
}

// KafkaConfig holds producer settings for moderation events.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// OutboxConfig holds the publisher polling settings.
type OutboxConfig struct {
	Interval  time.Duration
	BatchSize int
}

// UploadConfig is used by the client-side upload coordinator.
type UploadConfig struct {
	APIBaseURL        string
	CredentialTimeout time.Duration
	TransferTimeout   time.Duration
	RegisterTimeout   time.Duration
}

// Load reads configuration from environment, with an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTP: HTTPConfig{
			Addr:                    getEnv("HTTP_ADDR", ":8081"),
			ReadHeaderTimeout:       getEnvDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			ShutdownTimeout:         getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
			CredentialRatePerMinute: getEnvInt("RATE_LIMIT_CREDENTIALS_PER_MIN", 30),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		VideoHost: VideoHostConfig{
			Provider:             strings.ToLower(getEnv("VIDEO_HOST", HostCloudflare)),
			CloudflareAccountID:  os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
			CloudflareToken:      os.Getenv("CLOUDFLARE_STREAM_TOKEN"),
			MuxTokenID:           os.Getenv("MUX_TOKEN_ID"),
			MuxTokenSecret:       os.Getenv("MUX_TOKEN_SECRET"),
			AWSRegion:            getEnv("AWS_REGION", "us-east-1"),
			AWSAccessKeyID:       os.Getenv("AWS_ACCESS_KEY_ID"),
			AWSSecretAccessKey:   os.Getenv("AWS_SECRET_ACCESS_KEY"),
			S3Bucket:             os.Getenv("AWS_S3_UPLOADS_BUCKET"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Redis: RedisConfig{
			Addr:          os.Getenv("REDIS_ADDR"),
			Password:      os.Getenv("REDIS_PASSWORD"),
			DB:            getEnvInt("REDIS_DB", 0),
			CredentialTTL: getEnvDuration("CREDENTIAL_TTL", time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers: splitTrim(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			Topic:   getEnv("KAFKA_TOPIC", "video-uploads"),
		},
		Outbox: OutboxConfig{
			Interval:  getEnvDuration("OUTBOX_INTERVAL", time.Second),
			BatchSize: getEnvInt("OUTBOX_BATCH_SIZE", 100),
		},
		Upload: UploadConfig{
			APIBaseURL:        getEnv("API_BASE_URL", "http://localhost:8081"),
			CredentialTimeout: getEnvDuration("UPLOAD_CREDENTIAL_TIMEOUT", 15*time.Second),
			TransferTimeout:   getEnvDuration("UPLOAD_TRANSFER_TIMEOUT", 5*time.Minute),
			RegisterTimeout:   getEnvDuration("UPLOAD_REGISTER_TIMEOUT", 15*time.Second),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	switch cfg.VideoHost.Provider {
	case HostCloudflare, HostMux, HostS3:
	default:
		return nil, fmt.Errorf("unknown VIDEO_HOST %q (want cloudflare, mux or s3)", cfg.VideoHost.Provider)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}
