package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	apperrors "github.com/SAP-F-2025/attempt-engine/internal/errors"
)

// Config carries every externally tunable knob of the attempt engine.
type Config struct {
	APIBaseURL string `validate:"required,url"`
	APIToken   string
	RedisURL   string

	// Pipeline limits
	MaxImageSizeMB int           `validate:"min=1,max=50"`
	OCRTimeout     time.Duration `validate:"min=1s"`
	ASRTimeout     time.Duration `validate:"min=1s"`
	UploadDelay    time.Duration

	// Attempt timing
	DefaultDurationMinutes int `validate:"min=1,max=300"`
	TimeWarningSeconds     int `validate:"min=0"`

	Environment string `validate:"oneof=development staging production"`
}

func LoadConfig() (*Config, error) {
	// Missing .env is fine; real environments configure through the process env
	_ = godotenv.Load()

	cfg := &Config{
		APIBaseURL:             getEnv("API_BASE_URL", "http://localhost:8080"),
		APIToken:               getEnv("API_TOKEN", ""),
		RedisURL:               getEnv("REDIS_URL", ""),
		MaxImageSizeMB:         getEnvInt("MAX_IMAGE_SIZE_MB", 10),
		OCRTimeout:             getEnvDuration("OCR_TIMEOUT", 30*time.Second),
		ASRTimeout:             getEnvDuration("ASR_TIMEOUT", 30*time.Second),
		UploadDelay:            getEnvDuration("UPLOAD_DELAY", 800*time.Millisecond),
		DefaultDurationMinutes: getEnvInt("DEFAULT_DURATION_MINUTES", 60),
		TimeWarningSeconds:     getEnvInt("TIME_WARNING_SECONDS", 300),
		Environment:            getEnv("ENVIRONMENT", "development"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", apperrors.ToValidationErrors(err))
	}

	return cfg, nil
}

// MaxImageSizeBytes returns the OCR upload size cap in bytes.
func (c *Config) MaxImageSizeBytes() int64 {
	return int64(c.MaxImageSizeMB) << 20
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
