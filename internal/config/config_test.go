package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.APIBaseURL)
	assert.Equal(t, 10, cfg.MaxImageSizeMB)
	assert.Equal(t, 30*time.Second, cfg.OCRTimeout)
	assert.Equal(t, 30*time.Second, cfg.ASRTimeout)
	assert.Equal(t, 60, cfg.DefaultDurationMinutes)
	assert.Equal(t, 300, cfg.TimeWarningSeconds)
	assert.Equal(t, "development", cfg.Environment)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://assessments.example.com")
	t.Setenv("MAX_IMAGE_SIZE_MB", "5")
	t.Setenv("OCR_TIMEOUT", "45s")
	t.Setenv("DEFAULT_DURATION_MINUTES", "90")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://assessments.example.com", cfg.APIBaseURL)
	assert.Equal(t, 5, cfg.MaxImageSizeMB)
	assert.Equal(t, 45*time.Second, cfg.OCRTimeout)
	assert.Equal(t, 90, cfg.DefaultDurationMinutes)
	assert.Equal(t, "production", cfg.Environment)
}

func TestLoadConfig_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("MAX_IMAGE_SIZE_MB", "not-a-number")
	t.Setenv("OCR_TIMEOUT", "soon")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.MaxImageSizeMB)
	assert.Equal(t, 30*time.Second, cfg.OCRTimeout)
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	t.Setenv("ENVIRONMENT", "laptop")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestConfig_MaxImageSizeBytes(t *testing.T) {
	cfg := &Config{MaxImageSizeMB: 10}
	assert.Equal(t, int64(10<<20), cfg.MaxImageSizeBytes())
}
