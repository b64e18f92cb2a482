package config

import (
	"os"
	"testing"
	"time"

	"github.com/bnema/tribora/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	// Load looks for .env in the working directory.
	t.Chdir(t.TempDir())
	t.Setenv("SIGNING_SECRET", "secret")
	t.Setenv("PROVIDER_API_KEY", "sk-test")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/data", cfg.DataDir)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 5*time.Minute, cfg.JobLease)
	assert.Equal(t, 30*time.Minute, cfg.JobTimeout)
	assert.Equal(t, StorageLocal, cfg.StorageBackend)
	assert.InDelta(t, 60.0, cfg.OCRMinConfidence, 1e-9)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, ":7890", cfg.HTTPAddr)
	assert.Equal(t, 30, cfg.UploadsPerMinute)
	assert.Equal(t, 15*time.Minute, cfg.SignedURLTTL)
	assert.Equal(t, domain.DefaultLimits(), cfg.Limits())
}

func TestLoad_Overrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("WORKERS", "8")
	t.Setenv("JOB_LEASE", "90s")
	t.Setenv("MAX_RETRIES", "3")
	t.Setenv("FRAME_SCENE_THRESHOLD", "0.25")
	t.Setenv("S3_USE_SSL", "false")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 90*time.Second, cfg.JobLease)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.InDelta(t, 0.25, cfg.FrameSceneThreshold, 1e-9)
	assert.False(t, cfg.S3UseSSL)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
}

func TestLoad_DotEnvFile(t *testing.T) {
	setBaseEnv(t)
	require.NoError(t, os.WriteFile(".env", []byte("WORKERS=6\nLOG_LEVEL=debug\n"), 0600))
	t.Cleanup(func() {
		_ = os.Unsetenv("WORKERS")
		_ = os.Unsetenv("LOG_LEVEL")
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Workers)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"WORKERS", "many", "invalid WORKERS"},
		{"JOB_TIMEOUT", "30", "invalid JOB_TIMEOUT"},
		{"S3_USE_SSL", "maybe", "invalid S3_USE_SSL"},
		{"OCR_MIN_CONFIDENCE", "high", "invalid OCR_MIN_CONFIDENCE"},
		{"WORKERS", "0", "WORKERS must be at least 1"},
		{"OCR_MIN_CONFIDENCE", "150", "OCR_MIN_CONFIDENCE must be between 0 and 100"},
		{"STORAGE_BACKEND", "ftp", "STORAGE_BACKEND must be"},
		{"MAX_AUDIO_MB", "0", "upload size limits must be positive"},
		{"UPLOADS_PER_MINUTE", "-1", "UPLOADS_PER_MINUTE must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_RequiredCombinations(t *testing.T) {
	setBaseEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	minio := *cfg
	minio.StorageBackend = StorageMinio
	err = minio.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_ENDPOINT")

	minio.S3Endpoint = "localhost:9000"
	minio.S3AccessKey = "access"
	minio.S3SecretKey = "secret"
	assert.NoError(t, minio.Validate())

	local := *cfg
	local.SigningSecret = ""
	local.ProviderAPIKey = ""
	err = local.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SIGNING_SECRET")
	assert.Contains(t, err.Error(), "PROVIDER_API_KEY")
}
