package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/bnema/tribora/internal/domain"
	"github.com/joho/godotenv"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

type Config struct {
	DataDir  string
	LogLevel string

	Workers            int
	PollInterval       time.Duration
	JobLease           time.Duration
	JobTimeout         time.Duration
	MaxRetries         int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	ShutdownTimeout    time.Duration
	MetricsInterval    time.Duration
	AlertsInterval     time.Duration
	StaleSweepInterval time.Duration

	HTTPAddr         string
	UploadsPerMinute int
	SignedURLTTL     time.Duration

	MaxVideoMB    int64
	MaxAudioMB    int64
	MaxDocumentMB int64
	MaxTextKB     int64

	FrameInterval       time.Duration
	FrameSceneThreshold float64
	MaxFrames           int
	FrameConcurrency    int
	OCRMinConfidence    float64
	OCRLanguage         string

	AlertErrorRate   float64
	AlertFailedJobs  int64
	AlertStalledJobs int64
	AlertWindow      time.Duration

	StorageBackend string
	PublicURL      string
	SigningSecret  string
	S3Endpoint     string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UseSSL       bool

	RedisAddr     string
	RedisDB       int
	RedisPassword string
	RedisChannel  string

	ProviderBaseURL string
	ProviderAPIKey  string
	TranscribeModel string
	SummaryModel    string
	EmbeddingModel  string
	VisionModel     string
	ProviderTimeout time.Duration
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present; variables already set
// in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var p parser
	cfg := &Config{
		DataDir:  getEnv("DATA_DIR", "/data"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		Workers:            p.int("WORKERS", 2),
		PollInterval:       p.duration("POLL_INTERVAL", 2*time.Second),
		JobLease:           p.duration("JOB_LEASE", 5*time.Minute),
		JobTimeout:         p.duration("JOB_TIMEOUT", 30*time.Minute),
		MaxRetries:         p.int("MAX_RETRIES", 5),
		RetryBaseDelay:     p.duration("RETRY_BASE_DELAY", 5*time.Second),
		RetryMaxDelay:      p.duration("RETRY_MAX_DELAY", 5*time.Minute),
		ShutdownTimeout:    p.duration("SHUTDOWN_TIMEOUT", 30*time.Second),
		MetricsInterval:    p.duration("METRICS_INTERVAL", 5*time.Minute),
		AlertsInterval:     p.duration("ALERTS_INTERVAL", 5*time.Minute),
		StaleSweepInterval: p.duration("STALE_SWEEP_INTERVAL", time.Minute),

		HTTPAddr:         getEnv("HTTP_ADDR", ":7890"),
		UploadsPerMinute: p.int("UPLOADS_PER_MINUTE", 30),
		SignedURLTTL:     p.duration("SIGNED_URL_TTL", 15*time.Minute),

		MaxVideoMB:    p.int64("MAX_VIDEO_MB", 500),
		MaxAudioMB:    p.int64("MAX_AUDIO_MB", 100),
		MaxDocumentMB: p.int64("MAX_DOCUMENT_MB", 50),
		MaxTextKB:     p.int64("MAX_TEXT_KB", 1024),

		FrameInterval:       p.duration("FRAME_INTERVAL", 10*time.Second),
		FrameSceneThreshold: p.float("FRAME_SCENE_THRESHOLD", 0.4),
		MaxFrames:           p.int("MAX_FRAMES", 120),
		FrameConcurrency:    p.int("FRAME_CONCURRENCY", 4),
		OCRMinConfidence:    p.float("OCR_MIN_CONFIDENCE", 60),
		OCRLanguage:         getEnv("OCR_LANGUAGE", "eng"),

		AlertErrorRate:   p.float("ALERT_ERROR_RATE", 0.2),
		AlertFailedJobs:  p.int64("ALERT_FAILED_JOBS", 50),
		AlertStalledJobs: p.int64("ALERT_STALLED_JOBS", 0),
		AlertWindow:      p.duration("ALERT_WINDOW", 15*time.Minute),

		StorageBackend: getEnv("STORAGE_BACKEND", StorageLocal),
		PublicURL:      getEnv("PUBLIC_URL", "http://localhost:7890/files"),
		SigningSecret:  os.Getenv("SIGNING_SECRET"),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3Bucket:       getEnv("S3_BUCKET", "tribora"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		S3UseSSL:       p.bool("S3_USE_SSL", true),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisDB:       p.int("REDIS_DB", 0),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisChannel:  getEnv("REDIS_CHANNEL", "tribora:jobs"),

		ProviderBaseURL: getEnv("PROVIDER_BASE_URL", "https://api.openai.com/v1"),
		ProviderAPIKey:  os.Getenv("PROVIDER_API_KEY"),
		TranscribeModel: getEnv("TRANSCRIBE_MODEL", "whisper-1"),
		SummaryModel:    getEnv("SUMMARY_MODEL", "gpt-4o-mini"),
		EmbeddingModel:  getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		VisionModel:     getEnv("VISION_MODEL", "gpt-4o-mini"),
		ProviderTimeout: p.duration("PROVIDER_TIMEOUT", 5*time.Minute),
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and settings that only make sense together.
func (c *Config) Validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("WORKERS must be at least 1"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("MAX_RETRIES must not be negative"))
	}
	if c.RetryBaseDelay <= 0 {
		errs = append(errs, fmt.Errorf("RETRY_BASE_DELAY must be positive"))
	}
	if c.JobLease < time.Second {
		errs = append(errs, fmt.Errorf("JOB_LEASE must be at least 1s"))
	}
	if c.OCRMinConfidence < 0 || c.OCRMinConfidence > 100 {
		errs = append(errs, fmt.Errorf("OCR_MIN_CONFIDENCE must be between 0 and 100"))
	}
	if c.AlertErrorRate < 0 || c.AlertErrorRate > 1 {
		errs = append(errs, fmt.Errorf("ALERT_ERROR_RATE must be between 0 and 1"))
	}
	if c.AlertWindow < time.Second {
		errs = append(errs, fmt.Errorf("ALERT_WINDOW must be at least 1s"))
	}
	if c.UploadsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("UPLOADS_PER_MINUTE must not be negative"))
	}
	if c.MaxVideoMB <= 0 || c.MaxAudioMB <= 0 || c.MaxDocumentMB <= 0 || c.MaxTextKB <= 0 {
		errs = append(errs, fmt.Errorf("upload size limits must be positive"))
	}
	if c.FrameSceneThreshold < 0 || c.FrameSceneThreshold > 1 {
		errs = append(errs, fmt.Errorf("FRAME_SCENE_THRESHOLD must be between 0 and 1"))
	}

	switch c.StorageBackend {
	case StorageLocal:
		if c.SigningSecret == "" {
			errs = append(errs, fmt.Errorf("SIGNING_SECRET is required for local storage"))
		}
	case StorageMinio:
		if c.S3Endpoint == "" || c.S3AccessKey == "" || c.S3SecretKey == "" {
			errs = append(errs, fmt.Errorf("S3_ENDPOINT, S3_ACCESS_KEY and S3_SECRET_KEY are required for minio storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", StorageLocal, StorageMinio, c.StorageBackend))
	}

	if c.ProviderAPIKey == "" {
		errs = append(errs, fmt.Errorf("PROVIDER_API_KEY is required"))
	}
	return errors.Join(errs...)
}

// Limits returns the upload size caps in bytes.
func (c *Config) Limits() domain.Limits {
	return domain.Limits{
		Video:    c.MaxVideoMB << 20,
		Audio:    c.MaxAudioMB << 20,
		Document: c.MaxDocumentMB << 20,
		Text:     c.MaxTextKB << 10,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parser reads typed variables and keeps the first parse error.
type parser struct {
	err error
}

func (p *parser) lookup(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != "" && p.err == nil
}

func (p *parser) fail(key, value string, err error) {
	p.err = fmt.Errorf("invalid %s %q: %w", key, value, err)
}

func (p *parser) int(key string, def int) int {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *parser) int64(key string, def int64) int64 {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return f
}

func (p *parser) bool(key string, def bool) bool {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return d
}
