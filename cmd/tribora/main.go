package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bnema/tribora/config"
	"github.com/bnema/tribora/internal/adapter/blob/local"
	"github.com/bnema/tribora/internal/adapter/blob/minio"
	"github.com/bnema/tribora/internal/adapter/converter/ffmpeg"
	"github.com/bnema/tribora/internal/adapter/extract"
	httpadapter "github.com/bnema/tribora/internal/adapter/http"
	"github.com/bnema/tribora/internal/adapter/http/ratelimit"
	redisnotify "github.com/bnema/tribora/internal/adapter/notify/redis"
	"github.com/bnema/tribora/internal/adapter/ocr/tesseract"
	"github.com/bnema/tribora/internal/adapter/provider/openai"
	sqlitestore "github.com/bnema/tribora/internal/adapter/storage/sqlite"
	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/infrastructure/logger"
	"github.com/bnema/tribora/internal/port"
	"github.com/bnema/tribora/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error.Printf("failed to load config: %v", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, stop, cfg); err != nil {
		logger.Error.Printf("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg *config.Config) error {
	logger.Info.Printf("starting tribora: data_dir=%s, workers=%d, storage=%s, http=%s", cfg.DataDir, cfg.Workers, cfg.StorageBackend, cfg.HTTPAddr)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return err
	}

	store, err := sqlitestore.NewStore(cfg.DataDir)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	queue := sqlitestore.NewJobQueue(store)

	blobs, err := openBlobStorage(ctx, cfg)
	if err != nil {
		return err
	}

	notifier, closeNotifier, err := openNotifier(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeNotifier()

	provider := openai.NewClient(openai.Config{
		APIKey:          cfg.ProviderAPIKey,
		BaseURL:         cfg.ProviderBaseURL,
		TranscribeModel: cfg.TranscribeModel,
		SummaryModel:    cfg.SummaryModel,
		EmbeddingModel:  cfg.EmbeddingModel,
		VisionModel:     cfg.VisionModel,
		Timeout:         cfg.ProviderTimeout,
	})
	converter := ffmpeg.NewConverter()
	caps := service.Capabilities{
		Audio:       converter,
		Frames:      converter,
		Transcriber: provider,
		Text:        extract.New(),
		Summarizer:  provider,
		Embedder:    provider,
		Vision:      provider,
		OCR:         tesseract.New(cfg.OCRLanguage),
	}

	alerts := service.AlertThresholds{
		ErrorRateMax:   cfg.AlertErrorRate,
		FailedJobsMax:  cfg.AlertFailedJobs,
		StalledJobsMax: cfg.AlertStalledJobs,
		Window:         cfg.AlertWindow,
	}
	stageCfg := service.DefaultStageConfig()
	stageCfg.WorkDir = filepath.Join(cfg.DataDir, "work")
	stageCfg.Frames = port.FrameOptions{
		Interval:       cfg.FrameInterval,
		SceneThreshold: cfg.FrameSceneThreshold,
		MaxFrames:      cfg.MaxFrames,
	}
	stageCfg.FrameConcurrency = cfg.FrameConcurrency
	stageCfg.OCRMinConfidence = cfg.OCRMinConfidence
	stageCfg.Alerts = alerts
	stages := service.NewStages(store, store, queue, blobs, caps, stageCfg)

	events := service.NewEventBus()
	pool := service.NewWorkerPool(queue, store, store, stages.Handlers(), notifier, events, service.WorkerConfig{
		Workers:      cfg.Workers,
		PollInterval: cfg.PollInterval,
		Lease:        cfg.JobLease,
		JobTimeout:   cfg.JobTimeout,
		Retry: domain.RetryPolicy{
			MaxRetries:    cfg.MaxRetries,
			BaseDelay:     cfg.RetryBaseDelay,
			MaxDelay:      cfg.RetryMaxDelay,
			JitterPercent: domain.DefaultRetryPolicy().JitterPercent,
		},
	})
	scheduler := service.NewScheduler(queue, notifier, service.SchedulerConfig{
		MetricsInterval:    cfg.MetricsInterval,
		AlertsInterval:     cfg.AlertsInterval,
		StaleSweepInterval: cfg.StaleSweepInterval,
		Alerts:             alerts,
	})

	failures := events.Subscribe(service.AllContent)
	defer events.Unsubscribe(service.AllContent, failures)
	go func() {
		for e := range failures {
			if e.Type == service.EventFailed {
				logger.Warn.Printf("content %s failed at %s: %s", e.ContentID, e.Stage, logger.SanitizeForLog(e.Message))
			}
		}
	}()

	contentSvc := service.NewContentService(store, store, queue, blobs, notifier, events, cfg.Limits())
	searchSvc := service.NewSearchService(store, store, provider, service.DefaultSearchWeights())

	pool.Start(ctx)
	go scheduler.Run(ctx)

	var httpServer *http.Server
	if cfg.HTTPAddr != "" {
		var files *httpadapter.FileHandler
		if l, ok := blobs.(*local.Storage); ok {
			files = httpadapter.NewFileHandler(l)
		}
		limiter := ratelimit.New(cfg.UploadsPerMinute, time.Minute, time.Minute)
		defer limiter.Close()

		httpServer = &http.Server{
			Addr: cfg.HTTPAddr,
			Handler: httpadapter.NewServer(
				httpadapter.NewHandlers(contentSvc, searchSvc, cfg.Limits(), cfg.SignedURLTTL),
				httpadapter.NewSSEHandler(events, contentSvc),
				files,
				limiter,
			),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info.Printf("api listening on %s", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error.Printf("api server: %v", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info.Printf("shutting down")
	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn.Printf("api shutdown: %v", err)
		}
		cancel()
	}
	if !pool.Shutdown(cfg.ShutdownTimeout) {
		logger.Warn.Printf("unfinished jobs will be picked up again once their lease expires")
	}
	logger.Info.Printf("shutdown complete")
	return nil
}

func openBlobStorage(ctx context.Context, cfg *config.Config) (port.BlobStorage, error) {
	if cfg.StorageBackend == config.StorageMinio {
		return minio.New(ctx, minio.Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
		})
	}
	return local.New(filepath.Join(cfg.DataDir, "objects"), cfg.PublicURL, []byte(cfg.SigningSecret))
}

// openNotifier uses Redis pub/sub when configured so enqueues in one
// process wake workers in another.
func openNotifier(ctx context.Context, cfg *config.Config) (port.Notifier, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Info.Printf("REDIS_ADDR not set, using in-process notifier")
		n := service.NewLocalNotifier()
		return n, func() { _ = n.Close() }, nil
	}
	client, err := redisnotify.NewClient(ctx, redisnotify.Config{
		Addr:     cfg.RedisAddr,
		DB:       cfg.RedisDB,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return nil, nil, err
	}
	n, err := redisnotify.New(ctx, client, cfg.RedisChannel)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return n, func() {
		_ = n.Close()
		_ = client.Close()
	}, nil
}
