package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/photomatch/internal/config"
	dbRedis "github.com/kailas-cloud/photomatch/internal/db/redis"
	"github.com/kailas-cloud/photomatch/internal/db/sqlite"
	"github.com/kailas-cloud/photomatch/internal/domain"
	"github.com/kailas-cloud/photomatch/internal/imageproc"
	logpkg "github.com/kailas-cloud/photomatch/internal/logger"
	"github.com/kailas-cloud/photomatch/internal/metrics"
	catalogrepo "github.com/kailas-cloud/photomatch/internal/repository/catalog"
	"github.com/kailas-cloud/photomatch/internal/repository/embcache"
	"github.com/kailas-cloud/photomatch/internal/storage"
	"github.com/kailas-cloud/photomatch/internal/storage/local"
	"github.com/kailas-cloud/photomatch/internal/storage/minio"
	chiTransport "github.com/kailas-cloud/photomatch/internal/transport/chi"
	"github.com/kailas-cloud/photomatch/internal/transport/kafka"
	"github.com/kailas-cloud/photomatch/internal/transport/onnx"
	openaiExt "github.com/kailas-cloud/photomatch/internal/transport/openai"
	cataloguc "github.com/kailas-cloud/photomatch/internal/usecase/catalog"
	"github.com/kailas-cloud/photomatch/internal/usecase/extraction"
	healthuc "github.com/kailas-cloud/photomatch/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/photomatch/internal/usecase/ingest"
	searchuc "github.com/kailas-cloud/photomatch/internal/usecase/search"
	"github.com/kailas-cloud/photomatch/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting photomatch API server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("database", cfg.Database.Path),
		zap.String("extractor", cfg.Extractor.Backend),
		zap.String("storage", cfg.Storage.Driver),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics()
	metrics.RegisterExtractionMetrics()
	metrics.RegisterCatalogMetrics()

	ctx := context.Background()

	conn, err := sqlite.Open(ctx, sqlite.Config{
		Path:        cfg.Database.Path,
		BusyTimeout: time.Duration(cfg.Database.BusyTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		logger.Fatal("Failed to open catalog database", zap.Error(err))
	}
	defer func() { _ = conn.Close() }()
	repo := catalogrepo.New(conn)
	logger.Info("Catalog database ready")

	// Optional vector cache. Pass nil interfaces (not typed nil pointers) when disabled.
	var cache *dbRedis.Store
	var cachePinger healthuc.Pinger
	if cfg.Cache.Enabled {
		cache, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:     cfg.Cache.Addrs,
			Password:  cfg.Cache.Password,
			KeyPrefix: cfg.Cache.KeyPrefix,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer cache.Close()
		if err := cache.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		cachePinger = cache
		logger.Info("Connected to vector cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	files, err := buildFileStore(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to create file storage", zap.Error(err))
	}

	var events domain.EventPublisher = domain.NopPublisher{}
	if cfg.Events.Enabled {
		pub, err := kafka.NewPublisher(kafka.Config{Brokers: cfg.Events.Brokers, Topic: cfg.Events.Topic}, logger)
		if err != nil {
			logger.Fatal("Failed to create event publisher", zap.Error(err))
		}
		defer func() { _ = pub.Close() }()
		events = pub
	}

	// A load failure keeps the server up; extraction then answers extractor_unavailable.
	extractor := extraction.NewLoader(func() (domain.Extractor, error) {
		return buildExtractor(cfg, cache, logger)
	})
	loadStart := time.Now()
	if _, err := extractor.Get(); err != nil {
		logger.Error("Failed to load extractor", zap.String("backend", cfg.Extractor.Backend), zap.Error(err))
	} else {
		logger.Info("Extractor loaded",
			zap.String("backend", cfg.Extractor.Backend),
			zap.Duration("duration", time.Since(loadStart)))
	}

	imgOpts := imageproc.Options{MaxWidth: cfg.Ingest.MaxWidth, JPEGQuality: cfg.Ingest.JPEGQuality}

	catalogSvc := cataloguc.New(repo, files, extractor).
		WithPagination(cfg.Catalog.DefaultPageSize, cfg.Catalog.MaxPageSize).
		WithLogger(logger).
		WithEvents(events).
		WithImageOptions(imgOpts).
		WithUploadPrefix(cfg.Storage.UploadPrefix)
	searchSvc := searchuc.New(repo, extractor,
		searchuc.WithLimits(cfg.Search.DefaultK, cfg.Search.MaxK),
		searchuc.WithImageOptions(imgOpts),
	)
	ingestSvc := ingestuc.New(repo, files, extractor).
		WithLogger(logger).
		WithEvents(events).
		WithImageOptions(imgOpts).
		WithUploadPrefix(cfg.Storage.UploadPrefix).
		WithMaxArchiveBytes(int64(cfg.Ingest.MaxArchiveMB) << 20)
	healthSvc := healthuc.New(repo, cachePinger, extractor)

	server := chiTransport.NewServer(catalogSvc, searchSvc, ingestSvc, healthSvc, files, logger).
		WithAPIKeys(cfg.Auth.APIKeys).
		WithUploadPrefix(cfg.Storage.UploadPrefix).
		WithMaxUploadBytes(int64(cfg.HTTP.MaxUploadMB) << 20)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

func buildFileStore(ctx context.Context, cfg config.StorageConfig) (storage.FileStore, error) {
	switch cfg.Driver {
	case config.DriverMinIO:
		store, err := minio.New(minio.Config{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			Region:    cfg.MinIO.Region,
			UseSSL:    cfg.MinIO.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return local.New(cfg.Local.Root), nil
	}
}

// buildExtractor assembles the decorator chain: backend -> Normalizing -> Cached -> Instrumented.
func buildExtractor(cfg config.Config, cache *dbRedis.Store, logger *zap.Logger) (domain.Extractor, error) {
	ec := cfg.Extractor

	var (
		base    domain.Extractor
		modelID string
	)
	switch ec.Backend {
	case config.BackendOpenAI:
		ext := openaiExt.NewExtractor(&openaiExt.Config{
			APIKey:     ec.OpenAI.APIKey,
			BaseURL:    ec.OpenAI.BaseURL,
			Model:      ec.OpenAI.Model,
			Dimensions: ec.Dimensions,
			Logger:     logger,
		})
		base, modelID = ext, ext.ModelID()
	default:
		model := domain.DefaultExtractorConfig()
		model.Dimensions = ec.Dimensions
		ext, err := onnx.NewExtractor(onnx.Config{
			ModelPath:   ec.ONNX.ModelPath,
			LibraryPath: ec.ONNX.LibraryPath,
			InputName:   ec.ONNX.InputName,
			OutputName:  ec.ONNX.OutputName,
			Model:       model,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		base, modelID = ext, ext.ModelID()
	}

	var ext domain.Extractor = domain.NewNormalizingExtractor(base, ec.Dimensions)
	if cache != nil {
		ext = embcache.New(ext, cache, modelID,
			time.Duration(cfg.Cache.TTLHours)*time.Hour, metrics.ExtractionCacheTotal, logger)
	}
	ext = extraction.NewInstrumentedExtractor(ext, ec.Backend, ec.MaxConcurrency, logger)

	logger.Info("Extractor loaded",
		zap.String("backend", ec.Backend),
		zap.String("model", modelID),
		zap.Int("dimensions", ec.Dimensions),
	)
	return ext, nil
}
