package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	// Application
	applicationPort "github.com/dreschagin/staticserve/internal/application/port"
	"github.com/dreschagin/staticserve/internal/application/usecase"

	// Infrastructure
	cloudwatchSink "github.com/dreschagin/staticserve/internal/infrastructure/accesslog/cloudwatch"
	natsSink "github.com/dreschagin/staticserve/internal/infrastructure/accesslog/nats"
	postgresSink "github.com/dreschagin/staticserve/internal/infrastructure/accesslog/postgres"
	memoryCache "github.com/dreschagin/staticserve/internal/infrastructure/cache/memory"
	redisCache "github.com/dreschagin/staticserve/internal/infrastructure/cache/redis"
	cachedSource "github.com/dreschagin/staticserve/internal/infrastructure/source/cached"
	dirSource "github.com/dreschagin/staticserve/internal/infrastructure/source/dir"
	s3Source "github.com/dreschagin/staticserve/internal/infrastructure/source/s3"
	"github.com/dreschagin/staticserve/internal/infrastructure/status"
	"github.com/dreschagin/staticserve/internal/livereload"
	"github.com/dreschagin/staticserve/internal/metrics"

	// Interfaces
	httpInterface "github.com/dreschagin/staticserve/internal/interfaces/http"
	"github.com/dreschagin/staticserve/internal/interfaces/http/handler"

	// Shared
	"github.com/dreschagin/staticserve/pkg/config"
	"github.com/dreschagin/staticserve/pkg/logger"

	_ "github.com/lib/pq"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger
	log := logger.New(cfg.LogLevel)
	log.Info("Starting staticserve")

	// 3. Metrics registry
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	// 4. Content source
	var source applicationPort.ContentSource
	switch cfg.Source.Backend {
	case "s3":
		s3Impl, initErr := s3Source.New(context.Background(), s3Source.Config{
			Bucket:          cfg.Source.S3.Bucket,
			Region:          cfg.Source.S3.Region,
			Endpoint:        cfg.Source.S3.Endpoint,
			AccessKeyID:     cfg.Source.S3.AccessKeyID,
			SecretAccessKey: cfg.Source.S3.SecretAccessKey,
			UsePathStyle:    cfg.Source.S3.UsePathStyle,
			KeyPrefix:       cfg.Source.S3.KeyPrefix,
		})
		if initErr != nil {
			log.Error("Failed to initialize S3 content source", initErr)
			os.Exit(1)
		}
		source = s3Impl
		log.Info("Content source initialized", "backend", "s3", "bucket", cfg.Source.S3.Bucket)
	default:
		dirImpl, initErr := dirSource.New(cfg.Content.Path)
		if initErr != nil {
			log.Error("Failed to initialize content directory", initErr)
			os.Exit(1)
		}
		source = dirImpl
		log.Info("Content source initialized", "backend", "dir", "root", dirImpl.Root())
	}

	// 5. Object cache
	var cached *cachedSource.Source
	if cfg.Cache.Enabled {
		var objectCache applicationPort.ObjectCache
		switch cfg.Cache.Backend {
		case "redis":
			redisImpl, initErr := redisCache.New(redisCache.Options{
				Host:     cfg.Cache.Redis.Host,
				Port:     cfg.Cache.Redis.Port,
				Password: cfg.Cache.Redis.Password,
				DB:       cfg.Cache.Redis.DB,
				TTL:      cfg.Cache.TTL,
			})
			if initErr != nil {
				log.Error("Failed to connect to Redis", initErr)
				os.Exit(1)
			}
			objectCache = redisImpl
			log.Info("Object cache initialized", "backend", "redis")
		default:
			objectCache = memoryCache.New(cfg.Cache.TTL)
			log.Info("Object cache initialized", "backend", "memory", "ttl", cfg.Cache.TTL.String())
		}

		cached = cachedSource.New(source, objectCache, cachedSource.Options{
			MaxObjectBytes: cfg.Cache.MaxObjectBytes,
			OnHit:          m.CacheHits.Inc,
			OnMiss:         m.CacheMisses.Inc,
		}, log)
		source = cached
	}

	// 6. Access log sinks
	var sinks []applicationPort.AccessSink

	if cfg.Sinks.NATS.Enabled {
		sinkImpl, initErr := natsSink.NewSink(cfg.Sinks.NATS.URL, cfg.Sinks.NATS.Subject, log)
		if initErr != nil {
			log.Warn("Failed to connect to NATS, continuing without it", "error", initErr.Error())
		} else {
			sinks = append(sinks, sinkImpl)
			log.Info("NATS access sink initialized", "url", cfg.Sinks.NATS.URL)
		}
	}

	if cfg.Sinks.CloudWatch.Enabled {
		sinkImpl, initErr := cloudwatchSink.NewSink(context.Background(), cloudwatchSink.SinkConfig{
			LogGroupName:    cfg.Sinks.CloudWatch.LogGroupName,
			LogStreamName:   cfg.Sinks.CloudWatch.LogStreamName,
			Region:          cfg.Sinks.CloudWatch.Region,
			Endpoint:        cfg.Sinks.CloudWatch.Endpoint,
			AccessKeyID:     cfg.Sinks.CloudWatch.AccessKeyID,
			SecretAccessKey: cfg.Sinks.CloudWatch.SecretAccessKey,
			BufferSize:      cfg.Sinks.CloudWatch.BufferSize,
			FlushInterval:   cfg.Sinks.CloudWatch.FlushInterval,
			AutoCreate:      true,
		}, log)
		if initErr != nil {
			log.Error("Failed to initialize CloudWatch logs sink", initErr)
			os.Exit(1)
		}
		sinks = append(sinks, sinkImpl)
		log.SetLogPublisher(sinkImpl)
		log.Info("CloudWatch access sink initialized", "group", cfg.Sinks.CloudWatch.LogGroupName)
	}

	if cfg.Sinks.Postgres.Enabled {
		db, dbErr := sql.Open("postgres", cfg.Sinks.Postgres.DSN())
		if dbErr != nil {
			log.Error("Failed to open database", dbErr)
			os.Exit(1)
		}
		defer db.Close()
		if dbErr = db.Ping(); dbErr != nil {
			log.Error("Failed to ping database", dbErr)
			os.Exit(1)
		}
		sinks = append(sinks, postgresSink.NewSink(db, postgresSink.SinkConfig{
			BatchSize:     cfg.Sinks.Postgres.BatchSize,
			FlushInterval: cfg.Sinks.Postgres.FlushInterval,
		}, log))
		log.Info("PostgreSQL access sink initialized", "database", cfg.Sinks.Postgres.Database)
	}

	// 7. Access recorder
	recorder := usecase.NewAccessRecorder(sinks, cfg.Sinks.BufferSize, m.AccessRecordsDropped.Inc, log)
	go recorder.Run()

	// 8. Use cases and handlers
	resolver := usecase.NewResolveAssetUseCase(source, usecase.ResolveAssetConfig{
		IndexDocument:  cfg.Content.IndexDocument,
		FallbackAsset:  cfg.Content.FallbackAsset,
		ListingEnabled: cfg.Content.ListingEnabled,
	}, log)

	assetHandler := handler.NewAssetHandler(resolver, log)
	statusHandler := handler.NewStatusHandler(status.NewCollector(cfg.Content.Path), log)

	// 9. Live reload
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var liveReloadHandler *handler.LiveReloadHandler
	if cfg.LiveReload.Enabled {
		hub := livereload.NewHub(log)
		go hub.Run()

		var invalidate func(ctx context.Context, paths []string)
		if cached != nil {
			invalidate = cached.Invalidate
		}
		watcher := livereload.NewWatcher(cfg.Content.Path, cfg.LiveReload.Interval, hub, invalidate, log)
		go watcher.Run(ctx)

		liveReloadHandler = handler.NewLiveReloadHandler(hub, nil, log)
		log.Info("Live reload enabled", "interval", cfg.LiveReload.Interval.String())
	}

	// 10. Router and HTTP server
	router := httpInterface.NewRouter(
		assetHandler,
		statusHandler,
		liveReloadHandler,
		source,
		recorder,
		m,
		registry,
		cfg,
		log,
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("HTTP server starting", "port", cfg.Server.Port, "https_promote", cfg.HTTPSPromote)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", err)
			os.Exit(1)
		}
	}()

	// 11. Graceful shutdown
	<-sigChan
	log.Info("Shutdown signal received, starting graceful shutdown...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", err)
	}

	// Drain buffered access records and flush every sink.
	recorder.Shutdown(shutdownCtx)

	log.Info("Server stopped gracefully")
}
