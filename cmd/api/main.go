package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ehtisham-afzal/outline/internal/app"
	"github.com/ehtisham-afzal/outline/internal/config"
	"github.com/ehtisham-afzal/outline/internal/editor"
	"github.com/ehtisham-afzal/outline/internal/export"
	"github.com/ehtisham-afzal/outline/internal/gitrepo"
	"github.com/ehtisham-afzal/outline/internal/log"
	"github.com/ehtisham-afzal/outline/internal/notify"
	"github.com/ehtisham-afzal/outline/internal/search"
	"github.com/ehtisham-afzal/outline/internal/store"
)

func main() {
	cfg := config.Load()
	if err := log.Set(cfg.LogLevel, cfg.LogDevelopment); err != nil {
		panic(err)
	}
	defer log.Flush()
	logger := log.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		logger.Fatal("failed to create repos dir", zap.Error(err))
	}

	manager, err := editor.NewManager(editor.Options{HeadingLevels: cfg.HeadingLevels})
	if err != nil {
		logger.Fatal("schema setup failed", zap.Error(err))
	}

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)

	var uploader export.Uploader
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		minioUploader, err := export.NewMinioUploader(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			logger.Warn("export storage unavailable, publishing disabled", zap.Error(err))
		} else {
			uploader = minioUploader
		}
	}

	bus := notify.NewBus()
	if strings.TrimSpace(cfg.RedisURL) != "" {
		relay, err := notify.NewRedisRelay(cfg.RedisURL, cfg.NotifyChannel, bus)
		if err != nil {
			logger.Fatal("redis connection failed", zap.Error(err))
		}
		defer relay.Close()
		relay.Forward(notify.DocumentChanged)
		go func() {
			if err := relay.Run(ctx, nil); err != nil {
				logger.Error("notification relay stopped", zap.Error(err))
			}
		}()
		sub := bus.Subscribe(notify.DocumentChanged, func(_ notify.Topic, payload any) {
			remote, ok := payload.(notify.Remote)
			if !ok {
				return
			}
			var event app.DocumentEvent
			if err := remote.Decode(&event); err != nil {
				logger.Warn("undecodable remote document event", zap.Error(err))
				return
			}
			logger.Debug("document changed elsewhere", zap.String("document", event.ID), zap.Int("version", event.Version), zap.String("origin", remote.Origin))
		})
		defer sub.Close()
	}

	service, err := app.New(app.Deps{
		Store:    store.NewPostgresStore(db),
		Git:      gitrepo.New(cfg.ReposDir),
		Search:   searchService,
		Exporter: export.NewService(uploader),
		Manager:  manager,
		Bus:      bus,
	})
	if err != nil {
		logger.Fatal("service setup failed", zap.Error(err))
	}
	if err := service.Bootstrap(ctx); err != nil {
		logger.Warn("bootstrap error (will retry on next restart)", zap.Error(err))
	}
	searchService.ReindexAllFromPG(ctx, pgfts, service.Sections)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("outline API listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	searchService.Wait()
}
