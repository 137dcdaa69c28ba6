package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xaenox/chat-sessions/internal/cache"
	"github.com/xaenox/chat-sessions/internal/docstore"
	"github.com/xaenox/chat-sessions/internal/kvstore"
	"github.com/xaenox/chat-sessions/internal/quota"
	"github.com/xaenox/chat-sessions/internal/session"
	"github.com/xaenox/chat-sessions/internal/titler"
	"github.com/xaenox/chat-sessions/pkg/config"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize the document store
	var store docstore.Store
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory document store")
		store = docstore.NewMemoryStore()
	} else {
		logger.Info("Using PostgreSQL document store")
		dbConfig := docstore.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		}
		store, err = docstore.NewPostgresStore(dbConfig, logger)
		if err != nil {
			logger.Fatal("Failed to initialize document store", zap.Error(err))
		}
	}
	defer store.Close()

	// Initialize client-local storage
	var local kvstore.KeyValue
	if cfg.Local.UseInMemory {
		logger.Info("Using in-memory local storage")
		local = kvstore.NewMemoryStore()
	} else {
		logger.Info("Using SQLite local storage", zap.String("path", cfg.Local.Path))
		local, err = kvstore.NewSQLiteStore(cfg.Local.Path)
		if err != nil {
			logger.Fatal("Failed to initialize local storage", zap.Error(err))
		}
	}
	defer local.Close()

	sessionCache := cache.New()

	tracker := session.NewTracker(local, cfg.Sessions.StalenessThreshold, logger)

	quotaManager := quota.NewManager(local, cfg.Quota.DailyLimit, cfg.Quota.PerCallCost, cfg.Quota.HistorySize, logger)

	titles := titler.New(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.Model,
		cfg.OpenAI.MaxTokens,
		cfg.OpenAI.Temperature,
		quotaManager,
		logger,
	)

	manager := session.NewManager(store, sessionCache, session.Options{
		DefaultTitle:        cfg.Sessions.DefaultTitle,
		MaxActiveSessions:   cfg.Sessions.MaxActiveSessions,
		ArchiveAge:          cfg.Sessions.ArchiveAge,
		ActiveCompactLimit:  cfg.Sessions.ActiveCompactLimit,
		ActiveKeepFirst:     cfg.Sessions.ActiveKeepFirst,
		ActiveKeepLast:      cfg.Sessions.ActiveKeepLast,
		ArchiveCompactLimit: cfg.Sessions.ArchiveCompactLimit,
		ArchiveKeepFirst:    cfg.Sessions.ArchiveKeepFirst,
		ArchiveKeepLast:     cfg.Sessions.ArchiveKeepLast,
		CacheTTL:            cfg.Sessions.CacheTTL,
		MetadataCacheTTL:    cfg.Sessions.MetadataCacheTTL,
		PageSize:            cfg.Sessions.PageSize,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Session maintenance started",
		zap.Duration("interval", cfg.Sessions.MaintenanceInterval))

	ticker := time.NewTicker(cfg.Sessions.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down")
			return
		case <-ticker.C:
			if err := manager.RunMaintenance(ctx); err != nil {
				logger.Error("Maintenance run failed", zap.Error(err))
			}

			for _, userID := range manager.CachedUserIDs() {
				if err := manager.RetitleDefaultSessions(ctx, userID, titles); err != nil {
					logger.Error("Failed to retitle sessions",
						zap.Error(err),
						zap.String("user_id", userID))
				}

				view, err := manager.FetchMetadata(ctx, userID)
				if err != nil {
					continue
				}

				// Archived sessions no longer need local activity records
				for _, s := range view.ArchivedSessions {
					if tracker.IsStale(s.ID) {
						if err := tracker.Forget(s.ID); err != nil {
							logger.Error("Failed to drop activity record",
								zap.Error(err),
								zap.String("session_id", s.ID))
						}
					}
				}
			}

			info := quotaManager.QuotaInfo()
			logger.Info("API quota status",
				zap.Int("used", info.Used),
				zap.Int("remaining", info.Remaining),
				zap.String("status", info.Status))
		}
	}
}
