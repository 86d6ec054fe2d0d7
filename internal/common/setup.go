package common

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"tradechat-go/internal/anthropic"
	"tradechat-go/internal/api"
	"tradechat-go/internal/assistant"
	"tradechat-go/internal/auth"
	"tradechat-go/internal/config"
	"tradechat-go/internal/database"
	"tradechat-go/internal/dedupe"
	"tradechat-go/internal/dialogue"
	"tradechat-go/internal/kite"
	"tradechat-go/internal/models"
	"tradechat-go/internal/postgres"
	"tradechat-go/internal/quota"
	"tradechat-go/internal/store"
	"tradechat-go/internal/telemetry"
	"tradechat-go/internal/whatsapp"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	Store     store.Store
	Kite      *kite.Service
	Anthropic *anthropic.Service
	WhatsApp  *whatsapp.Service
	Registry  *auth.TokenRegistry
	Handshake *auth.Handshake
	Quota     *quota.Tracker
	Assistant *assistant.Assistant
	Accounts  *api.AccountService
	Dedupe    dedupe.Guard
	Metrics   *telemetry.Metrics
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeStore opens the configured store backend. Useful on its own for
// read-only tools that do not need the brokerage or text generator.
func InitializeStore(ctx context.Context, cfg *models.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		zap.L().Info("Using PostgreSQL store")
		return postgres.NewService(ctx, cfg.Postgres)
	case config.StoreBackendSQLite, "":
		return database.NewService(ctx, cfg.Database)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// InitializeServices builds every collaborator the server needs.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	st, err := InitializeStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	services := &Services{
		Store:    st,
		Accounts: api.NewAccountService(st),
		Metrics:  telemetry.New(),
	}

	zap.L().Info("Configuring Kite Connect client")
	services.Kite, err = kite.NewService(cfg.Kite)
	if err != nil {
		services.Close()
		return nil, err
	}

	zap.L().Info("Configuring text generator", zap.String("model", cfg.Anthropic.Model))
	services.Anthropic, err = anthropic.NewService(cfg.Anthropic)
	if err != nil {
		services.Close()
		return nil, err
	}

	services.WhatsApp, err = whatsapp.NewService(cfg.WhatsApp)
	if err != nil {
		services.Close()
		return nil, err
	}
	if cfg.WhatsApp.DryRun {
		zap.L().Warn("WhatsApp dry-run enabled, replies will only be logged")
	}

	services.Dedupe, err = initializeDedupe(ctx, cfg)
	if err != nil {
		services.Close()
		return nil, err
	}

	location, err := time.LoadLocation(cfg.Assistant.QuotaTimezone)
	if err != nil {
		services.Close()
		return nil, fmt.Errorf("invalid quota timezone: %w", err)
	}

	typos := dialogue.DefaultTypos()
	if cfg.Assistant.TypoDictionaryFile != "" {
		typos, err = LoadTypoDictionary(cfg.Assistant.TypoDictionaryFile)
		if err != nil {
			services.Close()
			return nil, err
		}
		zap.L().Info("Loaded typo dictionary",
			zap.String("file", cfg.Assistant.TypoDictionaryFile),
			zap.Int("entries", len(typos)))
	}

	services.Registry = auth.NewTokenRegistry(auth.TokenRegistryConfig{
		TTL:             cfg.Assistant.TokenTTL,
		CleanupInterval: cfg.Assistant.TokenCleanupInterval,
	})
	services.Registry.Start(ctx)
	services.Handshake = auth.NewHandshake(auth.HandshakeConfig{
		Store:         st,
		Broker:        services.Kite,
		Registry:      services.Registry,
		CredentialTTL: cfg.Assistant.CredentialTTL,
	})
	services.Quota = quota.NewTracker(quota.TrackerConfig{
		Store:     st,
		Location:  location,
		FreeLimit: cfg.Assistant.FreeDailyLimit,
		ProLimit:  cfg.Assistant.ProDailyLimit,
	})
	services.Assistant = assistant.New(assistant.Config{
		Store:              st,
		Broker:             services.Kite,
		Generator:          services.Anthropic,
		Handshake:          services.Handshake,
		Quota:              services.Quota,
		Normalizer:         dialogue.NewNormalizer(typos),
		Metrics:            services.Metrics,
		HistoryWindow:      cfg.Assistant.HistoryWindow,
		FollowUpWindow:     cfg.Assistant.FollowUpWindow,
		BrokerFetchTimeout: cfg.Assistant.BrokerFetchTimeout,
	})

	return services, nil
}

func initializeDedupe(ctx context.Context, cfg *models.Config) (dedupe.Guard, error) {
	if cfg.Redis.Addr == "" {
		zap.L().Info("Redis not configured, using in-process delivery dedupe")
		guard := dedupe.NewMemoryGuard(nil, cfg.Redis.DeliveryTTL)
		guard.Start(ctx, dedupe.DefaultCleanupInterval)
		return guard, nil
	}
	return dedupe.NewRedisGuard(ctx, cfg.Redis)
}

func (cs *Services) Close() {
	if cs.Registry != nil {
		cs.Registry.Stop()
	}
	if cs.Dedupe != nil {
		if err := cs.Dedupe.Close(); err != nil {
			zap.L().Warn("Failed to close dedupe guard", zap.Error(err))
		}
	}
	if cs.Store != nil {
		cs.Store.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
