package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/medimind/medimind-api/internal/domain/analysis"
	"github.com/medimind/medimind-api/internal/domain/auth"
	"github.com/medimind/medimind-api/internal/domain/profile"
	"github.com/medimind/medimind-api/internal/domain/records"
	"github.com/medimind/medimind-api/internal/infra/avatarstore"
	"github.com/medimind/medimind-api/internal/infra/config"
	"github.com/medimind/medimind-api/internal/infra/devicestore"
	"github.com/medimind/medimind-api/internal/infra/llm/gemini"
	"github.com/medimind/medimind-api/internal/infra/userdoc"
)

// documentRepository is the full persistence surface backed by one user
// document store.
type documentRepository interface {
	auth.Repository
	analysis.Repository
	profile.Repository
	records.Repository
}

func provideAuthConfig(cfg *config.Config) auth.Config {
	return auth.Config{
		Secret:          cfg.Auth.Secret,
		TokenTTL:        cfg.Auth.TokenTTL,
		RefreshTokenTTL: cfg.Auth.RefreshTokenTTL,
		ResetTokenTTL:   cfg.Auth.ResetTokenTTL,
		Google: auth.GoogleConfig{
			ClientID:             cfg.Auth.Google.ClientID,
			ClientSecret:         cfg.Auth.Google.ClientSecret,
			RedirectURL:          cfg.Auth.Google.RedirectURL,
			TokenEncryptionKey:   cfg.Auth.Google.TokenEncryptionKey,
			PostLoginRedirectURL: cfg.Auth.Google.PostLoginRedirectURL,
		},
	}
}

func provideAnalysisConfig(cfg *config.Config) analysis.Config {
	return analysis.Config{
		Temperature:    cfg.LLM.Temperature,
		MaxPredictions: cfg.Analysis.MaxPredictions,
		RecoverySteps:  cfg.Analysis.RecoverySteps,
		ProgressTick:   cfg.Analysis.ProgressTick,
		ProgressStep:   cfg.Analysis.ProgressStep,
	}
}

func provideProfileConfig(cfg *config.Config) profile.Config {
	return profile.Config{
		MaxAvatarBytes: cfg.Avatar.MaxBytes,
		PublicURL:      cfg.Avatar.PublicURL,
	}
}

func provideGeminiClient(cfg *config.Config) (*gemini.Client, error) {
	return gemini.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model)
}

func provideUserDocument(cfg *config.Config, logger *slog.Logger) documentRepository {
	fallback := userdoc.NewMemoryRepository()
	dsn := strings.TrimSpace(cfg.Store.Postgres.DSN)
	if dsn == "" {
		logger.Info("postgres dsn not set, using memory repository")
		return fallback
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory repository", "error", err)
		return fallback
	}
	if cfg.Store.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Store.Postgres.MaxConns
	}
	if cfg.Store.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Store.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory repository", "error", err)
		return fallback
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory repository", "error", err)
		pool.Close()
		return fallback
	}
	logger.Info("postgres user document store enabled")
	return userdoc.NewPostgresRepository(pool)
}

func provideAuthRepository(repo documentRepository) auth.Repository { return repo }

func provideAnalysisRepository(repo documentRepository) analysis.Repository { return repo }

func provideProfileRepository(repo documentRepository) profile.Repository { return repo }

func provideRecordsRepository(repo documentRepository) records.Repository { return repo }

func provideAuthCache(cfg *config.Config, logger *slog.Logger) auth.Cache {
	if cfg.Store.Valkey.Enabled {
		opt, err := buildValkeyOptions(cfg)
		if err != nil {
			logger.Error("invalid valkey configuration, falling back to memory store", "error", err)
			return devicestore.NewMemoryStore()
		}
		client, err := valkey.NewClient(opt)
		if err != nil {
			logger.Error("failed to create valkey client, falling back to memory store", "error", err)
			return devicestore.NewMemoryStore()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
			logger.Error("valkey ping failed, falling back to memory store", "error", err)
		} else {
			logger.Info("valkey auth cache enabled", "addr", cfg.Store.Valkey.Addr)
			return devicestore.NewValkeyStore(client, "medimind")
		}
	}
	return devicestore.NewMemoryStore()
}

func buildValkeyOptions(cfg *config.Config) (valkey.ClientOption, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(cfg.Store.Valkey.Addr, "://") {
		opt, err = valkey.ParseURL(cfg.Store.Valkey.Addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{cfg.Store.Valkey.Addr}}
	}
	if err != nil {
		return valkey.ClientOption{}, err
	}
	return opt, nil
}

func provideAvatarStorage(cfg *config.Config, logger *slog.Logger) profile.ObjectStorage {
	if strings.TrimSpace(cfg.Avatar.Endpoint) == "" {
		logger.Info("avatar storage endpoint not set, using memory storage")
		return avatarstore.NewMemoryStorage()
	}
	storage, err := avatarstore.NewS3Storage(cfg.Avatar.Endpoint, cfg.Avatar.AccessKey, cfg.Avatar.SecretKey, cfg.Avatar.Bucket, cfg.Avatar.Region, logger)
	if err != nil {
		logger.Error("failed to initialize avatar storage, using memory storage", "error", err)
		return avatarstore.NewMemoryStorage()
	}
	return storage
}
