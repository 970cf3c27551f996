// Package app wires the storage and integration clients shared by the API
// server and the admin CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"barberbook/internal/config"
	"barberbook/internal/database"
	"barberbook/internal/database/postgres"
	"barberbook/internal/domain"
	"barberbook/internal/google"
	"barberbook/internal/repository"
	"barberbook/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Store is what both drivers provide.
type Store interface {
	domain.Repository
	worker.SyncQueue
	CountSyncTasks(ctx context.Context) (map[string]int, error)
	RequeueFailedSyncTasks(ctx context.Context) (int, error)
}

var (
	_ Store = (*database.DB)(nil)
	_ Store = (*postgres.Store)(nil)
)

// OpenStore connects to the configured database driver.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (Store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		st, err := postgres.Open(ctx, cfg.Database.Postgres.DSN(), cfg.Database.Postgres.MaxConnections, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return st, nil
	default:
		db, err := database.NewDB(cfg.Database.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.Database.Path, err)
		}
		return db, nil
	}
}

// ConnectRedis returns nil when redis is not configured or unreachable.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig, logger *zerolog.Logger) *redis.Client {
	if cfg.Address == "" {
		return nil
	}
	client := repository.NewRedisClient(cfg)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}
	logger.Info().Str("addr", cfg.Address).Msg("redis connected")
	return client
}

// SlotCache returns nil without a redis client.
func SlotCache(cfg config.BookingConfig, client *redis.Client) domain.SlotCache {
	if client == nil {
		return nil
	}
	return repository.NewRedisSlotCache(client, time.Duration(cfg.SlotCacheTTL)*time.Second)
}

// ConnectSheets returns nil when the Sheets mirror is not configured or fails to start.
func ConnectSheets(ctx context.Context, cfg config.GoogleConfig, logger *zerolog.Logger) *google.SheetsService {
	if cfg.GoogleCredentialsFile == "" || cfg.AppointmentsSpreadSheetID == "" {
		return nil
	}
	sheets, err := google.NewSheetsService(ctx, cfg.GoogleCredentialsFile, cfg.AppointmentsSpreadSheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheets.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets unreachable, continuing without sheets")
		return nil
	}
	logger.Info().Msg("google sheets connected")
	return sheets
}
