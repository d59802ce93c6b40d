package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarlonX-a/serverless/internal/config"
	"github.com/MarlonX-a/serverless/internal/idempotency"
	"github.com/MarlonX-a/serverless/internal/rabbitmq"
)

// Service holds the dependencies shared by the producer processes.
type Service struct {
	DB     *gorm.DB
	Logger *zap.Logger
	RMQ    *rabbitmq.Connection
	// Ledger answers the pre-insert duplicate check. It is Redis-backed when a
	// cache is configured.
	Ledger idempotency.Ledger
	// TxLedger records keys inside the entity insert transaction.
	TxLedger *idempotency.GormLedger

	redis *redis.Client
}

// NewService creates a new service instance with all dependencies
func NewService(ctx context.Context, db *gorm.DB, logger *zap.Logger, rmq *rabbitmq.Connection, cache config.CacheConfig) (*Service, error) {
	gormLedger := idempotency.NewGormLedger(db)
	s := &Service{
		DB:       db,
		Logger:   logger,
		RMQ:      rmq,
		Ledger:   gormLedger,
		TxLedger: gormLedger,
	}
	if cache.URL == "" {
		return s, nil
	}

	opts, err := redis.ParseURL(cache.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_URL: %w", err)
	}
	s.redis = redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.redis.Ping(pingCtx).Err(); err != nil {
		// The cached ledger falls back to the database on every cache error
		logger.Warn("Idempotency cache unreachable at startup", zap.Error(err))
	} else {
		logger.Info("Idempotency cache connected", zap.String("addr", opts.Addr))
	}
	s.Ledger = idempotency.NewCachedLedger(gormLedger, s.redis, cache.TTL, logger)
	return s, nil
}

// Close releases the cache client. The database and bus are closed by their owners.
func (s *Service) Close() {
	if s.redis == nil {
		return
	}
	if err := s.redis.Close(); err != nil {
		s.Logger.Error("Error closing idempotency cache", zap.Error(err))
	}
}
