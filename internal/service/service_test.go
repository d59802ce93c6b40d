package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MarlonX-a/serverless/internal/config"
	"github.com/MarlonX-a/serverless/internal/idempotency"
)

func TestNewService_WithoutCacheUsesDatabaseLedger(t *testing.T) {
	s, err := NewService(context.Background(), nil, zap.NewNop(), nil, config.CacheConfig{})
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.Ledger.(*idempotency.GormLedger)
	assert.True(t, ok)
	assert.Same(t, s.TxLedger, s.Ledger)
}

func TestNewService_WithCacheWrapsLedger(t *testing.T) {
	// Nothing listens here; startup only warns
	s, err := NewService(context.Background(), nil, zap.NewNop(), nil, config.CacheConfig{
		URL: "redis://127.0.0.1:1/0",
		TTL: time.Minute,
	})
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.Ledger.(*idempotency.CachedLedger)
	assert.True(t, ok)
	assert.NotNil(t, s.TxLedger)
}

func TestNewService_RejectsBadCacheURL(t *testing.T) {
	_, err := NewService(context.Background(), nil, zap.NewNop(), nil, config.CacheConfig{URL: "not-a-redis-url"})
	assert.Error(t, err)
}
