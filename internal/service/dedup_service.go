package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hero-mint-service/internal/core/domain"
	"hero-mint-service/internal/core/ports"
	"hero-mint-service/pkg/apperror"

	"github.com/rs/zerolog"
)

// DeduplicatorImpl implements ports.Deduplicator with two layers: the Redis
// outcome cache, then the receipts table. The receipt is authoritative; the
// cache only saves the database round trip.
type DeduplicatorImpl struct {
	receipts ports.ReceiptRepository
	cache    ports.IdempotencyCache // nil when Redis is disabled
	ttl      time.Duration
	log      zerolog.Logger
}

// NewDeduplicator creates a new DeduplicatorImpl. cache may be nil.
func NewDeduplicator(receipts ports.ReceiptRepository, cache ports.IdempotencyCache, ttl time.Duration, log zerolog.Logger) *DeduplicatorImpl {
	return &DeduplicatorImpl{
		receipts: receipts,
		cache:    cache,
		ttl:      ttl,
		log:      log.With().Str("component", "dedup").Logger(),
	}
}

// FindExistingOutcome returns the outcome of a completed mint for the key, or
// nil if the key has not produced a receipt.
func (d *DeduplicatorImpl) FindExistingOutcome(ctx context.Context, userID, idempotencyKey string) (*domain.MintOutcome, error) {
	cacheKey := domain.BuildOutcomeCacheKey(userID, idempotencyKey)

	// Layer 1: Redis
	if d.cache != nil {
		cached, err := d.cache.Get(ctx, cacheKey)
		if err != nil {
			d.log.Warn().Err(err).Str("key", cacheKey).Msg("redis outcome check failed, falling through to DB")
		}
		if cached != nil {
			var outcome domain.MintOutcome
			if err := json.Unmarshal(cached, &outcome); err == nil {
				outcome.Replayed = true
				return &outcome, nil
			}
			d.log.Warn().Str("key", cacheKey).Msg("discarding undecodable cached outcome")
		}
	}

	// Layer 2: receipts
	receipt, err := d.receipts.GetByIdempotencyKey(ctx, nil, userID, idempotencyKey)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("receipt lookup: %w", err))
	}
	if receipt == nil {
		return nil, nil
	}

	outcome := receipt.Outcome()
	d.Remember(ctx, userID, idempotencyKey, outcome)
	outcome.Replayed = true
	return outcome, nil
}

// Remember caches outcome. Failures are logged and otherwise ignored.
func (d *DeduplicatorImpl) Remember(ctx context.Context, userID, idempotencyKey string, outcome *domain.MintOutcome) {
	if d.cache == nil || outcome == nil {
		return
	}
	cacheKey := domain.BuildOutcomeCacheKey(userID, idempotencyKey)
	b, err := json.Marshal(outcome)
	if err != nil {
		d.log.Warn().Err(err).Str("key", cacheKey).Msg("failed to encode outcome")
		return
	}
	if err := d.cache.Set(ctx, cacheKey, b, d.ttl); err != nil {
		d.log.Warn().Err(err).Str("key", cacheKey).Msg("failed to cache outcome in redis")
	}
}
