package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// NonceStore implements ports.NonceStore using Redis SET NX. The stored value
// is the idempotency key that claimed the nonce, so a retry of the same mint
// may present its nonce again.
type NonceStore struct {
	client *goredis.Client
	prefix string
}

// NewNonceStore creates a new Redis-backed nonce store.
func NewNonceStore(client *goredis.Client) *NonceStore {
	return &NonceStore{
		client: client,
		prefix: "nonce:",
	}
}

// Claim binds nonce to owner for ttl. It returns true if the nonce was free
// or already bound to owner, false if another owner holds it.
func (s *NonceStore) Claim(ctx context.Context, userID, nonce, owner string, ttl time.Duration) (bool, error) {
	key := s.prefix + userID + ":" + nonce
	set, err := s.client.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis nonce claim: %w", err)
	}
	if set {
		return true, nil
	}

	holder, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			// Expired between SETNX and GET; try once more.
			return s.client.SetNX(ctx, key, owner, ttl).Result()
		}
		return false, fmt.Errorf("redis nonce lookup: %w", err)
	}
	return holder == owner, nil
}
