package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// JobLock implements ports.JobLock with SET NX and a per-acquisition token.
type JobLock struct {
	client *goredis.Client
	prefix string

	mu     sync.Mutex
	tokens map[string]string
}

// NewJobLock creates a Redis-backed job lock.
func NewJobLock(client *goredis.Client) *JobLock {
	return &JobLock{
		client: client,
		prefix: "lock:",
		tokens: make(map[string]string),
	}
}

// Acquire tries to take the lock for ttl. It does not wait.
func (l *JobLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis lock acquire: %w", err)
	}
	if ok {
		l.mu.Lock()
		l.tokens[key] = token
		l.mu.Unlock()
	}
	return ok, nil
}

// Release drops the lock if this instance still owns it. A lock that expired
// and was taken by another instance is left alone.
func (l *JobLock) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	token, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()
	if !ok {
		return nil
	}

	if err := releaseScript.Run(ctx, l.client, []string{l.prefix + key}, token).Err(); err != nil {
		return fmt.Errorf("redis lock release: %w", err)
	}
	return nil
}
