package reminders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisSweepLock is a best-effort cross-instance sweep lock backed by
// Redis SET NX with a TTL. The TTL keeps a crashed holder from blocking
// sweeps forever.
type RedisSweepLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	token  string
}

// NewRedisSweepLock creates a lock on the given key.
func NewRedisSweepLock(client *redis.Client, key string, ttl time.Duration) *RedisSweepLock {
	if key == "" {
		key = "habitping:sweep:lock"
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisSweepLock{client: client, key: key, ttl: ttl}
}

// TryAcquire takes the lock if no other instance holds it.
func (l *RedisSweepLock) TryAcquire(ctx context.Context) (bool, error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, err
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Release deletes the lock key if this instance still owns it. A lock that
// expired and was re-acquired elsewhere is left alone.
func (l *RedisSweepLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	defer func() { l.token = "" }()

	val, err := l.client.Get(ctx, l.key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if val != l.token {
		return nil
	}
	return l.client.Del(ctx, l.key).Err()
}
