package repository

import (
	"context"
	"sync"
	"time"

	"github.com/GoPolymarket/safeboard/internal/pkg/apperrors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// OperatorLock serialises runs that submit from the same operator key.
// Acquire never waits: a held lock is reported as LOCKED.
type OperatorLock interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

func lockedError(key string) error {
	return apperrors.New(apperrors.ErrLocked, "operator is busy with another run", nil).WithDetail("operator", key)
}

// LocalOperatorLock only serialises runs inside this process.
type LocalOperatorLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalOperatorLock() *LocalOperatorLock {
	return &LocalOperatorLock{held: make(map[string]struct{})}
}

func (l *LocalOperatorLock) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, lockedError(key)
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

// Deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisOperatorLock serialises runs across processes sharing one Redis.
type RedisOperatorLock struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisOperatorLock(client *redis.Client, prefix string, ttl time.Duration) *RedisOperatorLock {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisOperatorLock{client: client, prefix: prefix, ttl: ttl}
}

func (l *RedisOperatorLock) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.prefix+key, token, l.ttl).Result()
	if err != nil {
		return nil, apperrors.New(apperrors.ErrUpstream, "failed to acquire operator lock", err)
	}
	if !ok {
		return nil, lockedError(key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, l.client, []string{l.prefix + key}, token).Err()
		})
	}, nil
}
