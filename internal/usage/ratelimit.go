package usage

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// RateLimiter is a fixed-window per-identifier request limiter.
type RateLimiter interface {
	// Allow consumes one request slot for key, reporting whether the
	// request may proceed.
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter counts requests in Redis so the window is shared across
// instances.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisLimiter creates a Redis-backed limiter.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := "ratelimit:" + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, eris.Wrap(err, "usage: rate counter increment")
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			zap.L().Warn("rate window expiry not set", zap.String("key", key), zap.Error(err))
		}
	}

	return count <= int64(l.limit), nil
}

// MemoryLimiter is the single-instance fallback when Redis is not
// configured. Expired windows are evicted by a background sweep.
type MemoryLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*memoryWindow
	done    chan struct{}
	once    sync.Once
}

type memoryWindow struct {
	count   int
	startAt time.Time
}

// NewMemoryLimiter creates an in-memory limiter and starts its eviction
// sweep. Call Close when done.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	l := &MemoryLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string]*memoryWindow),
		done:    make(chan struct{}),
	}
	go l.evictLoop()
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.startAt) >= l.window {
		l.windows[key] = &memoryWindow{count: 1, startAt: now}
		return true, nil
	}

	w.count++
	return w.count <= l.limit, nil
}

func (l *MemoryLimiter) evictLoop() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.evictExpired()
		}
	}
}

func (l *MemoryLimiter) evictExpired() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.windows {
		if now.Sub(w.startAt) >= l.window {
			delete(l.windows, key)
		}
	}
}

// Close stops the eviction sweep.
func (l *MemoryLimiter) Close() {
	l.once.Do(func() { close(l.done) })
}
