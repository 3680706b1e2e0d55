package locks

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/municipio/pagecms/internal/logging"
	"github.com/municipio/pagecms/pkg/interfaces"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix     = "pagecms:lock:"
	defaultRedisLeaseTTL   = 30 * time.Second
	defaultRedisRetryDelay = 50 * time.Millisecond
	releaseTimeout         = 2 * time.Second
)

// releaseScript deletes the key only when it still carries the holder token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisOptions configures the distributed locker.
type RedisOptions struct {
	Prefix     string
	LeaseTTL   time.Duration
	RetryDelay time.Duration
	Logger     interfaces.Logger
}

// RedisLocker grants leases shared by every process talking to the same Redis. Leases
// expire after LeaseTTL so a crashed holder cannot block a page forever.
type RedisLocker struct {
	client     redis.UniversalClient
	prefix     string
	ttl        time.Duration
	retryDelay time.Duration
	logger     interfaces.Logger
}

var _ Locker = (*RedisLocker)(nil)

func NewRedisLocker(client redis.UniversalClient, opts RedisOptions) *RedisLocker {
	l := &RedisLocker{
		client:     client,
		prefix:     opts.Prefix,
		ttl:        opts.LeaseTTL,
		retryDelay: opts.RetryDelay,
		logger:     logging.Ensure(opts.Logger),
	}
	if strings.TrimSpace(l.prefix) == "" {
		l.prefix = defaultRedisPrefix
	}
	if l.ttl <= 0 {
		l.ttl = defaultRedisLeaseTTL
	}
	if l.retryDelay <= 0 {
		l.retryDelay = defaultRedisRetryDelay
	}
	return l
}

// NewRedisLockerFromURL parses a redis:// url and verifies connectivity.
func NewRedisLockerFromURL(ctx context.Context, url string, opts RedisOptions) (*RedisLocker, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("locks: redis url is required")
	}
	parsed, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(parsed)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedisLocker(client, opts), nil
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	fullKey := l.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retryDelay)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			return nil, unavailable(key, err)
		}
		if ok {
			return l.releaser(fullKey, token), nil
		}
		select {
		case <-ctx.Done():
			return nil, unavailable(key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) releaser(fullKey, token string) Unlock {
	released := false
	return func() {
		if released {
			return
		}
		released = true
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			l.logger.Warn("locks.redis.release_failed", "key", fullKey, "error", err)
		}
	}
}
