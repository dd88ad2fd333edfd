package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"vpnrotator/internal/domain"
	"vpnrotator/internal/support"
)

const (
	cacheKeyPrefix  = "vpnrotator:report:"
	DefaultCacheTTL = 6 * time.Hour
)

var ErrCacheMiss = errors.New("report cache miss")

type Store interface {
	Load(ctx context.Context, key string) (domain.SecurityReport, error)
	Save(ctx context.Context, key string, report domain.SecurityReport, ttl time.Duration) error
}

type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type RedisStore struct {
	client redisKV
}

func NewRedisStore(client redisKV) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Load(ctx context.Context, key string) (domain.SecurityReport, error) {
	raw, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return domain.SecurityReport{}, ErrCacheMiss
	}
	if err != nil {
		return domain.SecurityReport{}, err
	}

	var report domain.SecurityReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return domain.SecurityReport{}, fmt.Errorf("decode cached report: %w", err)
	}
	return report, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, report domain.SecurityReport, ttl time.Duration) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, payload, ttl).Err()
}

// CachedGenerator memoizes successful reports by proxy content and collapses
// concurrent requests for the same proxy into one upstream call.
type CachedGenerator struct {
	inner Generator
	store Store
	ttl   time.Duration
	group singleflight.Group
}

func NewCachedGenerator(inner Generator, store Store, ttl time.Duration) *CachedGenerator {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedGenerator{inner: inner, store: store, ttl: ttl}
}

func (c *CachedGenerator) Generate(ctx context.Context, proxy domain.ProxyDescriptor) (domain.SecurityReport, error) {
	key := cacheKey(proxy)

	if c.store != nil {
		report, err := c.store.Load(ctx, key)
		if err == nil {
			return report, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			log.Warn("report cache read failed", "key", key, "error", err)
		}
	}

	value, err, _ := c.group.Do(key, func() (interface{}, error) {
		report, err := c.inner.Generate(ctx, proxy)
		if err != nil {
			return domain.SecurityReport{}, err
		}
		if c.store != nil {
			if saveErr := c.store.Save(ctx, key, report, c.ttl); saveErr != nil {
				log.Warn("report cache write failed", "key", key, "error", saveErr)
			}
		}
		return report, nil
	})
	if err != nil {
		return domain.SecurityReport{}, err
	}
	return value.(domain.SecurityReport), nil
}

// Ids are reissued on every start, so the key covers everything the prompt sees.
func cacheKey(proxy domain.ProxyDescriptor) string {
	fingerprint := fmt.Sprintf("%s|%s|%s|%s|%d", proxy.Country, proxy.City, proxy.Protocol, proxy.Encryption, proxy.Latency)
	return cacheKeyPrefix + strconv.FormatUint(support.HashString(fingerprint), 16)
}
