package config

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const (
	redisSettingsKey     = "vpnrotator:settings"
	redisSettingsChannel = "vpnrotator:settings:updates"
	redisOpTimeout       = 5 * time.Second
)

// settingsPublisher is the part of the redis client used to share settings.
type settingsPublisher interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type redisSyncState struct {
	mu        sync.RWMutex
	publisher settingsPublisher
	ctx       context.Context
	cancel    context.CancelFunc
}

var globalRedisSync redisSyncState

// EnableRedisSynchronization shares settings between instances. Remote
// settings win at startup; otherwise the local settings are published.
func EnableRedisSynchronization(ctx context.Context, client *redis.Client) {
	if client == nil {
		log.Warn("Settings synchronization disabled: redis client is nil")
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	syncCtx, cancel := context.WithCancel(ctx)
	if !attachPublisher(syncCtx, cancel, client) {
		cancel()
		return
	}

	loaded, err := loadConfigFromRedis(syncCtx, client)
	if err != nil {
		log.Error("Settings sync: failed to load settings from redis", "error", err)
	}

	if !loaded {
		if payload, err := json.Marshal(GetConfig()); err != nil {
			log.Error("Settings sync: failed to serialize settings", "error", err)
		} else if err := broadcastConfigUpdate(payload); err != nil {
			log.Error("Settings sync: failed to publish settings", "error", err)
		}
	}

	go subscribeToConfigUpdates(syncCtx, client)
}

// DisableRedisSynchronization stops the subscriber and detaches the publisher.
func DisableRedisSynchronization() {
	globalRedisSync.mu.Lock()
	defer globalRedisSync.mu.Unlock()

	if globalRedisSync.cancel != nil {
		globalRedisSync.cancel()
	}
	globalRedisSync.publisher = nil
	globalRedisSync.ctx = nil
	globalRedisSync.cancel = nil
}

func attachPublisher(ctx context.Context, cancel context.CancelFunc, publisher settingsPublisher) bool {
	globalRedisSync.mu.Lock()
	defer globalRedisSync.mu.Unlock()

	if globalRedisSync.publisher != nil {
		return false
	}
	globalRedisSync.publisher = publisher
	globalRedisSync.ctx = ctx
	globalRedisSync.cancel = cancel
	return true
}

func loadConfigFromRedis(ctx context.Context, client *redis.Client) (bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	payload, err := client.Get(opCtx, redisSettingsKey).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, applyRemotePayload([]byte(payload))
}

func subscribeToConfigUpdates(ctx context.Context, client *redis.Client) {
	pubsub := client.Subscribe(ctx, redisSettingsChannel)
	defer pubsub.Close()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) || ctx.Err() != nil {
				return
			}
			log.Error("Settings sync: subscription error", "error", err)
			time.Sleep(time.Second)
			continue
		}

		if err := applyRemotePayload([]byte(msg.Payload)); err != nil {
			log.Error("Settings sync: failed to apply remote update", "error", err)
		}
	}
}

func applyRemotePayload(payload []byte) error {
	var cfg Config
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return err
	}
	return applyConfigUpdate(cfg, configUpdateOptions{persistToFile: true, source: "redis"})
}

func broadcastConfigUpdate(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}

	globalRedisSync.mu.RLock()
	publisher := globalRedisSync.publisher
	ctx := globalRedisSync.ctx
	globalRedisSync.mu.RUnlock()

	if publisher == nil {
		return nil
	}
	if ctx == nil || ctx.Err() != nil {
		ctx = context.Background()
	}

	opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	if err := publisher.Set(opCtx, redisSettingsKey, payload, 0).Err(); err != nil {
		return err
	}
	return publisher.Publish(opCtx, redisSettingsChannel, payload).Err()
}
