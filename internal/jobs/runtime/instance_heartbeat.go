package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"vpnrotator/internal/rotation"
)

const (
	InstanceHeartbeatKeyPrefix = "vpnrotator:instance:"
	DefaultHeartbeatInterval   = 15 * time.Second
	DefaultHeartbeatTTL        = 30 * time.Second
)

var instanceID = generateInstanceID()

func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d-%d", hostname, os.Getpid(), time.Now().UnixNano())
}

func InstanceID() string {
	return instanceID
}

type heartbeatClient interface {
	SetEx(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// InstanceStatus is what each running instance advertises in redis.
type InstanceStatus struct {
	InstanceID string `json:"instance_id"`
	Connection string `json:"connection_state"`
	ProxyID    string `json:"proxy_id,omitempty"`
	AutoRotate bool   `json:"auto_rotate"`
	SeenAt     int64  `json:"seen_at"`
}

func StartInstanceHeartbeat(ctx context.Context, client heartbeatClient, snapshot func() rotation.Snapshot, interval, ttl time.Duration) {
	heartbeatKey := InstanceHeartbeatKeyPrefix + instanceID

	sendHeartbeat := func() {
		snap := snapshot()
		status := InstanceStatus{
			InstanceID: instanceID,
			Connection: string(snap.Connection),
			AutoRotate: snap.AutoRotate,
			SeenAt:     time.Now().Unix(),
		}
		if snap.Proxy != nil {
			status.ProxyID = snap.Proxy.ID
		}

		payload, err := json.Marshal(status)
		if err != nil {
			log.Error("Failed to encode instance heartbeat", "error", err)
			return
		}
		if err := client.SetEx(ctx, heartbeatKey, payload, ttl).Err(); err != nil {
			log.Error("Failed to update instance heartbeat", "key", heartbeatKey, "error", err)
		}
	}

	sendHeartbeat()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sendHeartbeat()
		}
	}
}

// ListInstances returns the status of every instance whose heartbeat has not
// expired.
func ListInstances(ctx context.Context, client *redis.Client) ([]InstanceStatus, error) {
	var (
		statuses []InstanceStatus
		cursor   uint64
	)

	for {
		keys, next, err := client.Scan(ctx, cursor, InstanceHeartbeatKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}

		for _, key := range keys {
			raw, err := client.Get(ctx, key).Result()
			if err != nil {
				continue
			}
			var status InstanceStatus
			if err := json.Unmarshal([]byte(raw), &status); err != nil {
				continue
			}
			statuses = append(statuses, status)
		}

		if next == 0 {
			return statuses, nil
		}
		cursor = next
	}
}
