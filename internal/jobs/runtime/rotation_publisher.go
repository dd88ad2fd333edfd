package runtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"vpnrotator/internal/domain"
	"vpnrotator/internal/rotation"
)

const (
	RotationChannel    = "vpnrotator:rotations"
	CurrentProxyKey    = "vpnrotator:current_proxy"
	publishTimeout     = 5 * time.Second
	publisherQueueSize = 256
)

type publisherClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RotationEvent is the payload published on RotationChannel.
type RotationEvent struct {
	RequestID   string                 `json:"request_id"`
	Reason      string                 `json:"reason"`
	FromProxyID string                 `json:"from_proxy_id,omitempty"`
	Proxy       domain.ProxyDescriptor `json:"proxy"`
	At          time.Time              `json:"at"`
}

// RotationPublisher announces rotations over redis pub/sub and keeps the
// current proxy under CurrentProxyKey.
type RotationPublisher struct {
	client publisherClient
	queue  chan RotationEvent
}

func NewRotationPublisher(client publisherClient) *RotationPublisher {
	return &RotationPublisher{
		client: client,
		queue:  make(chan RotationEvent, publisherQueueSize),
	}
}

func (p *RotationPublisher) RecordRotation(r rotation.Rotation) {
	event := RotationEvent{
		RequestID:   r.RequestID,
		Reason:      string(r.Reason),
		FromProxyID: r.From,
		Proxy:       r.Proxy,
		At:          r.At.UTC(),
	}

	select {
	case p.queue <- event:
	default:
		log.Warn("Rotation publisher queue full, dropping event", "request_id", r.RequestID)
	}
}

func (p *RotationPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-p.queue:
			if err := p.publish(ctx, event); err != nil {
				log.Error("Failed to publish rotation", "request_id", event.RequestID, "error", err)
			}
		}
	}
}

func (p *RotationPublisher) publish(ctx context.Context, event RotationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	current, err := json.Marshal(event.Proxy)
	if err != nil {
		return err
	}
	if err := p.client.Set(opCtx, CurrentProxyKey, current, 0).Err(); err != nil {
		return err
	}
	return p.client.Publish(opCtx, RotationChannel, payload).Err()
}
