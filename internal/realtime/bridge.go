package realtime

import (
	"context"

	"voting-platform/pkg/redis"
)

// RedisBridge relays poll updates through Redis pub/sub so every instance's hub sees them
type RedisBridge struct {
	client  *redis.Client
	channel string
	hub     *Hub
}

func NewRedisBridge(client *redis.Client, hub *Hub) *RedisBridge {
	return &RedisBridge{
		client:  client,
		channel: client.KeyBuilder.ChannelPollEvents(),
		hub:     hub,
	}
}

func (b *RedisBridge) Publish(ctx context.Context, payload []byte) error {
	return b.client.Publish(ctx, b.channel, payload)
}

// Run subscribes to the channel and broadcasts each message until ctx ends
func (b *RedisBridge) Run(ctx context.Context) error {
	return b.client.Subscribe(ctx, b.channel, b.hub.Broadcast)
}
