package services

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// fanoutEnvelope is what travels between instances on the Redis channel
type fanoutEnvelope struct {
	Room       string          `json:"room"`
	Event      string          `json:"event"`
	InstanceID string          `json:"instanceId"`
	Payload    json.RawMessage `json:"payload"`
}

// RedisPublisher delivers to local connections immediately and mirrors the
// event onto a Redis channel so other instances can deliver it to theirs.
type RedisPublisher struct {
	client     *redis.Client
	channel    string
	instanceID string
	local      Publisher
}

// NewRedisClient parses url and checks the connection
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func NewRedisPublisher(client *redis.Client, channel, instanceID string, local Publisher) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel, instanceID: instanceID, local: local}
}

func (p *RedisPublisher) Publish(ctx context.Context, room, event string, payload any) error {
	localErr := p.local.Publish(ctx, room, event, payload)

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	data, err := json.Marshal(fanoutEnvelope{Room: room, Event: event, InstanceID: p.instanceID, Payload: raw})
	if err != nil {
		return fmt.Errorf("failed to marshal fan-out envelope: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s to redis: %w", event, err)
	}
	return localErr
}

// Relay delivers events published by other instances to local connections
// until ctx is cancelled.
func (p *RedisPublisher) Relay(ctx context.Context) error {
	sub := p.client.Subscribe(ctx, p.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", p.channel, err)
	}
	log := serviceLog("fanout")
	log.Info().Str("channel", p.channel).Str("instance", p.instanceID).Msg("relay subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			p.deliver(ctx, msg.Payload)
		}
	}
}

func (p *RedisPublisher) deliver(ctx context.Context, data string) {
	var env fanoutEnvelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		serviceLog("fanout").Warn().Err(err).Msg("dropping malformed fan-out message")
		return
	}
	// Own messages were already delivered locally
	if env.InstanceID == p.instanceID {
		return
	}
	publishBestEffort(ctx, p.local, env.Room, env.Event, env.Payload)
}
