package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ehtisham-afzal/outline/internal/log"
)

// Remote is the payload of a notification that arrived from another
// process. Relays never forward Remote payloads again.
type Remote struct {
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

// Decode unmarshals the original payload into v.
func (r Remote) Decode(v any) error {
	return json.Unmarshal(r.Payload, v)
}

type envelope struct {
	Origin  string          `json:"origin"`
	Topic   Topic           `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// RedisRelay mirrors bus topics across processes over a Redis pub/sub
// channel.
type RedisRelay struct {
	client  *redis.Client
	channel string
	origin  string
	bus     *Bus
	subs    []*Subscription
	timeout time.Duration
}

// NewRedisRelay connects to redisURL and relays through channel.
func NewRedisRelay(redisURL, channel string, bus *Bus) (*RedisRelay, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisRelayWithClient(client, channel, bus), nil
}

// NewRedisRelayWithClient creates a relay from an existing Redis client.
func NewRedisRelayWithClient(client *redis.Client, channel string, bus *Bus) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		bus:     bus,
		timeout: 5 * time.Second,
	}
}

// Origin identifies this relay in published envelopes.
func (r *RedisRelay) Origin() string { return r.origin }

// Forward publishes local notifications on topics to Redis.
func (r *RedisRelay) Forward(topics ...Topic) {
	for _, topic := range topics {
		r.subs = append(r.subs, r.bus.Subscribe(topic, r.publish))
	}
}

func (r *RedisRelay) publish(topic Topic, payload any) {
	if _, ok := payload.(Remote); ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.Publish(ctx, topic, payload); err != nil {
		log.Get().Warn("relay publish failed", zap.String("topic", string(topic)), zap.Error(err))
	}
}

// Publish sends one notification to the Redis channel.
func (r *RedisRelay) Publish(ctx context.Context, topic Topic, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	data, err := json.Marshal(envelope{Origin: r.origin, Topic: topic, Payload: raw})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Run receives notifications from other processes and republishes them on
// the local bus as Remote payloads until ctx is done. ready, when non-nil,
// is closed once the channel subscription is active.
func (r *RedisRelay) Run(ctx context.Context, ready chan<- struct{}) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	if ready != nil {
		close(ready)
	}

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Get().Warn("relay dropped malformed message", zap.Error(err))
				continue
			}
			if env.Origin == r.origin {
				continue
			}
			r.bus.Publish(env.Topic, Remote{Origin: env.Origin, Payload: env.Payload})
		}
	}
}

// Close stops forwarding and closes the Redis connection.
func (r *RedisRelay) Close() error {
	for _, sub := range r.subs {
		sub.Close()
	}
	r.subs = nil
	return r.client.Close()
}

// Ping checks if Redis is reachable.
func (r *RedisRelay) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
