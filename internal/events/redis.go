package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Notifier = (*Redis)(nil)

// DefaultChannel is the pub/sub channel feed events travel on.
const DefaultChannel = "reporater:feed"

// Redis publishes events over Redis pub/sub so every server instance behind
// a load balancer refreshes its live feeds, not only the one that took the write.
type Redis struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewRedis connects to redisURL (e.g. "redis://localhost:6379/0") and pings it.
func NewRedis(redisURL string, logger *slog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("events: parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("events: connect to redis: %w", err)
	}

	return NewRedisWithClient(client, logger), nil
}

// NewRedisWithClient builds a notifier around an existing client.
func NewRedisWithClient(client *redis.Client, logger *slog.Logger) *Redis {
	return &Redis{
		client:  client,
		channel: DefaultChannel,
		logger:  logger,
	}
}

func (r *Redis) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("events: publish %s: %w", ev.Kind, err)
	}
	return nil
}

// Subscribe waits for Redis to confirm the subscription before returning, so
// an event published right after Subscribe returns is not missed.
func (r *Redis) Subscribe(ctx context.Context) (<-chan Event, error) {
	ps := r.client.Subscribe(ctx, r.channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("events: subscribe to %s: %w", r.channel, err)
	}

	out := make(chan Event, subscriberBuffer)
	go func() {
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					r.logger.Warn("dropping malformed feed event",
						slog.String("payload", msg.Payload),
						slog.String("error", err.Error()),
					)
					continue
				}
				select {
				case out <- ev:
				default: // refetch already pending
				}
			}
		}
	}()
	return out, nil
}

// Close closes the client, ending every subscription. Later calls return
// the first call's result.
func (r *Redis) Close() error {
	r.closeOnce.Do(func() { r.closeErr = r.client.Close() })
	return r.closeErr
}

// Ping checks if Redis is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
