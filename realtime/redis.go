package realtime

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"lovelink_client/config"
	"lovelink_client/logger"
)

const (
	feedChannelPrefix = "feed:"
	busChannelPrefix  = "bus:"
)

// RedisFeed implements ChangeFeed, Publisher and Bus over Redis pub/sub.
// Each collection maps to one channel; filtering happens on delivery.
type RedisFeed struct {
	client *redis.Client
}

// NewRedisFeed wraps an existing Redis client.
func NewRedisFeed(client *redis.Client) *RedisFeed {
	return &RedisFeed{client: client}
}

// NewRedisFeedFromConfig builds the client from app config.
func NewRedisFeedFromConfig(cfg *config.Config) *RedisFeed {
	opts := &redis.Options{Addr: cfg.Redis.Addr}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisFeed{client: redis.NewClient(opts)}
}

// Client exposes the underlying Redis client.
func (f *RedisFeed) Client() *redis.Client { return f.client }

// Close releases the underlying Redis connection.
func (f *RedisFeed) Close() error { return f.client.Close() }

func (f *RedisFeed) Ping(ctx context.Context) error {
	return f.client.Ping(ctx).Err()
}

// Publish emits a change event on the collection's channel.
func (f *RedisFeed) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, feedChannelPrefix+ev.Collection, payload).Err()
}

// Subscribe delivers matching change events for one collection.
func (f *RedisFeed) Subscribe(ctx context.Context, collection string, filter Filter, types ...EventType) (Subscription, error) {
	ps := f.client.Subscribe(ctx, feedChannelPrefix+collection)
	// force the subscription onto the wire before returning
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	sub := &redisSubscription{ps: ps, events: make(chan Event, 32)}
	go func() {
		defer close(sub.events)
		for msg := range ps.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Warn("changefeed: dropping undecodable event", "collection", collection, "err", err)
				continue
			}
			if !typeMatches(ev.Type, types) || !filter.Matches(ev) {
				continue
			}
			select {
			case sub.events <- ev:
			default:
				logger.Warn("changefeed: slow consumer, dropping event", "collection", collection, "type", ev.Type)
			}
		}
	}()
	return sub, nil
}

type redisSubscription struct {
	ps     *redis.PubSub
	events chan Event
}

func (s *redisSubscription) Events() <-chan Event { return s.events }
func (s *redisSubscription) Close() error         { return s.ps.Close() }

// PublishRaw sends an ephemeral payload on a bus channel.
func (f *RedisFeed) PublishRaw(ctx context.Context, channel string, payload []byte) error {
	return f.client.Publish(ctx, busChannelPrefix+channel, payload).Err()
}

// SubscribeRaw delivers raw payloads from a bus channel.
func (f *RedisFeed) SubscribeRaw(ctx context.Context, channel string) (BusSubscription, error) {
	ps := f.client.Subscribe(ctx, busChannelPrefix+channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	sub := &redisBusSubscription{ps: ps, msgs: make(chan []byte, 32)}
	go func() {
		defer close(sub.msgs)
		for msg := range ps.Channel() {
			select {
			case sub.msgs <- []byte(msg.Payload):
			default:
				logger.Warn("bus: slow consumer, dropping payload", "channel", channel)
			}
		}
	}()
	return sub, nil
}

type redisBusSubscription struct {
	ps   *redis.PubSub
	msgs chan []byte
}

func (s *redisBusSubscription) Messages() <-chan []byte { return s.msgs }
func (s *redisBusSubscription) Close() error            { return s.ps.Close() }
