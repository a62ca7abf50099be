// Package lovelink_client is the embeddable client library for the LoveLink
// dating platform: profile management, swipe discovery with undo, realtime
// match detection, chat, random live pairing, and the serious matchmaking
// track. It has no user interface and no server surface; hosting
// applications drive it through the service APIs.
package lovelink_client

import (
	"context"
	"fmt"

	"lovelink_client/config"
	"lovelink_client/filestore"
	"lovelink_client/logger"
	"lovelink_client/realtime"
	"lovelink_client/services"
	"lovelink_client/store"
)

// Client bundles the per-user services over one shared backend stack.
type Client struct {
	Profile *services.ProfileService
	Swipe   *services.SwipeService
	Match   *services.MatchService
	Chat    *services.ChatService
	Live    *services.LiveService
	Serious *services.SeriousService

	Presence *realtime.PresenceTracker

	userID string
	feed   realtime.ChangeFeed
	wsFeed *realtime.WSFeed
	redis  *realtime.RedisFeed
}

// New wires a client for the given signed-in user from configuration: the
// SQL or DynamoDB data backend, S3 photo storage when a bucket is set, and
// the realtime layer (a websocket gateway when configured, the Redis feed
// otherwise).
func New(ctx context.Context, cfg *config.Config, userID string) (*Client, error) {
	logger.InitFromConfig(cfg)

	redisFeed := realtime.NewRedisFeedFromConfig(cfg)
	if err := redisFeed.Ping(ctx); err != nil {
		return nil, fmt.Errorf("realtime backend unreachable: %w", err)
	}

	c := &Client{userID: userID, redis: redisFeed, feed: redisFeed}
	if cfg.Realtime.URL != "" {
		c.wsFeed = realtime.NewWSFeed(cfg.Realtime.URL)
		c.feed = c.wsFeed
	}

	policy := store.Policy{Timeout: cfg.Request.Timeout, Retries: cfg.Request.Retries}
	var ds store.DataService
	switch cfg.Backend {
	case config.BackendDynamo:
		client, err := store.NewDynamoClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		ds = store.NewDynamoStore(client, cfg.AWS.TablePrefix, redisFeed, policy)
	default:
		db, err := store.NewSQLDB(cfg)
		if err != nil {
			return nil, err
		}
		ds = store.NewSQLStore(db, redisFeed, policy)
	}

	var files filestore.FileStore
	if cfg.S3.Bucket != "" {
		s3Store, err := filestore.NewS3StoreFromConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		files = s3Store
	}

	c.Profile = &services.ProfileService{Store: ds, Files: files}
	c.Swipe = services.NewSwipeService(ds, userID)
	c.Match = services.NewMatchService(ds, c.feed, userID)
	c.Chat = services.NewChatService(ds, c.feed, userID)
	c.Live = services.NewLiveService(ds, c.feed, redisFeed, userID, services.LiveOptions{})
	c.Serious = services.NewSeriousService(ds, userID)
	c.Presence = realtime.NewPresenceTracker(redisFeed, userID, cfg.Presence.Heartbeat, c.Profile)
	c.Chat.Presence = c.Presence
	return c, nil
}

// Start brings up the realtime side: the feed connection, match detection,
// live pairing subscriptions, and presence.
func (c *Client) Start(ctx context.Context) error {
	if c.wsFeed != nil {
		if err := c.wsFeed.Start(ctx); err != nil {
			return err
		}
	}
	if err := c.Match.Start(ctx); err != nil {
		return err
	}
	if err := c.Live.Start(ctx); err != nil {
		return err
	}
	return c.Presence.Start(ctx)
}

// Close tears the client down: presence leaves, live state is cleaned up,
// and every subscription closes. Safe to call once per client.
func (c *Client) Close() error {
	ctx := context.Background()
	if err := c.Presence.Stop(ctx); err != nil {
		logger.Warn("client: presence stop failed", "err", err)
	}
	if err := c.Live.Close(); err != nil {
		logger.Warn("client: live close failed", "err", err)
	}
	c.Match.Stop()
	if c.wsFeed != nil {
		_ = c.wsFeed.Close()
	}
	return c.redis.Close()
}
