package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"lovelink_client/logger"
)

const presenceChannel = "presence"

// StatusSink receives online/offline transitions observed on the presence
// channel, typically to mirror them into the profile record.
type StatusSink interface {
	SetOnline(ctx context.Context, userID string, online bool) error
}

type presenceKind string

const (
	presenceJoin      presenceKind = "join"
	presenceLeave     presenceKind = "leave"
	presenceHeartbeat presenceKind = "heartbeat"
)

type presenceMessage struct {
	UserID string       `json:"user_id"`
	Kind   presenceKind `json:"kind"`
	At     string       `json:"at"`
}

// PresenceTracker announces the local user on the shared presence channel and
// tracks which other users are currently online. A member that misses three
// heartbeat intervals is considered gone.
type PresenceTracker struct {
	bus       Bus
	userID    string
	heartbeat time.Duration
	sink      StatusSink

	mu      sync.Mutex
	members map[string]time.Time
	started bool

	sub    BusSubscription
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPresenceTracker(bus Bus, userID string, heartbeat time.Duration, sink StatusSink) *PresenceTracker {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return &PresenceTracker{
		bus:       bus,
		userID:    userID,
		heartbeat: heartbeat,
		sink:      sink,
		members:   make(map[string]time.Time),
	}
}

// Start joins the presence channel, begins heartbeating, and marks the local
// user online through the sink.
func (t *PresenceTracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = true
	t.mu.Unlock()

	sub, err := t.bus.SubscribeRaw(ctx, presenceChannel)
	if err != nil {
		return err
	}
	t.sub = sub

	runCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel

	if err := t.announce(ctx, presenceJoin); err != nil {
		logger.Warn("presence: join announce failed", "err", err)
	}
	if t.sink != nil {
		if err := t.sink.SetOnline(ctx, t.userID, true); err != nil {
			logger.Warn("presence: set online failed", "err", err)
		}
	}

	t.wg.Add(2)
	go t.listen(runCtx)
	go t.tick(runCtx)
	return nil
}

// Stop leaves the channel and marks the local user offline. Safe to call more
// than once.
func (t *PresenceTracker) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = false
	t.mu.Unlock()

	if err := t.announce(ctx, presenceLeave); err != nil {
		logger.Warn("presence: leave announce failed", "err", err)
	}
	t.cancel()
	_ = t.sub.Close()
	t.wg.Wait()

	if t.sink != nil {
		if err := t.sink.SetOnline(ctx, t.userID, false); err != nil {
			logger.Warn("presence: set offline failed", "err", err)
			return err
		}
	}
	return nil
}

// IsOnline reports whether the given user has been seen within the liveness
// window. The local user is online while the tracker runs.
func (t *PresenceTracker) IsOnline(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if userID == t.userID {
		return t.started
	}
	seen, ok := t.members[userID]
	return ok && time.Since(seen) < 3*t.heartbeat
}

// OnlineUsers returns the ids of all users within the liveness window,
// excluding the local user.
func (t *PresenceTracker) OnlineUsers() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-3 * t.heartbeat)
	out := make([]string, 0, len(t.members))
	for id, seen := range t.members {
		if seen.After(cutoff) {
			out = append(out, id)
		}
	}
	return out
}

func (t *PresenceTracker) announce(ctx context.Context, kind presenceKind) error {
	msg := presenceMessage{
		UserID: t.userID,
		Kind:   kind,
		At:     time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return t.bus.PublishRaw(ctx, presenceChannel, payload)
}

func (t *PresenceTracker) listen(ctx context.Context) {
	defer t.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-t.sub.Messages():
			if !ok {
				return
			}
			var msg presenceMessage
			if err := json.Unmarshal(payload, &msg); err != nil || msg.UserID == "" {
				continue
			}
			if msg.UserID == t.userID {
				continue
			}
			t.mu.Lock()
			switch msg.Kind {
			case presenceLeave:
				delete(t.members, msg.UserID)
			default:
				t.members[msg.UserID] = time.Now()
			}
			t.mu.Unlock()
		}
	}
}

// tick sends our heartbeat and sweeps members that went silent.
func (t *PresenceTracker) tick(ctx context.Context) {
	defer t.wg.Done()
	ticker := time.NewTicker(t.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.announce(ctx, presenceHeartbeat); err != nil {
				logger.Debug("presence: heartbeat failed", "err", err)
			}
			cutoff := time.Now().Add(-3 * t.heartbeat)
			t.mu.Lock()
			for id, seen := range t.members {
				if seen.Before(cutoff) {
					delete(t.members, id)
				}
			}
			t.mu.Unlock()
		}
	}
}
