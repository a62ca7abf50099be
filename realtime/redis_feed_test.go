package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFeed(t *testing.T) *RedisFeed {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisFeed(client)
}

func rawRow(t *testing.T, row map[string]any) json.RawMessage {
	t.Helper()
	payload, err := json.Marshal(row)
	require.NoError(t, err)
	return payload
}

func recvEvent(t *testing.T, sub Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed early")
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("no event within deadline")
		return Event{}
	}
}

func TestSubscribeReceivesMatchingEvents(t *testing.T) {
	feed := testFeed(t)
	ctx := context.Background()

	sub, err := feed.Subscribe(ctx, "messages", Filter{"conversation_id": "c1"})
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, feed.Publish(ctx, Event{
		Type:       EventInsert,
		Collection: "messages",
		New:        rawRow(t, map[string]any{"id": "m1", "conversation_id": "c1"}),
	}))

	ev := recvEvent(t, sub)
	assert.Equal(t, EventInsert, ev.Type)
	var row map[string]string
	require.NoError(t, ev.Decode(&row))
	assert.Equal(t, "m1", row["id"])
}

func TestSubscribeFiltersOutOtherRows(t *testing.T) {
	feed := testFeed(t)
	ctx := context.Background()

	sub, err := feed.Subscribe(ctx, "messages", Filter{"conversation_id": "c1"})
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, feed.Publish(ctx, Event{
		Type:       EventInsert,
		Collection: "messages",
		New:        rawRow(t, map[string]any{"id": "other", "conversation_id": "c2"}),
	}))
	require.NoError(t, feed.Publish(ctx, Event{
		Type:       EventInsert,
		Collection: "messages",
		New:        rawRow(t, map[string]any{"id": "mine", "conversation_id": "c1"}),
	}))

	ev := recvEvent(t, sub)
	var row map[string]string
	require.NoError(t, ev.Decode(&row))
	assert.Equal(t, "mine", row["id"], "the c2 event is filtered out")
}

func TestSubscribeFiltersByEventType(t *testing.T) {
	feed := testFeed(t)
	ctx := context.Background()

	sub, err := feed.Subscribe(ctx, "matches", nil, EventUpdate)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, feed.Publish(ctx, Event{
		Type:       EventInsert,
		Collection: "matches",
		New:        rawRow(t, map[string]any{"id": "m1"}),
	}))
	require.NoError(t, feed.Publish(ctx, Event{
		Type:       EventUpdate,
		Collection: "matches",
		New:        rawRow(t, map[string]any{"id": "m1", "is_active": false}),
	}))

	ev := recvEvent(t, sub)
	assert.Equal(t, EventUpdate, ev.Type, "insert events are not delivered")
}

func TestCollectionsAreIsolated(t *testing.T) {
	feed := testFeed(t)
	ctx := context.Background()

	sub, err := feed.Subscribe(ctx, "matches", nil)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, feed.Publish(ctx, Event{
		Type:       EventInsert,
		Collection: "swipes",
		New:        rawRow(t, map[string]any{"id": "s1"}),
	}))

	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected cross-collection event: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestBusRoundTrip(t *testing.T) {
	feed := testFeed(t)
	ctx := context.Background()

	sub, err := feed.SubscribeRaw(ctx, "live:session-1")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, feed.PublishRaw(ctx, "live:session-1", []byte(`{"text":"hey"}`)))
	require.NoError(t, feed.PublishRaw(ctx, "live:session-2", []byte(`{"text":"elsewhere"}`)))

	select {
	case msg := <-sub.Messages():
		assert.JSONEq(t, `{"text":"hey"}`, string(msg))
	case <-time.After(3 * time.Second):
		t.Fatal("no bus message within deadline")
	}

	select {
	case msg := <-sub.Messages():
		t.Fatalf("unexpected cross-channel message: %s", msg)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPing(t *testing.T) {
	feed := testFeed(t)
	require.NoError(t, feed.Ping(context.Background()))
}
