package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "lovelink_client/errors"
	"lovelink_client/models"
	"lovelink_client/realtime"
	"lovelink_client/store"
)

func insertMatch(t *testing.T, ds store.DataService, a, b string) models.Match {
	t.Helper()
	user1, user2 := models.OrderPair(a, b)
	match := models.Match{
		ID:        uuid.NewString(),
		User1ID:   user1,
		User2ID:   user2,
		MatchedAt: time.Now().UTC().Format(time.RFC3339),
		IsActive:  true,
	}
	require.NoError(t, ds.Insert(context.Background(), models.MatchesTable, &match))
	return match
}

func TestMatchNotificationDeliveredOnce(t *testing.T) {
	ds, feed := newTestBackend(t)
	ctx := context.Background()
	seedProfile(t, ds, "alice", "Alice", models.GenderFemale, "1995-03-10")
	seedProfile(t, ds, "bob", "Bob", models.GenderMale, "1993-08-21")

	svc := NewMatchService(ds, feed, "alice")
	require.NoError(t, svc.Start(ctx))
	defer svc.Stop()

	match := insertMatch(t, ds, "alice", "bob")

	select {
	case got := <-svc.Notifications():
		assert.Equal(t, match.ID, got.ID)
		assert.Equal(t, "bob", got.OtherProfile.ID)
		assert.Equal(t, "Bob", got.OtherProfile.FullName)
	case <-time.After(3 * time.Second):
		t.Fatal("no match notification delivered")
	}

	// the same row replayed by the feed stays silent
	payload, err := json.Marshal(match)
	require.NoError(t, err)
	require.NoError(t, feed.Publish(ctx, realtime.Event{
		Type:       realtime.EventInsert,
		Collection: models.MatchesTable,
		New:        payload,
	}))
	select {
	case extra := <-svc.Notifications():
		t.Fatalf("unexpected duplicate notification for %s", extra.ID)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestMatchNotificationForEitherPairSide(t *testing.T) {
	ds, feed := newTestBackend(t)
	ctx := context.Background()
	seedProfile(t, ds, "alice", "Alice", models.GenderFemale, "1995-03-10")
	seedProfile(t, ds, "zoe", "Zoe", models.GenderFemale, "1996-02-17")

	// zoe sorts after alice, so alice is user1 here; the reverse pairing
	// is covered by TestMatchNotificationDeliveredOnce with bob
	svc := NewMatchService(ds, feed, "zoe")
	require.NoError(t, svc.Start(ctx))
	defer svc.Stop()

	match := insertMatch(t, ds, "alice", "zoe")
	select {
	case got := <-svc.Notifications():
		assert.Equal(t, match.ID, got.ID)
		assert.Equal(t, "alice", got.OtherProfile.ID)
	case <-time.After(3 * time.Second):
		t.Fatal("no match notification for user2 side")
	}
}

func TestMatchNotificationIgnoresOtherUsers(t *testing.T) {
	ds, feed := newTestBackend(t)
	ctx := context.Background()
	seedProfile(t, ds, "bob", "Bob", models.GenderMale, "1993-08-21")
	seedProfile(t, ds, "carol", "Carol", models.GenderFemale, "1997-12-01")

	svc := NewMatchService(ds, feed, "alice")
	require.NoError(t, svc.Start(ctx))
	defer svc.Stop()

	insertMatch(t, ds, "bob", "carol")
	select {
	case got := <-svc.Notifications():
		t.Fatalf("notification for a foreign match %s", got.ID)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestListMatchesOnlyActive(t *testing.T) {
	ds, feed := newTestBackend(t)
	ctx := context.Background()
	seedProfile(t, ds, "alice", "Alice", models.GenderFemale, "1995-03-10")
	seedProfile(t, ds, "bob", "Bob", models.GenderMale, "1993-08-21")
	seedProfile(t, ds, "carol", "Carol", models.GenderFemale, "1997-12-01")

	svc := NewMatchService(ds, feed, "alice")
	active := insertMatch(t, ds, "alice", "bob")
	inactive := insertMatch(t, ds, "alice", "carol")
	require.NoError(t, svc.Unmatch(ctx, inactive.ID))

	matches, err := svc.ListMatches(ctx)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, active.ID, matches[0].ID)
	assert.Equal(t, "bob", matches[0].OtherProfile.ID)
}

func TestUnmatchIsIdempotent(t *testing.T) {
	ds, feed := newTestBackend(t)
	ctx := context.Background()
	seedProfile(t, ds, "alice", "Alice", models.GenderFemale, "1995-03-10")
	seedProfile(t, ds, "bob", "Bob", models.GenderMale, "1993-08-21")

	svc := NewMatchService(ds, feed, "alice")
	match := insertMatch(t, ds, "alice", "bob")

	require.NoError(t, svc.Unmatch(ctx, match.ID))
	require.NoError(t, svc.Unmatch(ctx, match.ID), "second unmatch must succeed quietly")

	var stored models.Match
	require.NoError(t, ds.Get(ctx, models.MatchesTable, store.Key{"id": match.ID}, &stored))
	assert.False(t, stored.IsActive)
}

func TestBlockDeactivatesMatchAndHidesCandidate(t *testing.T) {
	ds, feed := newTestBackend(t)
	ctx := context.Background()
	seedProfile(t, ds, "alice", "Alice", models.GenderFemale, "1995-03-10")
	seedProfile(t, ds, "bob", "Bob", models.GenderMale, "1993-08-21")

	matches := NewMatchService(ds, feed, "alice")
	match := insertMatch(t, ds, "alice", "bob")

	require.NoError(t, matches.BlockUser(ctx, "bob"))
	require.NoError(t, matches.BlockUser(ctx, "bob"), "blocking twice is a no-op")

	var stored models.Match
	require.NoError(t, ds.Get(ctx, models.MatchesTable, store.Key{"id": match.ID}, &stored))
	assert.False(t, stored.IsActive)

	// and bob no longer surfaces in discovery for alice
	swipes := NewSwipeService(ds, "alice")
	deck, err := swipes.LoadCandidates(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, deck)
}

func TestListMatchesSkipsUnresolvableCounterpart(t *testing.T) {
	ds, feed := newTestBackend(t)
	ctx := context.Background()
	seedProfile(t, ds, "alice", "Alice", models.GenderFemale, "1995-03-10")
	seedProfile(t, ds, "bob", "Bob", models.GenderMale, "1993-08-21")
	seedProfile(t, ds, "carol", "Carol", models.GenderFemale, "1997-12-01")

	svc := NewMatchService(ds, feed, "alice")
	insertMatch(t, ds, "alice", "bob")
	kept := insertMatch(t, ds, "alice", "carol")

	// bob's profile disappears underneath the match
	require.NoError(t, ds.Delete(ctx, models.ProfilesTable, store.Key{"id": "bob"}))

	matches, err := svc.ListMatches(ctx)
	require.NoError(t, err)
	require.Len(t, matches, 1, "a match with no resolvable counterpart is not listed")
	assert.Equal(t, kept.ID, matches[0].ID)
	assert.Equal(t, "carol", matches[0].OtherProfile.ID)
}

// brokenFeed refuses every subscription, standing in for an unreachable
// realtime backend.
type brokenFeed struct{}

func (brokenFeed) Subscribe(ctx context.Context, collection string, filter realtime.Filter, types ...realtime.EventType) (realtime.Subscription, error) {
	return nil, apperr.Backend("subscribe", collection, errors.New("feed unreachable"))
}

func TestStopIsSafeAfterFailedStart(t *testing.T) {
	ds, feed := newTestBackend(t)
	ctx := context.Background()
	seedProfile(t, ds, "alice", "Alice", models.GenderFemale, "1995-03-10")

	svc := NewMatchService(ds, brokenFeed{}, "alice")
	require.Error(t, svc.Start(ctx))
	svc.Stop() // must be a quiet no-op, not a panic

	// and the service is still usable once the feed recovers
	svc.Feed = feed
	require.NoError(t, svc.Start(ctx))
	svc.Stop()
}
