package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "lovelink_client/errors"
	"lovelink_client/models"
	"lovelink_client/realtime"
	"lovelink_client/store"
)

func newLiveService(t *testing.T, ds store.DataService, feed *realtime.RedisFeed, userID string) *LiveService {
	t.Helper()
	svc := NewLiveService(ds, feed, feed, userID, LiveOptions{})
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func waitForUpdate(t *testing.T, svc *LiveService, kind LiveUpdateKind) LiveUpdate {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case update, ok := <-svc.Updates():
			require.True(t, ok, "updates channel closed while waiting for %s", kind)
			if update.Kind == kind {
				return update
			}
		case <-deadline:
			t.Fatalf("no %s update delivered", kind)
		}
	}
}

func TestJoinQueueWaitsWhenAlone(t *testing.T) {
	ds, feed := newTestBackend(t)
	ctx := context.Background()
	seedProfile(t, ds, "alice", "Alice", models.GenderFemale, "1995-03-10")

	alice := newLiveService(t, ds, feed, "alice")
	session, err := alice.JoinQueue(ctx, models.SessionTypeText, nil)
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Equal(t, LiveQueued, alice.State())

	var waiting []models.LiveQueueEntry
	require.NoError(t, ds.Query(ctx, models.LiveQueueTable, store.Query{}, &waiting))
	require.Len(t, waiting, 1)
	assert.Equal(t, "alice", waiting[0].UserID)
}

func TestSecondJoinerClaimsWaitingUser(t *testing.T) {
	ds, feed := newTestBackend(t)
	ctx := context.Background()
	seedProfile(t, ds, "alice", "Alice", models.GenderFemale, "1995-03-10")
	seedProfile(t, ds, "bob", "Bob", models.GenderMale, "1993-08-21")

	alice := newLiveService(t, ds, feed, "alice")
	bob := newLiveService(t, ds, feed, "bob")

	_, err := alice.JoinQueue(ctx, models.SessionTypeText, nil)
	require.NoError(t, err)

	session, err := bob.JoinQueue(ctx, models.SessionTypeText, nil)
	require.NoError(t, err)
	require.NotNil(t, session, "second joiner pairs immediately")
	assert.Equal(t, "alice", session.User1ID)
	assert.Equal(t, "bob", session.User2ID)
	assert.Equal(t, LivePaired, bob.State())

	update := waitForUpdate(t, alice, LivePairedUpdate)
	assert.Equal(t, session.ID, update.Session.ID)
	assert.Equal(t, LivePaired, alice.State())

	// the waiting entry was consumed by the claim
	var waiting []models.LiveQueueEntry
	require.NoError(t, ds.Query(ctx, models.LiveQueueTable, store.Query{}, &waiting))
	assert.Empty(t, waiting)
}

func TestClaimRaceHasExactlyOneWinner(t *testing.T) {
	ds, feed := newTestBackend(t)
	ctx := context.Background()
	seedProfile(t, ds, "alice", "Alice", models.GenderFemale, "1995-03-10")
	seedProfile(t, ds, "bob", "Bob", models.GenderMale, "1993-08-21")
	seedProfile(t, ds, "carol", "Carol", models.GenderFemale, "1997-12-01")

	alice := newLiveService(t, ds, feed, "alice")
	_, err := alice.JoinQueue(ctx, models.SessionTypeText, nil)
	require.NoError(t, err)

	bob := newLiveService(t, ds, feed, "bob")
	carol := newLiveService(t, ds, feed, "carol")

	var wg sync.WaitGroup
	results := make([]*models.LiveSession, 2)
	errs := make([]error, 2)
	for i, svc := range []*LiveService{bob, carol} {
		wg.Add(1)
		go func(i int, svc *LiveService) {
			defer wg.Done()
			results[i], errs[i] = svc.JoinQueue(ctx, models.SessionTypeText, nil)
		}(i, svc)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	winners := 0
	for _, session := range results {
		if session != nil {
			winners++
			assert.Equal(t, "alice", session.User1ID, "the winner claimed the waiting user")
		}
	}
	assert.Equal(t, 1, winners, "exactly one claimer may consume the entry")

	var sessions []models.LiveSession
	require.NoError(t, ds.Query(ctx, models.LiveSessionsTable, store.Query{
		Eq: map[string]any{"user1_id": "alice"},
	}, &sessions))
	assert.Len(t, sessions, 1, "the waiting user ended up in exactly one session")

	// the loser fell back to waiting
	var waiting []models.LiveQueueEntry
	require.NoError(t, ds.Query(ctx, models.LiveQueueTable, store.Query{}, &waiting))
	assert.Len(t, waiting, 1)
}

func TestEndSessionReachesBothSides(t *testing.T) {
	ds, feed := newTestBackend(t)
	ctx := context.Background()
	seedProfile(t, ds, "alice", "Alice", models.GenderFemale, "1995-03-10")
	seedProfile(t, ds, "bob", "Bob", models.GenderMale, "1993-08-21")

	alice := newLiveService(t, ds, feed, "alice")
	bob := newLiveService(t, ds, feed, "bob")
	_, err := alice.JoinQueue(ctx, models.SessionTypeText, nil)
	require.NoError(t, err)
	session, err := bob.JoinQueue(ctx, models.SessionTypeText, nil)
	require.NoError(t, err)
	require.NotNil(t, session)
	waitForUpdate(t, alice, LivePairedUpdate)

	require.NoError(t, bob.EndSession(ctx))
	assert.Equal(t, LiveIdle, bob.State())
	assert.Nil(t, bob.CurrentSession())

	waitForUpdate(t, alice, LiveEndedUpdate)
	assert.Equal(t, LiveIdle, alice.State())
	assert.Empty(t, alice.Transcript(), "transcript dies with the session")

	// ending an already ended session stays quiet
	require.NoError(t, alice.EndSession(ctx))

	var stored models.LiveSession
	require.NoError(t, ds.Get(ctx, models.LiveSessionsTable, store.Key{"id": session.ID}, &stored))
	assert.False(t, stored.IsActive)
	assert.NotEmpty(t, stored.EndedAt)
}

func TestLiveMessagesAreEphemeral(t *testing.T) {
	ds, feed := newTestBackend(t)
	ctx := context.Background()
	seedProfile(t, ds, "alice", "Alice", models.GenderFemale, "1995-03-10")
	seedProfile(t, ds, "bob", "Bob", models.GenderMale, "1993-08-21")

	alice := newLiveService(t, ds, feed, "alice")
	bob := newLiveService(t, ds, feed, "bob")
	_, err := alice.JoinQueue(ctx, models.SessionTypeText, nil)
	require.NoError(t, err)
	_, err = bob.JoinQueue(ctx, models.SessionTypeText, nil)
	require.NoError(t, err)
	waitForUpdate(t, alice, LivePairedUpdate)

	sent, err := bob.SendLiveMessage(ctx, "hello there")
	require.NoError(t, err)

	update := waitForUpdate(t, alice, LiveMessageUpdate)
	assert.Equal(t, sent.ID, update.Message.ID)
	assert.Equal(t, "hello there", update.Message.Content)

	require.Len(t, alice.Transcript(), 1)
	require.Len(t, bob.Transcript(), 1, "sender keeps its own copy, no bus echo duplicate")

	// nothing was persisted anywhere
	var rows []models.Message
	require.NoError(t, ds.Query(ctx, models.MessagesTable, store.Query{}, &rows))
	assert.Empty(t, rows)
}

func TestLeaveQueueIsIdempotent(t *testing.T) {
	ds, feed := newTestBackend(t)
	ctx := context.Background()
	seedProfile(t, ds, "alice", "Alice", models.GenderFemale, "1995-03-10")

	alice := newLiveService(t, ds, feed, "alice")
	_, err := alice.JoinQueue(ctx, models.SessionTypeText, nil)
	require.NoError(t, err)

	require.NoError(t, alice.LeaveQueue(ctx))
	assert.Equal(t, LiveIdle, alice.State())
	require.NoError(t, alice.LeaveQueue(ctx), "leaving twice must not fail")
}

func TestSkipToNextRequeues(t *testing.T) {
	ds, feed := newTestBackend(t)
	ctx := context.Background()
	seedProfile(t, ds, "alice", "Alice", models.GenderFemale, "1995-03-10")
	seedProfile(t, ds, "bob", "Bob", models.GenderMale, "1993-08-21")

	alice := newLiveService(t, ds, feed, "alice")
	bob := newLiveService(t, ds, feed, "bob")
	_, err := alice.JoinQueue(ctx, models.SessionTypeText, nil)
	require.NoError(t, err)
	session, err := bob.JoinQueue(ctx, models.SessionTypeText, nil)
	require.NoError(t, err)
	require.NotNil(t, session)
	waitForUpdate(t, alice, LivePairedUpdate)

	next, err := bob.SkipToNext(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, next, "empty queue after the skip, so bob waits")
	assert.Equal(t, LiveQueued, bob.State())

	var stored models.LiveSession
	require.NoError(t, ds.Get(ctx, models.LiveSessionsTable, store.Key{"id": session.ID}, &stored))
	assert.False(t, stored.IsActive)
}

func TestJoinQueueWhilePairedReturnsCurrentSession(t *testing.T) {
	ds, feed := newTestBackend(t)
	ctx := context.Background()
	seedProfile(t, ds, "alice", "Alice", models.GenderFemale, "1995-03-10")
	seedProfile(t, ds, "bob", "Bob", models.GenderMale, "1993-08-21")

	alice := newLiveService(t, ds, feed, "alice")
	bob := newLiveService(t, ds, feed, "bob")
	_, err := alice.JoinQueue(ctx, models.SessionTypeText, nil)
	require.NoError(t, err)
	session, err := bob.JoinQueue(ctx, models.SessionTypeText, nil)
	require.NoError(t, err)
	require.NotNil(t, session)

	again, err := bob.JoinQueue(ctx, models.SessionTypeText, nil)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, session.ID, again.ID)
}

func TestCloseIsSafeAfterFailedStart(t *testing.T) {
	ds, _ := newTestBackend(t)
	ctx := context.Background()
	seedProfile(t, ds, "alice", "Alice", models.GenderFemale, "1995-03-10")

	svc := NewLiveService(ds, brokenFeed{}, nil, "alice", LiveOptions{})
	require.Error(t, svc.Start(ctx))
	require.NoError(t, svc.Close(), "closing a service that never started must not panic")
}

// sessionEndFailStore breaks the session-ending write while leaving the
// rest of the store intact.
type sessionEndFailStore struct {
	store.DataService
}

func (s sessionEndFailStore) UpdateWhere(ctx context.Context, collection string, cond map[string]any, upd store.Update) error {
	if collection == models.LiveSessionsTable {
		return apperr.Backend("update_where", collection, errors.New("backend unavailable"))
	}
	return s.DataService.UpdateWhere(ctx, collection, cond, upd)
}

func TestCloseReturnsWhenEndSessionFails(t *testing.T) {
	ds, feed := newTestBackend(t)
	ctx := context.Background()
	seedProfile(t, ds, "alice", "Alice", models.GenderFemale, "1995-03-10")
	seedProfile(t, ds, "bob", "Bob", models.GenderMale, "1993-08-21")

	alice := newLiveService(t, ds, feed, "alice")
	bob := newLiveService(t, sessionEndFailStore{ds}, feed, "bob")

	_, err := alice.JoinQueue(ctx, models.SessionTypeText, nil)
	require.NoError(t, err)
	session, err := bob.JoinQueue(ctx, models.SessionTypeText, nil)
	require.NoError(t, err)
	require.NotNil(t, session)
	waitForUpdate(t, alice, LivePairedUpdate)

	// the backend refuses the end-session write, but the local session
	// state and its subscriptions still have to come down
	done := make(chan error, 1)
	go func() { done <- bob.Close() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("close did not return after a failed session end")
	}
	assert.Equal(t, LiveIdle, bob.State())
	assert.Nil(t, bob.CurrentSession())
}

func TestPairingCarriesResolvedPartner(t *testing.T) {
	ds, feed := newTestBackend(t)
	ctx := context.Background()
	seedProfile(t, ds, "alice", "Alice", models.GenderFemale, "1995-03-10")
	seedProfile(t, ds, "bob", "Bob", models.GenderMale, "1993-08-21")
	require.NoError(t, ds.Insert(ctx, models.UserPhotosTable, &models.UserPhoto{
		ID: "p1", UserID: "alice", PhotoURL: "https://cdn.example/alice.jpg", IsPrimary: true,
	}))

	alice := newLiveService(t, ds, feed, "alice")
	bob := newLiveService(t, ds, feed, "bob")

	_, err := alice.JoinQueue(ctx, models.SessionTypeText, nil)
	require.NoError(t, err)
	session, err := bob.JoinQueue(ctx, models.SessionTypeText, nil)
	require.NoError(t, err)
	require.NotNil(t, session)

	// the claimer resolves its counterpart synchronously
	partner := bob.Partner()
	require.NotNil(t, partner)
	assert.Equal(t, "alice", partner.Profile.ID)
	assert.Equal(t, "Alice", partner.Profile.FullName)
	assert.Equal(t, "https://cdn.example/alice.jpg", partner.PhotoURL)

	// the waiting side gets the counterpart on the pairing update
	update := waitForUpdate(t, alice, LivePairedUpdate)
	require.NotNil(t, update.Partner)
	assert.Equal(t, "bob", update.Partner.Profile.ID)
	require.NotNil(t, alice.Partner())

	require.NoError(t, bob.EndSession(ctx))
	assert.Nil(t, bob.Partner(), "partner dies with the session")
}

func TestRejoinWhileQueuedRefreshesPreferences(t *testing.T) {
	ds, feed := newTestBackend(t)
	ctx := context.Background()
	seedProfile(t, ds, "alice", "Alice", models.GenderFemale, "1995-03-10")

	alice := newLiveService(t, ds, feed, "alice")
	session, err := alice.JoinQueue(ctx, models.SessionTypeText, []string{models.GenderMale})
	require.NoError(t, err)
	require.Nil(t, session)

	session, err = alice.JoinQueue(ctx, models.SessionTypeText, []string{models.GenderFemale})
	require.NoError(t, err)
	require.Nil(t, session)
	assert.Equal(t, LiveQueued, alice.State())

	var waiting []models.LiveQueueEntry
	require.NoError(t, ds.Query(ctx, models.LiveQueueTable, store.Query{}, &waiting))
	require.Len(t, waiting, 1, "rejoining replaces the entry, never duplicates it")
	assert.Equal(t, []string{models.GenderFemale}, waiting[0].PreferredGender)
}
