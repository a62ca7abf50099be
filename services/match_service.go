package services

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	apperr "lovelink_client/errors"
	"lovelink_client/logger"
	"lovelink_client/models"
	"lovelink_client/realtime"
	"lovelink_client/store"
)

// MatchService watches the match collection for the signed-in user and
// delivers each new match exactly once on Notifications, enriched with the
// counterpart's profile. It also serves match lists, unmatch, and blocking.
type MatchService struct {
	Store  store.DataService
	Feed   realtime.ChangeFeed
	UserID string

	mu      sync.Mutex
	seen    map[string]bool
	started bool

	notifications chan models.MatchWithProfile
	subs          []realtime.Subscription
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

func NewMatchService(ds store.DataService, feed realtime.ChangeFeed, userID string) *MatchService {
	return &MatchService{
		Store:  ds,
		Feed:   feed,
		UserID: userID,
		seen:   make(map[string]bool),
	}
}

// Start opens the two filtered subscriptions that together cover every match
// involving the user, whichever side of the pair they landed on.
func (ms *MatchService) Start(ctx context.Context) error {
	if err := requireUser(ms.UserID); err != nil {
		return err
	}
	ms.mu.Lock()
	if ms.started {
		ms.mu.Unlock()
		return nil
	}
	ms.started = true
	ms.notifications = make(chan models.MatchWithProfile, 16)
	ms.mu.Unlock()

	sub1, err := ms.Feed.Subscribe(ctx, models.MatchesTable,
		realtime.Filter{"user1_id": ms.UserID}, realtime.EventInsert)
	if err != nil {
		ms.abortStart()
		return err
	}
	sub2, err := ms.Feed.Subscribe(ctx, models.MatchesTable,
		realtime.Filter{"user2_id": ms.UserID}, realtime.EventInsert)
	if err != nil {
		_ = sub1.Close()
		ms.abortStart()
		return err
	}
	ms.subs = []realtime.Subscription{sub1, sub2}

	runCtx, cancel := context.WithCancel(context.Background())
	ms.cancel = cancel
	for _, sub := range ms.subs {
		ms.wg.Add(1)
		go ms.consume(runCtx, sub)
	}
	return nil
}

// abortStart rolls the started flag back so a failed Start leaves the
// service stoppable and restartable.
func (ms *MatchService) abortStart() {
	ms.mu.Lock()
	ms.started = false
	ms.mu.Unlock()
}

// Notifications delivers each detected match once. The channel closes when
// the service stops.
func (ms *MatchService) Notifications() <-chan models.MatchWithProfile {
	return ms.notifications
}

// Stop closes the subscriptions and the notification channel.
func (ms *MatchService) Stop() {
	ms.mu.Lock()
	if !ms.started {
		ms.mu.Unlock()
		return
	}
	ms.started = false
	ms.mu.Unlock()

	for _, sub := range ms.subs {
		_ = sub.Close()
	}
	if ms.cancel != nil {
		ms.cancel()
	}
	ms.wg.Wait()
	close(ms.notifications)
}

func (ms *MatchService) consume(ctx context.Context, sub realtime.Subscription) {
	defer ms.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			ms.handle(ctx, ev)
		}
	}
}

// handle dedupes across the two subscriptions so a match never notifies
// twice, then enriches and delivers it.
func (ms *MatchService) handle(ctx context.Context, ev realtime.Event) {
	var match models.Match
	if err := ev.Decode(&match); err != nil || match.ID == "" {
		return
	}
	if !match.IsActive || match.OtherUser(ms.UserID) == "" {
		return
	}

	ms.mu.Lock()
	if ms.seen[match.ID] {
		ms.mu.Unlock()
		return
	}
	ms.seen[match.ID] = true
	ms.mu.Unlock()

	// a failed lookup still notifies; the match itself is the fact that
	// matters, and the caller can re-resolve the profile later
	enriched, _ := ms.enrich(ctx, match)
	select {
	case ms.notifications <- enriched:
	case <-ctx.Done():
	}
}

// enrich attaches the counterpart's profile and primary photo. The error
// reports an unresolvable counterpart; the match itself is always returned.
func (ms *MatchService) enrich(ctx context.Context, match models.Match) (models.MatchWithProfile, error) {
	out := models.MatchWithProfile{Match: match}
	otherID := match.OtherUser(ms.UserID)
	var profile models.Profile
	if err := ms.Store.Get(ctx, models.ProfilesTable, store.Key{"id": otherID}, &profile); err != nil {
		logger.Warn("match: counterpart profile lookup failed", "user_id", otherID, "err", err)
		return out, err
	}
	out.OtherProfile = profile
	out.PhotoURL = primaryPhotoURL(ctx, ms.Store, otherID)
	return out, nil
}

// ListMatches returns the user's active matches, enriched for display.
func (ms *MatchService) ListMatches(ctx context.Context) ([]models.MatchWithProfile, error) {
	if err := requireUser(ms.UserID); err != nil {
		return nil, err
	}
	var matches []models.Match
	err := ms.Store.Query(ctx, models.MatchesTable, store.Query{
		Eq: map[string]any{"is_active": true},
		Any: []map[string]any{
			{"user1_id": ms.UserID},
			{"user2_id": ms.UserID},
		},
		OrderBy: "matched_at",
		Desc:    true,
	}, &matches)
	if err != nil {
		return nil, err
	}
	out := make([]models.MatchWithProfile, 0, len(matches))
	for _, m := range matches {
		enriched, err := ms.enrich(ctx, m)
		if err != nil {
			continue // logged by enrich; an unresolvable counterpart is not listed
		}
		out = append(out, enriched)
	}
	return out, nil
}

// Unmatch deactivates a match the user is part of. Already-inactive matches
// are left as they are.
func (ms *MatchService) Unmatch(ctx context.Context, matchID string) error {
	if err := requireUser(ms.UserID); err != nil {
		return err
	}
	var match models.Match
	if err := ms.Store.Get(ctx, models.MatchesTable, store.Key{"id": matchID}, &match); err != nil {
		return err
	}
	if match.OtherUser(ms.UserID) == "" {
		return apperr.ErrNotFound
	}
	err := ms.Store.UpdateWhere(ctx, models.MatchesTable,
		map[string]any{"id": matchID, "is_active": true},
		store.Update{"is_active": false})
	if errors.Is(err, apperr.ErrConflict) {
		return nil
	}
	return err
}

// BlockUser records the block and deactivates any active match with that
// user. Blocking twice is a no-op.
func (ms *MatchService) BlockUser(ctx context.Context, blockedID string) error {
	if err := requireUser(ms.UserID); err != nil {
		return err
	}
	block := models.Block{
		BlockerID: ms.UserID,
		BlockedID: blockedID,
		CreatedAt: nowRFC3339(),
	}
	if err := ms.Store.Insert(ctx, models.BlocksTable, &block); err != nil && !errors.Is(err, apperr.ErrDuplicate) {
		return err
	}
	user1, user2 := models.OrderPair(ms.UserID, blockedID)
	err := ms.Store.UpdateWhere(ctx, models.MatchesTable,
		map[string]any{"user1_id": user1, "user2_id": user2, "is_active": true},
		store.Update{"is_active": false})
	if errors.Is(err, apperr.ErrConflict) {
		return nil // no active match to deactivate
	}
	return err
}

// newPairMatch is shared by the flows that create a match outside swiping,
// such as an accepted serious-mode interest.
func newPairMatch(ctx context.Context, ds store.DataService, a, b string) (*models.Match, error) {
	user1, user2 := models.OrderPair(a, b)
	match := models.Match{
		ID:        uuid.NewString(),
		User1ID:   user1,
		User2ID:   user2,
		MatchedAt: nowRFC3339(),
		IsActive:  true,
	}
	err := ds.Insert(ctx, models.MatchesTable, &match)
	if errors.Is(err, apperr.ErrDuplicate) {
		var matches []models.Match
		qerr := ds.Query(ctx, models.MatchesTable, store.Query{
			Eq: map[string]any{"user1_id": user1, "user2_id": user2},
		}, &matches)
		if qerr != nil {
			return nil, qerr
		}
		if len(matches) == 0 {
			return nil, apperr.ErrNotFound
		}
		return &matches[0], nil
	}
	if err != nil {
		return nil, err
	}
	return &match, nil
}
