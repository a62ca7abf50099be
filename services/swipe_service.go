package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	apperr "lovelink_client/errors"
	"lovelink_client/logger"
	"lovelink_client/models"
	"lovelink_client/store"
)

const (
	// deckSize caps how many candidates one load returns.
	deckSize = 20

	// undoDepth bounds the undo history; older swipes become permanent.
	undoDepth = 10
)

// SwipeService drives the discovery deck for one signed-in user: loading
// candidates, recording swipes, detecting the reciprocal like that forms a
// match, and undoing recent swipes.
type SwipeService struct {
	Store  store.DataService
	UserID string

	mu   sync.Mutex
	deck []models.Profile
	undo []models.Swipe // most recent last
}

func NewSwipeService(ds store.DataService, userID string) *SwipeService {
	return &SwipeService{Store: ds, UserID: userID}
}

// LoadCandidates refreshes the deck: discoverable profiles minus the user
// themselves, everyone already swiped on, and anyone in a block relation,
// narrowed by the given filters. Pass nil to skip filtering.
func (ss *SwipeService) LoadCandidates(ctx context.Context, filters *models.DiscoveryFilters) ([]models.Profile, error) {
	if err := requireUser(ss.UserID); err != nil {
		return nil, err
	}

	var swipes []models.Swipe
	err := ss.Store.Query(ctx, models.SwipesTable, store.Query{
		Eq: map[string]any{"swiper_id": ss.UserID},
	}, &swipes)
	if err != nil {
		return nil, err
	}
	blocked, err := blockedUserIDs(ctx, ss.Store, ss.UserID)
	if err != nil {
		return nil, err
	}

	excluded := []any{ss.UserID}
	for _, s := range swipes {
		excluded = append(excluded, s.SwipedID)
	}
	for id := range blocked {
		excluded = append(excluded, id)
	}

	var profiles []models.Profile
	err = ss.Store.Query(ctx, models.ProfilesTable, store.Query{
		Eq:    map[string]any{"swipe_mode_enabled": true, "onboarding_completed": true},
		NotIn: map[string][]any{"id": excluded},
	}, &profiles)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	deck := make([]models.Profile, 0, deckSize)
	for _, p := range profiles {
		if filters != nil && !matchesFilters(p, *filters, now) {
			continue
		}
		deck = append(deck, p)
		if len(deck) == deckSize {
			break
		}
	}

	ss.mu.Lock()
	ss.deck = deck
	ss.mu.Unlock()
	return deck, nil
}

// Deck returns a copy of the current candidate deck.
func (ss *SwipeService) Deck() []models.Profile {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	out := make([]models.Profile, len(ss.deck))
	copy(out, ss.deck)
	return out
}

// Swipe records the user's action on a candidate. A positive action whose
// counterpart already liked back creates the match and returns it; every
// other outcome returns a nil match. A repeat swipe on the same candidate
// fails with ErrDuplicateSwipe.
func (ss *SwipeService) Swipe(ctx context.Context, swipedID, action string) (*models.Match, error) {
	if err := requireUser(ss.UserID); err != nil {
		return nil, err
	}

	swipe := models.Swipe{
		SwiperID:  ss.UserID,
		SwipedID:  swipedID,
		Action:    action,
		CreatedAt: nowRFC3339(),
	}
	if err := ss.Store.Insert(ctx, models.SwipesTable, &swipe); err != nil {
		if errors.Is(err, apperr.ErrDuplicate) {
			return nil, apperr.ErrDuplicateSwipe
		}
		return nil, err
	}

	ss.mu.Lock()
	ss.undo = append(ss.undo, swipe)
	if len(ss.undo) > undoDepth {
		ss.undo = ss.undo[len(ss.undo)-undoDepth:]
	}
	ss.removeFromDeckLocked(swipedID)
	ss.mu.Unlock()

	if !swipe.IsPositive() {
		return nil, nil
	}
	return ss.checkMutual(ctx, swipedID)
}

// checkMutual looks for the reciprocal positive swipe and creates the match
// when both sides liked each other. Losing the creation race to the other
// participant is fine; the existing match is returned.
func (ss *SwipeService) checkMutual(ctx context.Context, swipedID string) (*models.Match, error) {
	var reverse models.Swipe
	err := ss.Store.Get(ctx, models.SwipesTable, store.Key{
		"swiper_id": swipedID,
		"swiped_id": ss.UserID,
	}, &reverse)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !reverse.IsPositive() {
		return nil, nil
	}

	user1, user2 := models.OrderPair(ss.UserID, swipedID)
	match := models.Match{
		ID:        uuid.NewString(),
		User1ID:   user1,
		User2ID:   user2,
		MatchedAt: nowRFC3339(),
		IsActive:  true,
	}
	err = ss.Store.Insert(ctx, models.MatchesTable, &match)
	if errors.Is(err, apperr.ErrDuplicate) {
		return ss.findPairMatch(ctx, user1, user2)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("swipe: mutual like, match created", "match_id", match.ID)
	return &match, nil
}

func (ss *SwipeService) findPairMatch(ctx context.Context, user1, user2 string) (*models.Match, error) {
	var matches []models.Match
	err := ss.Store.Query(ctx, models.MatchesTable, store.Query{
		Eq: map[string]any{"user1_id": user1, "user2_id": user2},
	}, &matches)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, apperr.ErrNotFound
	}
	return &matches[0], nil
}

// UndoLastSwipe removes the most recent undoable swipe fact and puts the
// candidate back on top of the deck. Only the last ten swipes are undoable.
func (ss *SwipeService) UndoLastSwipe(ctx context.Context) (*models.Swipe, error) {
	if err := requireUser(ss.UserID); err != nil {
		return nil, err
	}

	ss.mu.Lock()
	if len(ss.undo) == 0 {
		ss.mu.Unlock()
		return nil, apperr.ErrNothingToUndo
	}
	last := ss.undo[len(ss.undo)-1]
	ss.undo = ss.undo[:len(ss.undo)-1]
	ss.mu.Unlock()

	err := ss.Store.Delete(ctx, models.SwipesTable, store.Key{
		"swiper_id": last.SwiperID,
		"swiped_id": last.SwipedID,
	})
	if err != nil {
		// put it back so the user can retry
		ss.mu.Lock()
		ss.undo = append(ss.undo, last)
		ss.mu.Unlock()
		return nil, err
	}

	var profile models.Profile
	if err := ss.Store.Get(ctx, models.ProfilesTable, store.Key{"id": last.SwipedID}, &profile); err == nil {
		ss.mu.Lock()
		ss.removeFromDeckLocked(profile.ID)
		ss.deck = append([]models.Profile{profile}, ss.deck...)
		ss.mu.Unlock()
	}
	return &last, nil
}

// UndoCount reports how many swipes are currently undoable.
func (ss *SwipeService) UndoCount() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.undo)
}

func (ss *SwipeService) removeFromDeckLocked(userID string) {
	for i, p := range ss.deck {
		if p.ID == userID {
			ss.deck = append(ss.deck[:i], ss.deck[i+1:]...)
			return
		}
	}
}

// matchesFilters applies discovery filters client-side. Distance is not
// enforced; no geolocation source is wired.
func matchesFilters(p models.Profile, f models.DiscoveryFilters, now time.Time) bool {
	age := p.Age(now)
	if f.MinAge > 0 && age < f.MinAge {
		return false
	}
	if f.MaxAge > 0 && age > f.MaxAge {
		return false
	}
	if len(f.Genders) > 0 {
		ok := false
		for _, g := range f.Genders {
			if p.Gender == g {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.VerifiedOnly && p.VerificationStatus != models.VerificationVerified {
		return false
	}
	return true
}
