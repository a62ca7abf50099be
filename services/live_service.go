package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	apperr "lovelink_client/errors"
	"lovelink_client/logger"
	"lovelink_client/models"
	"lovelink_client/realtime"
	"lovelink_client/store"
)

// Live pairing states.
type LiveState string

const (
	LiveIdle   LiveState = "idle"
	LiveQueued LiveState = "queued"
	LivePaired LiveState = "paired"
)

// LiveUpdate kinds delivered on Updates.
type LiveUpdateKind string

const (
	LivePairedUpdate  LiveUpdateKind = "paired"
	LiveEndedUpdate   LiveUpdateKind = "ended"
	LiveMessageUpdate LiveUpdateKind = "message"
)

// LiveUpdate is one event on the live track: paired with someone, the
// session ended (by either side), or an incoming ephemeral message. Paired
// updates carry the resolved counterpart when the lookup succeeded.
type LiveUpdate struct {
	Kind    LiveUpdateKind
	Session *models.LiveSession
	Partner *models.LivePartner
	Message *models.LiveMessage
}

// LiveOptions tune pairing behavior.
type LiveOptions struct {
	// PairByPreference makes the claim pass honor both sides' preferred
	// genders instead of pairing purely first-come-first-served.
	PairByPreference bool
}

// LiveService runs the random-pairing track for one user: join a waiting
// queue, get claimed by or claim a counterpart, exchange ephemeral messages
// over the realtime bus, and end or skip the session.
//
// The waiting entry is consumed with a conditional delete before the session
// is created, so two claimers racing for the same entry cannot both win.
type LiveService struct {
	store  store.DataService
	feed   realtime.ChangeFeed
	bus    realtime.Bus
	userID string
	opts   LiveOptions

	mu         sync.Mutex
	state      LiveState
	session    *models.LiveSession
	partner    *models.LivePartner
	transcript []models.LiveMessage
	started    bool

	updates    chan LiveUpdate
	pairSubs   []realtime.Subscription
	sessionSub realtime.Subscription
	busSub     realtime.BusSubscription
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

func NewLiveService(ds store.DataService, feed realtime.ChangeFeed, bus realtime.Bus, userID string, opts LiveOptions) *LiveService {
	return &LiveService{
		store:  ds,
		feed:   feed,
		bus:    bus,
		userID: userID,
		opts:   opts,
		state:  LiveIdle,
	}
}

// Start opens the session-insert subscriptions that tell a waiting user they
// were claimed.
func (ls *LiveService) Start(ctx context.Context) error {
	if err := requireUser(ls.userID); err != nil {
		return err
	}
	ls.mu.Lock()
	if ls.started {
		ls.mu.Unlock()
		return nil
	}
	ls.started = true
	ls.updates = make(chan LiveUpdate, 16)
	ls.mu.Unlock()

	sub1, err := ls.feed.Subscribe(ctx, models.LiveSessionsTable,
		realtime.Filter{"user1_id": ls.userID}, realtime.EventInsert)
	if err != nil {
		ls.abortStart()
		return err
	}
	sub2, err := ls.feed.Subscribe(ctx, models.LiveSessionsTable,
		realtime.Filter{"user2_id": ls.userID}, realtime.EventInsert)
	if err != nil {
		_ = sub1.Close()
		ls.abortStart()
		return err
	}
	ls.pairSubs = []realtime.Subscription{sub1, sub2}

	runCtx, cancel := context.WithCancel(context.Background())
	ls.cancel = cancel
	for _, sub := range ls.pairSubs {
		ls.wg.Add(1)
		go ls.consumePairings(runCtx, sub)
	}
	return nil
}

// abortStart rolls the started flag back so a failed Start leaves the
// service closable and restartable.
func (ls *LiveService) abortStart() {
	ls.mu.Lock()
	ls.started = false
	ls.mu.Unlock()
}

// Updates delivers pairing, ending, and message events. Closed by Close.
func (ls *LiveService) Updates() <-chan LiveUpdate { return ls.updates }

// State returns the current pairing state.
func (ls *LiveService) State() LiveState {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.state
}

// CurrentSession returns the active session, or nil.
func (ls *LiveService) CurrentSession() *models.LiveSession {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.session == nil {
		return nil
	}
	s := *ls.session
	return &s
}

// Partner returns the resolved counterpart of the active session, or nil
// when idle or when the profile lookup failed.
func (ls *LiveService) Partner() *models.LivePartner {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.partner == nil {
		return nil
	}
	p := *ls.partner
	return &p
}

// Transcript returns a copy of the ephemeral messages seen in the current
// session. It empties when the session ends.
func (ls *LiveService) Transcript() []models.LiveMessage {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	out := make([]models.LiveMessage, len(ls.transcript))
	copy(out, ls.transcript)
	return out
}

// JoinQueue tries to claim a waiting counterpart of the same session type.
// On success the session is returned immediately; otherwise the user is
// enqueued and the pairing arrives later as a LivePairedUpdate. Joining
// while paired returns the current session; joining while queued replaces
// the waiting entry, picking up any changed preferences.
func (ls *LiveService) JoinQueue(ctx context.Context, sessionType string, preferredGenders []string) (*models.LiveSession, error) {
	if err := requireUser(ls.userID); err != nil {
		return nil, err
	}
	ls.mu.Lock()
	if ls.state == LivePaired {
		s := *ls.session
		ls.mu.Unlock()
		return &s, nil
	}
	// rejoining while queued falls through: the upsert replaces the prior
	// entry, so refreshed preferences take effect
	ls.mu.Unlock()

	session, err := ls.tryClaim(ctx, sessionType, preferredGenders)
	if err != nil {
		return nil, err
	}
	if session != nil {
		ls.becomePaired(ctx, session)
		return session, nil
	}

	entry := models.LiveQueueEntry{
		UserID:          ls.userID,
		SessionType:     sessionType,
		PreferredGender: preferredGenders,
		JoinedAt:        nowRFC3339(),
	}
	if err := ls.store.Upsert(ctx, models.LiveQueueTable, &entry); err != nil {
		return nil, err
	}
	ls.mu.Lock()
	ls.state = LiveQueued
	ls.mu.Unlock()
	logger.Info("live: waiting in queue", "session_type", sessionType)
	return nil, nil
}

// tryClaim walks the waiting pool oldest-first and consumes the first entry
// it can win. The conditional delete is the claim; a lost race on one entry
// just moves on to the next.
func (ls *LiveService) tryClaim(ctx context.Context, sessionType string, preferredGenders []string) (*models.LiveSession, error) {
	var waiting []models.LiveQueueEntry
	err := ls.store.Query(ctx, models.LiveQueueTable, store.Query{
		Eq:      map[string]any{"session_type": sessionType},
		Neq:     map[string]any{"user_id": ls.userID},
		OrderBy: "joined_at",
	}, &waiting)
	if err != nil {
		return nil, err
	}

	for _, cand := range waiting {
		if ls.opts.PairByPreference && !ls.preferencesCompatible(ctx, cand, preferredGenders) {
			continue
		}
		err := ls.store.DeleteWhere(ctx, models.LiveQueueTable, map[string]any{
			"user_id":      cand.UserID,
			"session_type": sessionType,
		})
		if errors.Is(err, apperr.ErrConflict) {
			continue // someone else claimed this entry
		}
		if err != nil {
			return nil, err
		}

		session := models.LiveSession{
			ID:          uuid.NewString(),
			User1ID:     cand.UserID,
			User2ID:     ls.userID,
			SessionType: sessionType,
			StartedAt:   nowRFC3339(),
			IsActive:    true,
		}
		if err := ls.store.Insert(ctx, models.LiveSessionsTable, &session); err != nil {
			// hand the entry back so the counterpart keeps waiting
			if rerr := ls.store.Upsert(ctx, models.LiveQueueTable, &cand); rerr != nil {
				logger.Error("live: failed to restore claimed queue entry", "user_id", cand.UserID, "err", rerr)
			}
			return nil, err
		}
		logger.Info("live: claimed waiting user", "session_id", session.ID)
		return &session, nil
	}
	return nil, nil
}

// preferencesCompatible checks mutual gender preferences. Missing data
// counts as compatible.
func (ls *LiveService) preferencesCompatible(ctx context.Context, cand models.LiveQueueEntry, myPreferred []string) bool {
	var mine, theirs models.Profile
	if err := ls.store.Get(ctx, models.ProfilesTable, store.Key{"id": ls.userID}, &mine); err != nil {
		return true
	}
	if err := ls.store.Get(ctx, models.ProfilesTable, store.Key{"id": cand.UserID}, &theirs); err != nil {
		return true
	}
	return genderAccepted(myPreferred, theirs.Gender) && genderAccepted(cand.PreferredGender, mine.Gender)
}

func genderAccepted(preferred []string, gender string) bool {
	if len(preferred) == 0 || gender == "" {
		return true
	}
	for _, g := range preferred {
		if g == gender {
			return true
		}
	}
	return false
}

// LeaveQueue withdraws the waiting entry. Leaving when not queued is a
// no-op; being claimed concurrently is indistinguishable from that and is
// also fine.
func (ls *LiveService) LeaveQueue(ctx context.Context) error {
	if err := requireUser(ls.userID); err != nil {
		return err
	}
	if err := ls.store.Delete(ctx, models.LiveQueueTable, store.Key{"user_id": ls.userID}); err != nil {
		return err
	}
	ls.mu.Lock()
	if ls.state == LiveQueued {
		ls.state = LiveIdle
	}
	ls.mu.Unlock()
	return nil
}

// EndSession terminates the active session for both sides. Ending a session
// the counterpart already ended succeeds quietly.
func (ls *LiveService) EndSession(ctx context.Context) error {
	ls.mu.Lock()
	session := ls.session
	ls.mu.Unlock()
	if session == nil {
		return nil
	}

	err := ls.store.UpdateWhere(ctx, models.LiveSessionsTable,
		map[string]any{"id": session.ID, "is_active": true},
		store.Update{"is_active": false, "ended_at": nowRFC3339()})
	if err != nil && !errors.Is(err, apperr.ErrConflict) {
		return err
	}
	ls.teardownSession()
	return nil
}

// SkipToNext ends the current session and rejoins the queue for the same
// session type.
func (ls *LiveService) SkipToNext(ctx context.Context, preferredGenders []string) (*models.LiveSession, error) {
	ls.mu.Lock()
	session := ls.session
	ls.mu.Unlock()
	if session == nil {
		return nil, errors.New("no active session to skip")
	}
	sessionType := session.SessionType
	if err := ls.EndSession(ctx); err != nil {
		return nil, err
	}
	return ls.JoinQueue(ctx, sessionType, preferredGenders)
}

// SendLiveMessage publishes an ephemeral message on the session channel.
// Nothing is persisted; if the counterpart is not listening the message is
// simply gone.
func (ls *LiveService) SendLiveMessage(ctx context.Context, content string) (*models.LiveMessage, error) {
	ls.mu.Lock()
	session := ls.session
	ls.mu.Unlock()
	if session == nil {
		return nil, errors.New("no active session")
	}
	msg := models.LiveMessage{
		ID:        uuid.NewString(),
		SenderID:  ls.userID,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	if err := ls.bus.PublishRaw(ctx, liveChannel(session.ID), payload); err != nil {
		return nil, err
	}
	ls.mu.Lock()
	ls.transcript = append(ls.transcript, msg)
	ls.mu.Unlock()
	return &msg, nil
}

// Close leaves the queue, ends any session, and shuts the update channel.
// Backend cleanup is bounded and best-effort.
func (ls *LiveService) Close() error {
	ls.mu.Lock()
	if !ls.started {
		ls.mu.Unlock()
		return nil
	}
	ls.started = false
	ls.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := ls.LeaveQueue(ctx); err != nil {
		logger.Warn("live: leave queue on close failed", "err", err)
	}
	if err := ls.EndSession(ctx); err != nil {
		logger.Warn("live: end session on close failed", "err", err)
	}
	// a failed backend EndSession must not leave the session-scoped
	// subscriptions open, or the wait below never returns
	ls.teardownSession()

	for _, sub := range ls.pairSubs {
		_ = sub.Close()
	}
	if ls.cancel != nil {
		ls.cancel()
	}
	ls.wg.Wait()
	close(ls.updates)
	return nil
}

// consumePairings watches session inserts naming this user and completes
// the queued-to-paired transition for the waiting side.
func (ls *LiveService) consumePairings(ctx context.Context, sub realtime.Subscription) {
	defer ls.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			var session models.LiveSession
			if err := ev.Decode(&session); err != nil || session.ID == "" || !session.IsActive {
				continue
			}
			// the claimer already handled its own insert
			if session.User2ID == ls.userID {
				continue
			}
			ls.mu.Lock()
			alreadyPaired := ls.state == LivePaired
			ls.mu.Unlock()
			if alreadyPaired {
				continue
			}
			ls.becomePaired(ctx, &session)
			ls.emit(LiveUpdate{Kind: LivePairedUpdate, Session: &session, Partner: ls.Partner()})
		}
	}
}

// becomePaired installs the session, resolves the counterpart, and opens
// the session's end-watch and message channel subscriptions.
func (ls *LiveService) becomePaired(ctx context.Context, session *models.LiveSession) {
	ls.mu.Lock()
	ls.state = LivePaired
	ls.session = session
	ls.partner = nil
	ls.transcript = nil
	ls.mu.Unlock()

	if partner := ls.resolvePartner(ctx, session); partner != nil {
		ls.mu.Lock()
		ls.partner = partner
		ls.mu.Unlock()
	}

	endSub, err := ls.feed.Subscribe(ctx, models.LiveSessionsTable,
		realtime.Filter{"id": session.ID}, realtime.EventUpdate)
	if err != nil {
		logger.Warn("live: session end watch failed", "session_id", session.ID, "err", err)
	} else {
		ls.mu.Lock()
		ls.sessionSub = endSub
		ls.mu.Unlock()
		ls.wg.Add(1)
		go ls.watchSessionEnd(endSub, session.ID)
	}

	busSub, err := ls.bus.SubscribeRaw(ctx, liveChannel(session.ID))
	if err != nil {
		logger.Warn("live: message channel subscribe failed", "session_id", session.ID, "err", err)
		return
	}
	ls.mu.Lock()
	ls.busSub = busSub
	ls.mu.Unlock()
	ls.wg.Add(1)
	go ls.consumeMessages(busSub)
}

// resolvePartner looks up the counterpart's profile and primary photo.
// Lookup failure is logged and tolerated; the session stands on its own.
func (ls *LiveService) resolvePartner(ctx context.Context, session *models.LiveSession) *models.LivePartner {
	otherID := session.OtherUser(ls.userID)
	if otherID == "" {
		return nil
	}
	var profile models.Profile
	if err := ls.store.Get(ctx, models.ProfilesTable, store.Key{"id": otherID}, &profile); err != nil {
		logger.Warn("live: partner profile lookup failed", "user_id", otherID, "err", err)
		return nil
	}
	return &models.LivePartner{
		Profile:  profile,
		PhotoURL: primaryPhotoURL(ctx, ls.store, otherID),
	}
}

func (ls *LiveService) watchSessionEnd(sub realtime.Subscription, sessionID string) {
	defer ls.wg.Done()
	for ev := range sub.Events() {
		var session models.LiveSession
		if err := ev.Decode(&session); err != nil || session.ID != sessionID {
			continue
		}
		if session.IsActive {
			continue
		}
		ls.mu.Lock()
		current := ls.session != nil && ls.session.ID == sessionID
		ls.mu.Unlock()
		if !current {
			return
		}
		ls.teardownSession()
		ls.emit(LiveUpdate{Kind: LiveEndedUpdate, Session: &session})
		return
	}
}

func (ls *LiveService) consumeMessages(sub realtime.BusSubscription) {
	defer ls.wg.Done()
	for payload := range sub.Messages() {
		var msg models.LiveMessage
		if err := json.Unmarshal(payload, &msg); err != nil || msg.ID == "" {
			continue
		}
		if msg.SenderID == ls.userID {
			continue // echoed back by the bus
		}
		ls.mu.Lock()
		ls.transcript = append(ls.transcript, msg)
		ls.mu.Unlock()
		m := msg
		ls.emit(LiveUpdate{Kind: LiveMessageUpdate, Message: &m})
	}
}

// teardownSession drops session-scoped subscriptions and local state. The
// transcript is discarded with the session.
func (ls *LiveService) teardownSession() {
	ls.mu.Lock()
	sessionSub := ls.sessionSub
	busSub := ls.busSub
	ls.sessionSub = nil
	ls.busSub = nil
	ls.session = nil
	ls.partner = nil
	ls.transcript = nil
	ls.state = LiveIdle
	ls.mu.Unlock()

	if sessionSub != nil {
		_ = sessionSub.Close()
	}
	if busSub != nil {
		_ = busSub.Close()
	}
}

func (ls *LiveService) emit(update LiveUpdate) {
	select {
	case ls.updates <- update:
	default:
		logger.Warn("live: update dropped, consumer not keeping up", "kind", update.Kind)
	}
}

func liveChannel(sessionID string) string {
	return fmt.Sprintf("live:%s", sessionID)
}
