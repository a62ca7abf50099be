package services

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	apperr "lovelink_client/errors"
	"lovelink_client/logger"
	"lovelink_client/models"
	"lovelink_client/realtime"
	"lovelink_client/store"
)

// ChatService handles persistent messaging between matched users:
// conversations, message history, read state, and live message delivery via
// the change feed.
type ChatService struct {
	Store    store.DataService
	Feed     realtime.ChangeFeed
	UserID   string
	Presence *realtime.PresenceTracker // optional, fills the partner online flag
}

func NewChatService(ds store.DataService, feed realtime.ChangeFeed, userID string) *ChatService {
	return &ChatService{Store: ds, Feed: feed, UserID: userID}
}

// EnsureConversation returns the conversation for a match, creating it on
// first use. Both participants racing the creation converge on one row.
func (cs *ChatService) EnsureConversation(ctx context.Context, matchID string) (*models.Conversation, error) {
	if err := requireUser(cs.UserID); err != nil {
		return nil, err
	}
	if conv, err := cs.findByMatch(ctx, matchID); err != nil || conv != nil {
		return conv, err
	}

	match, err := cs.matchForUser(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.IsActive {
		return nil, apperr.ErrNotFound
	}

	now := nowRFC3339()
	conv := models.Conversation{
		ID:        uuid.NewString(),
		MatchID:   matchID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = cs.Store.Insert(ctx, models.ConversationsTable, &conv)
	if errors.Is(err, apperr.ErrDuplicate) {
		// the other participant created it first
		existing, qerr := cs.findByMatch(ctx, matchID)
		if qerr != nil {
			return nil, qerr
		}
		if existing == nil {
			return nil, apperr.ErrNotFound
		}
		return existing, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// SendMessage appends a message to the conversation and bumps the activity
// timestamps used for list ordering.
func (cs *ChatService) SendMessage(ctx context.Context, conversationID, content string) (*models.Message, error) {
	if err := requireUser(cs.UserID); err != nil {
		return nil, err
	}
	conv, match, err := cs.conversationForUser(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !match.IsActive {
		return nil, apperr.ErrNotFound
	}

	now := nowRFC3339()
	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       cs.UserID,
		Content:        content,
		MessageType:    models.MessageTypeText,
		CreatedAt:      now,
	}
	if err := cs.Store.Insert(ctx, models.MessagesTable, &msg); err != nil {
		return nil, err
	}

	// ordering hints only; the message itself is already durable
	if err := cs.Store.Update(ctx, models.ConversationsTable, store.Key{"id": conv.ID}, store.Update{"updated_at": now}); err != nil {
		logger.Warn("chat: conversation timestamp bump failed", "conversation_id", conv.ID, "err", err)
	}
	if err := cs.Store.Update(ctx, models.MatchesTable, store.Key{"id": match.ID}, store.Update{"last_message_at": now}); err != nil {
		logger.Warn("chat: match timestamp bump failed", "match_id", match.ID, "err", err)
	}
	return &msg, nil
}

// Messages returns the conversation history, oldest first.
func (cs *ChatService) Messages(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	if _, _, err := cs.conversationForUser(ctx, conversationID); err != nil {
		return nil, err
	}
	var msgs []models.Message
	err := cs.Store.Query(ctx, models.MessagesTable, store.Query{
		Eq:      map[string]any{"conversation_id": conversationID},
		OrderBy: "created_at",
		Limit:   limit,
	}, &msgs)
	return msgs, err
}

// MarkRead flags one incoming message as read. Own messages are left alone.
func (cs *ChatService) MarkRead(ctx context.Context, messageID string) error {
	if err := requireUser(cs.UserID); err != nil {
		return err
	}
	var msg models.Message
	if err := cs.Store.Get(ctx, models.MessagesTable, store.Key{"id": messageID}, &msg); err != nil {
		return err
	}
	if _, _, err := cs.conversationForUser(ctx, msg.ConversationID); err != nil {
		return err
	}
	if msg.SenderID == cs.UserID || msg.IsRead {
		return nil
	}
	return cs.Store.Update(ctx, models.MessagesTable, store.Key{"id": messageID}, store.Update{"is_read": true})
}

// MarkConversationRead flags every message from the partner as read and
// returns how many were flagged.
func (cs *ChatService) MarkConversationRead(ctx context.Context, conversationID string) (int, error) {
	if _, _, err := cs.conversationForUser(ctx, conversationID); err != nil {
		return 0, err
	}
	var unread []models.Message
	err := cs.Store.Query(ctx, models.MessagesTable, store.Query{
		Eq:  map[string]any{"conversation_id": conversationID, "is_read": false},
		Neq: map[string]any{"sender_id": cs.UserID},
	}, &unread)
	if err != nil {
		return 0, err
	}
	marked := 0
	for _, msg := range unread {
		if err := cs.Store.Update(ctx, models.MessagesTable, store.Key{"id": msg.ID}, store.Update{"is_read": true}); err != nil {
			logger.Warn("chat: mark read failed", "message_id", msg.ID, "err", err)
			continue
		}
		marked++
	}
	return marked, nil
}

// ListConversations returns the user's conversations, newest activity first,
// each enriched with the partner summary, last message, and unread count.
func (cs *ChatService) ListConversations(ctx context.Context) ([]models.ConversationWithDetails, error) {
	if err := requireUser(cs.UserID); err != nil {
		return nil, err
	}
	var matches []models.Match
	err := cs.Store.Query(ctx, models.MatchesTable, store.Query{
		Eq: map[string]any{"is_active": true},
		Any: []map[string]any{
			{"user1_id": cs.UserID},
			{"user2_id": cs.UserID},
		},
	}, &matches)
	if err != nil {
		return nil, err
	}

	var out []models.ConversationWithDetails
	for _, match := range matches {
		conv, err := cs.findByMatch(ctx, match.ID)
		if err != nil || conv == nil {
			continue
		}
		details := models.ConversationWithDetails{Conversation: *conv}
		details.Partner = cs.partnerSummary(ctx, match)
		details.LastMessage = cs.lastMessage(ctx, conv.ID)
		details.UnreadCount = cs.unreadCount(ctx, conv.ID)
		out = append(out, details)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt > out[j].UpdatedAt
	})
	return out, nil
}

// SubscribeMessages delivers new messages in the conversation as they are
// inserted, including the user's own from other devices.
func (cs *ChatService) SubscribeMessages(ctx context.Context, conversationID string) (realtime.Subscription, error) {
	if _, _, err := cs.conversationForUser(ctx, conversationID); err != nil {
		return nil, err
	}
	return cs.Feed.Subscribe(ctx, models.MessagesTable,
		realtime.Filter{"conversation_id": conversationID}, realtime.EventInsert)
}

func (cs *ChatService) partnerSummary(ctx context.Context, match models.Match) models.ChatPartner {
	otherID := match.OtherUser(cs.UserID)
	partner := models.ChatPartner{ID: otherID}
	var profile models.Profile
	if err := cs.Store.Get(ctx, models.ProfilesTable, store.Key{"id": otherID}, &profile); err != nil {
		logger.Warn("chat: partner profile lookup failed", "user_id", otherID, "err", err)
		return partner
	}
	partner.FullName = profile.FullName
	partner.DisplayName = profile.DisplayName
	partner.PhotoURL = primaryPhotoURL(ctx, cs.Store, otherID)
	partner.IsOnline = profile.IsOnline
	if cs.Presence != nil {
		partner.IsOnline = cs.Presence.IsOnline(otherID)
	}
	return partner
}

func (cs *ChatService) lastMessage(ctx context.Context, conversationID string) *models.Message {
	var msgs []models.Message
	err := cs.Store.Query(ctx, models.MessagesTable, store.Query{
		Eq:      map[string]any{"conversation_id": conversationID},
		OrderBy: "created_at",
		Desc:    true,
		Limit:   1,
	}, &msgs)
	if err != nil || len(msgs) == 0 {
		return nil
	}
	return &msgs[0]
}

func (cs *ChatService) unreadCount(ctx context.Context, conversationID string) int {
	var unread []models.Message
	err := cs.Store.Query(ctx, models.MessagesTable, store.Query{
		Eq:  map[string]any{"conversation_id": conversationID, "is_read": false},
		Neq: map[string]any{"sender_id": cs.UserID},
	}, &unread)
	if err != nil {
		return 0
	}
	return len(unread)
}

func (cs *ChatService) findByMatch(ctx context.Context, matchID string) (*models.Conversation, error) {
	var convs []models.Conversation
	err := cs.Store.Query(ctx, models.ConversationsTable, store.Query{
		Eq: map[string]any{"match_id": matchID},
	}, &convs)
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return nil, nil
	}
	return &convs[0], nil
}

func (cs *ChatService) matchForUser(ctx context.Context, matchID string) (*models.Match, error) {
	var match models.Match
	if err := cs.Store.Get(ctx, models.MatchesTable, store.Key{"id": matchID}, &match); err != nil {
		return nil, err
	}
	if match.OtherUser(cs.UserID) == "" {
		return nil, apperr.ErrNotFound
	}
	return &match, nil
}

func (cs *ChatService) conversationForUser(ctx context.Context, conversationID string) (*models.Conversation, *models.Match, error) {
	var conv models.Conversation
	if err := cs.Store.Get(ctx, models.ConversationsTable, store.Key{"id": conversationID}, &conv); err != nil {
		return nil, nil, err
	}
	match, err := cs.matchForUser(ctx, conv.MatchID)
	if err != nil {
		return nil, nil, err
	}
	return &conv, match, nil
}
