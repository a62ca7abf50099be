package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	apperr "lovelink_client/errors"
	"lovelink_client/logger"
	"lovelink_client/models"
	"lovelink_client/store"
)

// seriousPageSize caps how many serious-mode profiles one load returns.
const seriousPageSize = 20

// SeriousService runs the marriage-oriented matchmaking track: extended
// profiles, explicit interest expressions, and accept/decline responses.
// An accepted interest creates a regular match so chat opens as usual.
type SeriousService struct {
	Store  store.DataService
	UserID string
}

func NewSeriousService(ds store.DataService, userID string) *SeriousService {
	return &SeriousService{Store: ds, UserID: userID}
}

// GetSeriousProfile returns the extended profile for a user.
func (sv *SeriousService) GetSeriousProfile(ctx context.Context, userID string) (*models.SeriousProfile, error) {
	var profiles []models.SeriousProfile
	err := sv.Store.Query(ctx, models.SeriousProfilesTable, store.Query{
		Eq: map[string]any{"user_id": userID},
	}, &profiles)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, apperr.ErrNotFound
	}
	return &profiles[0], nil
}

// UpdateSeriousProfile creates or replaces the user's extended profile.
func (sv *SeriousService) UpdateSeriousProfile(ctx context.Context, profile models.SeriousProfile) (*models.SeriousProfile, error) {
	if err := requireUser(sv.UserID); err != nil {
		return nil, err
	}
	profile.UserID = sv.UserID
	now := nowRFC3339()
	profile.UpdatedAt = now

	existing, err := sv.GetSeriousProfile(ctx, sv.UserID)
	switch {
	case isNotFound(err):
		profile.ID = uuid.NewString()
		profile.CreatedAt = now
		if err := sv.Store.Insert(ctx, models.SeriousProfilesTable, &profile); err != nil {
			if !errors.Is(err, apperr.ErrDuplicate) {
				return nil, err
			}
			// created concurrently from another device; fall through to replace
			existing, err = sv.GetSeriousProfile(ctx, sv.UserID)
			if err != nil {
				return nil, err
			}
		} else {
			return &profile, nil
		}
	case err != nil:
		return nil, err
	}

	profile.ID = existing.ID
	profile.CreatedAt = existing.CreatedAt
	if err := sv.Store.Upsert(ctx, models.SeriousProfilesTable, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// LoadProfiles returns serious-mode candidates: users with the mode enabled,
// excluding the user themselves, anyone already sent an interest, and block
// relations. Only users with an extended profile appear.
func (sv *SeriousService) LoadProfiles(ctx context.Context) ([]models.SeriousProfileWithDetails, error) {
	if err := requireUser(sv.UserID); err != nil {
		return nil, err
	}

	var sent []models.InterestExpression
	err := sv.Store.Query(ctx, models.InterestExpressionsTable, store.Query{
		Eq: map[string]any{"sender_id": sv.UserID},
	}, &sent)
	if err != nil {
		return nil, err
	}
	blocked, err := blockedUserIDs(ctx, sv.Store, sv.UserID)
	if err != nil {
		return nil, err
	}
	excluded := []any{sv.UserID}
	for _, e := range sent {
		excluded = append(excluded, e.ReceiverID)
	}
	for id := range blocked {
		excluded = append(excluded, id)
	}

	var profiles []models.Profile
	err = sv.Store.Query(ctx, models.ProfilesTable, store.Query{
		Eq:    map[string]any{"serious_mode_enabled": true, "onboarding_completed": true},
		NotIn: map[string][]any{"id": excluded},
	}, &profiles)
	if err != nil {
		return nil, err
	}

	out := make([]models.SeriousProfileWithDetails, 0, seriousPageSize)
	for _, p := range profiles {
		serious, err := sv.GetSeriousProfile(ctx, p.ID)
		if err != nil {
			continue // mode enabled but extended profile not filled in yet
		}
		var photos []models.UserPhoto
		if err := sv.Store.Query(ctx, models.UserPhotosTable, store.Query{
			Eq:      map[string]any{"user_id": p.ID},
			OrderBy: "order_index",
		}, &photos); err != nil {
			logger.Warn("serious: photo lookup failed", "user_id", p.ID, "err", err)
		}
		out = append(out, models.SeriousProfileWithDetails{
			SeriousProfile: *serious,
			Profile:        p,
			Photos:         photos,
		})
		if len(out) == seriousPageSize {
			break
		}
	}
	return out, nil
}

// ExpressInterest sends an explicit interest note to another user. One
// expression per (sender, receiver) pair; repeats fail with ErrDuplicate.
func (sv *SeriousService) ExpressInterest(ctx context.Context, receiverID, message string) (*models.InterestExpression, error) {
	if err := requireUser(sv.UserID); err != nil {
		return nil, err
	}
	expr := models.InterestExpression{
		ID:         uuid.NewString(),
		SenderID:   sv.UserID,
		ReceiverID: receiverID,
		Message:    message,
		Status:     models.ExpressionPending,
		CreatedAt:  nowRFC3339(),
	}
	if err := sv.Store.Insert(ctx, models.InterestExpressionsTable, &expr); err != nil {
		return nil, err
	}
	return &expr, nil
}

// RespondToInterest accepts or declines a pending expression addressed to
// the user. Accepting creates the match. Answering an already-answered
// expression fails with ErrConflict.
func (sv *SeriousService) RespondToInterest(ctx context.Context, expressionID string, accept bool) (*models.Match, error) {
	if err := requireUser(sv.UserID); err != nil {
		return nil, err
	}
	var expr models.InterestExpression
	if err := sv.Store.Get(ctx, models.InterestExpressionsTable, store.Key{"id": expressionID}, &expr); err != nil {
		return nil, err
	}
	if expr.ReceiverID != sv.UserID {
		return nil, apperr.ErrNotFound
	}

	status := models.ExpressionDeclined
	if accept {
		status = models.ExpressionAccepted
	}
	err := sv.Store.UpdateWhere(ctx, models.InterestExpressionsTable,
		map[string]any{"id": expressionID, "status": models.ExpressionPending},
		store.Update{"status": status, "responded_at": nowRFC3339()})
	if err != nil {
		return nil, err
	}
	if !accept {
		return nil, nil
	}
	return newPairMatch(ctx, sv.Store, expr.SenderID, expr.ReceiverID)
}

// ListReceivedInterests returns expressions addressed to the user, newest
// first, enriched with the sender summary. Pass a status to narrow, or ""
// for all.
func (sv *SeriousService) ListReceivedInterests(ctx context.Context, status string) ([]models.ExpressionWithSender, error) {
	if err := requireUser(sv.UserID); err != nil {
		return nil, err
	}
	eq := map[string]any{"receiver_id": sv.UserID}
	if status != "" {
		eq["status"] = status
	}
	var exprs []models.InterestExpression
	err := sv.Store.Query(ctx, models.InterestExpressionsTable, store.Query{
		Eq:      eq,
		OrderBy: "created_at",
		Desc:    true,
	}, &exprs)
	if err != nil {
		return nil, err
	}

	out := make([]models.ExpressionWithSender, 0, len(exprs))
	for _, expr := range exprs {
		item := models.ExpressionWithSender{InterestExpression: expr}
		var sender models.Profile
		if err := sv.Store.Get(ctx, models.ProfilesTable, store.Key{"id": expr.SenderID}, &sender); err != nil {
			logger.Warn("serious: sender profile lookup failed", "user_id", expr.SenderID, "err", err)
		} else {
			item.Sender = sender
			item.PhotoURL = primaryPhotoURL(ctx, sv.Store, expr.SenderID)
		}
		out = append(out, item)
	}
	return out, nil
}
