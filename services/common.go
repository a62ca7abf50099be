// Package services implements the client-side feature surface: profiles,
// the swipe deck, match detection, chat, live pairing, and the serious
// matchmaking track. Services talk to pluggable data, file, and realtime
// backends and never expose transport details to callers.
package services

import (
	"context"
	"errors"
	"time"

	apperr "lovelink_client/errors"
	"lovelink_client/models"
	"lovelink_client/store"
)

// timestampFormat is RFC3339 with fixed-width nanoseconds so stored strings
// sort chronologically.
const timestampFormat = "2006-01-02T15:04:05.000000000Z07:00"

func nowRFC3339() string {
	return time.Now().UTC().Format(timestampFormat)
}

// primaryPhotoURL returns the primary photo for a user, falling back to the
// first photo by display order. Empty when the user has none.
func primaryPhotoURL(ctx context.Context, ds store.DataService, userID string) string {
	var photos []models.UserPhoto
	err := ds.Query(ctx, models.UserPhotosTable, store.Query{
		Eq:      map[string]any{"user_id": userID},
		OrderBy: "created_at",
	}, &photos)
	if err != nil || len(photos) == 0 {
		return ""
	}
	for _, p := range photos {
		if p.IsPrimary {
			return p.PhotoURL
		}
	}
	return photos[0].PhotoURL
}

// blockedUserIDs returns every user blocked by or blocking userID.
func blockedUserIDs(ctx context.Context, ds store.DataService, userID string) (map[string]bool, error) {
	var blocks []models.Block
	err := ds.Query(ctx, models.BlocksTable, store.Query{
		Any: []map[string]any{
			{"blocker_id": userID},
			{"blocked_id": userID},
		},
	}, &blocks)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		if b.BlockerID == userID {
			out[b.BlockedID] = true
		} else {
			out[b.BlockerID] = true
		}
	}
	return out, nil
}

func requireUser(userID string) error {
	if userID == "" {
		return apperr.ErrAuthRequired
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}
