package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	apperr "lovelink_client/errors"
	"lovelink_client/filestore"
	"lovelink_client/logger"
	"lovelink_client/models"
	"lovelink_client/store"
)

// ProfileService manages profiles, photos, interests, preferences, and the
// online flag mirrored from presence.
type ProfileService struct {
	Store store.DataService
	Files filestore.FileStore
}

// GetProfile retrieves a profile by ID
func (ps *ProfileService) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	if err := ps.Store.Get(ctx, models.ProfilesTable, store.Key{"id": userID}, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// CreateProfile inserts a new profile, filling id and timestamps.
func (ps *ProfileService) CreateProfile(ctx context.Context, profile models.Profile) (*models.Profile, error) {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	if profile.VerificationStatus == "" {
		profile.VerificationStatus = models.VerificationNone
	}
	now := nowRFC3339()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	if err := ps.Store.Insert(ctx, models.ProfilesTable, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile applies the given field updates and returns the fresh profile.
func (ps *ProfileService) UpdateProfile(ctx context.Context, userID string, upd store.Update) (*models.Profile, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	upd["updated_at"] = nowRFC3339()
	if err := ps.Store.Update(ctx, models.ProfilesTable, store.Key{"id": userID}, upd); err != nil {
		return nil, err
	}
	return ps.GetProfile(ctx, userID)
}

// SetOnline mirrors a presence transition into the profile record. It is the
// sink the presence tracker reports through.
func (ps *ProfileService) SetOnline(ctx context.Context, userID string, online bool) error {
	upd := store.Update{"is_online": online}
	if !online {
		upd["last_seen"] = nowRFC3339()
	}
	err := ps.Store.Update(ctx, models.ProfilesTable, store.Key{"id": userID}, upd)
	if isNotFound(err) {
		return nil
	}
	return err
}

// --- Photos ---

// GetPhotos returns a user's photos in display order.
func (ps *ProfileService) GetPhotos(ctx context.Context, userID string) ([]models.UserPhoto, error) {
	var photos []models.UserPhoto
	err := ps.Store.Query(ctx, models.UserPhotosTable, store.Query{
		Eq:      map[string]any{"user_id": userID},
		OrderBy: "order_index",
	}, &photos)
	return photos, err
}

// AddPhoto registers a stored photo for the user. The first photo always
// becomes primary; asking for primary demotes the current one first.
func (ps *ProfileService) AddPhoto(ctx context.Context, userID, photoURL string, primary bool) (*models.UserPhoto, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	existing, err := ps.GetPhotos(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		primary = true
	}
	if primary {
		if err := ps.demotePrimary(ctx, userID); err != nil {
			return nil, err
		}
	}
	photo := models.UserPhoto{
		ID:         uuid.NewString(),
		UserID:     userID,
		PhotoURL:   photoURL,
		IsPrimary:  primary,
		OrderIndex: len(existing),
		CreatedAt:  nowRFC3339(),
	}
	if err := ps.Store.Insert(ctx, models.UserPhotosTable, &photo); err != nil {
		return nil, err
	}
	return &photo, nil
}

// UploadPhoto pushes the binary to the file store and registers the result.
func (ps *ProfileService) UploadPhoto(ctx context.Context, userID, fileName, contentType string, body io.Reader, primary bool) (*models.UserPhoto, error) {
	if ps.Files == nil {
		return nil, errors.New("no file store configured")
	}
	key, err := ps.Files.Upload(ctx, fileName, contentType, body)
	if err != nil {
		return nil, err
	}
	return ps.AddPhoto(ctx, userID, key, primary)
}

// RequestPhotoUpload returns a presigned upload URL and the key the photo
// will live under. The caller registers the key with AddPhoto once the
// transfer finishes.
func (ps *ProfileService) RequestPhotoUpload(ctx context.Context, fileName, contentType string) (string, string, error) {
	if ps.Files == nil {
		return "", "", errors.New("no file store configured")
	}
	return ps.Files.UploadURL(ctx, fileName, contentType)
}

// PhotoViewURL resolves a stored photo key to a fetchable URL.
func (ps *ProfileService) PhotoViewURL(ctx context.Context, key string) (string, error) {
	if ps.Files == nil {
		return "", errors.New("no file store configured")
	}
	return ps.Files.ReadURL(ctx, key)
}

// SetPrimaryPhoto promotes one photo and demotes the rest.
func (ps *ProfileService) SetPrimaryPhoto(ctx context.Context, userID, photoID string) error {
	var photo models.UserPhoto
	if err := ps.Store.Get(ctx, models.UserPhotosTable, store.Key{"id": photoID}, &photo); err != nil {
		return err
	}
	if photo.UserID != userID {
		return apperr.ErrNotFound
	}
	if photo.IsPrimary {
		return nil
	}
	if err := ps.demotePrimary(ctx, userID); err != nil {
		return err
	}
	return ps.Store.Update(ctx, models.UserPhotosTable, store.Key{"id": photoID}, store.Update{"is_primary": true})
}

// DeletePhoto removes a photo; if it was primary the earliest remaining
// photo is promoted so the profile keeps exactly one primary.
func (ps *ProfileService) DeletePhoto(ctx context.Context, userID, photoID string) error {
	var photo models.UserPhoto
	err := ps.Store.Get(ctx, models.UserPhotosTable, store.Key{"id": photoID}, &photo)
	if isNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if photo.UserID != userID {
		return apperr.ErrNotFound
	}
	if err := ps.Store.Delete(ctx, models.UserPhotosTable, store.Key{"id": photoID}); err != nil {
		return err
	}
	if ps.Files != nil {
		if err := ps.Files.Delete(ctx, photo.PhotoURL); err != nil {
			logger.Warn("profile: photo blob delete failed", "key", photo.PhotoURL, "err", err)
		}
	}
	if !photo.IsPrimary {
		return nil
	}
	remaining, err := ps.GetPhotos(ctx, userID)
	if err != nil || len(remaining) == 0 {
		return err
	}
	return ps.Store.Update(ctx, models.UserPhotosTable, store.Key{"id": remaining[0].ID}, store.Update{"is_primary": true})
}

func (ps *ProfileService) demotePrimary(ctx context.Context, userID string) error {
	err := ps.Store.UpdateWhere(ctx, models.UserPhotosTable,
		map[string]any{"user_id": userID, "is_primary": true},
		store.Update{"is_primary": false})
	if errors.Is(err, apperr.ErrConflict) {
		return nil // no primary to demote
	}
	return err
}

// --- Interests ---

// ListInterests returns the shared interest catalog.
func (ps *ProfileService) ListInterests(ctx context.Context) ([]models.Interest, error) {
	var interests []models.Interest
	err := ps.Store.Query(ctx, models.InterestsTable, store.Query{OrderBy: "name"}, &interests)
	return interests, err
}

// GetUserInterests returns the catalog entries attached to a user.
func (ps *ProfileService) GetUserInterests(ctx context.Context, userID string) ([]models.Interest, error) {
	var links []models.UserInterest
	err := ps.Store.Query(ctx, models.UserInterestsTable, store.Query{
		Eq: map[string]any{"user_id": userID},
	}, &links)
	if err != nil {
		return nil, err
	}
	interests := make([]models.Interest, 0, len(links))
	for _, link := range links {
		var interest models.Interest
		if err := ps.Store.Get(ctx, models.InterestsTable, store.Key{"id": link.InterestID}, &interest); err != nil {
			logger.Warn("profile: skipping unknown interest", "interest_id", link.InterestID, "err", err)
			continue
		}
		interests = append(interests, interest)
	}
	return interests, nil
}

// SetUserInterests replaces a user's interest links with the given set.
func (ps *ProfileService) SetUserInterests(ctx context.Context, userID string, interestIDs []string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	err := ps.Store.DeleteWhere(ctx, models.UserInterestsTable, map[string]any{"user_id": userID})
	if err != nil && !errors.Is(err, apperr.ErrConflict) {
		return err
	}
	for _, id := range interestIDs {
		link := models.UserInterest{UserID: userID, InterestID: id}
		if err := ps.Store.Insert(ctx, models.UserInterestsTable, &link); err != nil {
			if errors.Is(err, apperr.ErrDuplicate) {
				continue
			}
			return fmt.Errorf("attach interest %s: %w", id, err)
		}
	}
	return nil
}

// ToggleInterest attaches the interest when absent and detaches it when
// present. Returns whether the interest is attached afterwards.
func (ps *ProfileService) ToggleInterest(ctx context.Context, userID, interestID string) (bool, error) {
	if err := requireUser(userID); err != nil {
		return false, err
	}
	var interest models.Interest
	if err := ps.Store.Get(ctx, models.InterestsTable, store.Key{"id": interestID}, &interest); err != nil {
		return false, err
	}
	link := models.UserInterest{UserID: userID, InterestID: interestID}
	if err := ps.Store.Insert(ctx, models.UserInterestsTable, &link); err != nil {
		if !errors.Is(err, apperr.ErrDuplicate) {
			return false, err
		}
		key := store.Key{"user_id": userID, "interest_id": interestID}
		if err := ps.Store.Delete(ctx, models.UserInterestsTable, key); err != nil {
			return true, err
		}
		return false, nil
	}
	return true, nil
}

// --- Preferences ---

// GetPreferences returns the saved discovery filters, or defaults when the
// user never saved any.
func (ps *ProfileService) GetPreferences(ctx context.Context, userID string) (*models.UserPreferences, error) {
	var prefs models.UserPreferences
	err := ps.Store.Get(ctx, models.UserPreferencesTable, store.Key{"user_id": userID}, &prefs)
	if isNotFound(err) {
		return &models.UserPreferences{UserID: userID, MinAge: 18, MaxAge: 99, MaxDistanceKm: 100}, nil
	}
	if err != nil {
		return nil, err
	}
	return &prefs, nil
}

// SavePreferences stores the discovery filters, replacing any prior row.
func (ps *ProfileService) SavePreferences(ctx context.Context, prefs models.UserPreferences) error {
	if err := requireUser(prefs.UserID); err != nil {
		return err
	}
	prefs.UpdatedAt = nowRFC3339()
	return ps.Store.Upsert(ctx, models.UserPreferencesTable, &prefs)
}
