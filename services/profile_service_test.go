package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "lovelink_client/errors"
	"lovelink_client/models"
	"lovelink_client/store"
)

func TestCreateAndGetProfile(t *testing.T) {
	ds, _ := newTestBackend(t)
	ctx := context.Background()
	svc := &ProfileService{Store: ds}

	created, err := svc.CreateProfile(ctx, models.Profile{
		FullName:    "Alice",
		DateOfBirth: "1995-03-10",
		Gender:      models.GenderFemale,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.VerificationNone, created.VerificationStatus)

	got, err := svc.GetProfile(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.FullName)

	_, err = svc.GetProfile(ctx, uuid.NewString())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateProfileBumpsTimestamp(t *testing.T) {
	ds, _ := newTestBackend(t)
	ctx := context.Background()
	svc := &ProfileService{Store: ds}
	seedProfile(t, ds, "alice", "Alice", models.GenderFemale, "1995-03-10")

	updated, err := svc.UpdateProfile(ctx, "alice", store.Update{"bio": "hello world", "city": "Mumbai"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", updated.Bio)
	assert.Equal(t, "Mumbai", updated.City)
	assert.NotEmpty(t, updated.UpdatedAt)
}

func TestExactlyOnePrimaryPhoto(t *testing.T) {
	ds, _ := newTestBackend(t)
	ctx := context.Background()
	svc := &ProfileService{Store: ds}
	seedProfile(t, ds, "alice", "Alice", models.GenderFemale, "1995-03-10")

	first, err := svc.AddPhoto(ctx, "alice", "photos/a.jpg", false)
	require.NoError(t, err)
	assert.True(t, first.IsPrimary, "first photo becomes primary regardless")

	second, err := svc.AddPhoto(ctx, "alice", "photos/b.jpg", true)
	require.NoError(t, err)
	assert.True(t, second.IsPrimary)

	photos, err := svc.GetPhotos(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, photos, 2)
	primaries := 0
	for _, p := range photos {
		if p.IsPrimary {
			primaries++
		}
	}
	assert.Equal(t, 1, primaries)

	require.NoError(t, svc.SetPrimaryPhoto(ctx, "alice", first.ID))
	photos, err = svc.GetPhotos(ctx, "alice")
	require.NoError(t, err)
	primaries = 0
	for _, p := range photos {
		if p.IsPrimary {
			primaries++
			assert.Equal(t, first.ID, p.ID)
		}
	}
	assert.Equal(t, 1, primaries)
}

func TestDeletePrimaryPromotesNext(t *testing.T) {
	ds, _ := newTestBackend(t)
	ctx := context.Background()
	svc := &ProfileService{Store: ds}
	seedProfile(t, ds, "alice", "Alice", models.GenderFemale, "1995-03-10")

	first, err := svc.AddPhoto(ctx, "alice", "photos/a.jpg", true)
	require.NoError(t, err)
	_, err = svc.AddPhoto(ctx, "alice", "photos/b.jpg", false)
	require.NoError(t, err)

	require.NoError(t, svc.DeletePhoto(ctx, "alice", first.ID))
	photos, err := svc.GetPhotos(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.True(t, photos[0].IsPrimary, "remaining photo takes over primary")

	require.NoError(t, svc.DeletePhoto(ctx, "alice", first.ID), "deleting twice is quiet")
}

func TestPhotoOwnershipEnforced(t *testing.T) {
	ds, _ := newTestBackend(t)
	ctx := context.Background()
	svc := &ProfileService{Store: ds}
	seedProfile(t, ds, "alice", "Alice", models.GenderFemale, "1995-03-10")
	seedProfile(t, ds, "bob", "Bob", models.GenderMale, "1993-08-21")

	photo, err := svc.AddPhoto(ctx, "alice", "photos/a.jpg", true)
	require.NoError(t, err)

	err = svc.SetPrimaryPhoto(ctx, "bob", photo.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	err = svc.DeletePhoto(ctx, "bob", photo.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestInterestsRoundTrip(t *testing.T) {
	ds, _ := newTestBackend(t)
	ctx := context.Background()
	svc := &ProfileService{Store: ds}
	seedProfile(t, ds, "alice", "Alice", models.GenderFemale, "1995-03-10")

	hiking := models.Interest{ID: uuid.NewString(), Name: "Hiking", Category: "outdoors"}
	music := models.Interest{ID: uuid.NewString(), Name: "Music", Category: "culture"}
	require.NoError(t, ds.Insert(ctx, models.InterestsTable, &hiking))
	require.NoError(t, ds.Insert(ctx, models.InterestsTable, &music))

	require.NoError(t, svc.SetUserInterests(ctx, "alice", []string{hiking.ID, music.ID}))
	got, err := svc.GetUserInterests(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// replacing shrinks the set
	require.NoError(t, svc.SetUserInterests(ctx, "alice", []string{music.ID}))
	got, err = svc.GetUserInterests(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Music", got[0].Name)
}

func TestToggleInterest(t *testing.T) {
	ds, _ := newTestBackend(t)
	ctx := context.Background()
	svc := &ProfileService{Store: ds}
	seedProfile(t, ds, "alice", "Alice", models.GenderFemale, "1995-03-10")

	hiking := models.Interest{ID: uuid.NewString(), Name: "Hiking", Category: "outdoors"}
	require.NoError(t, ds.Insert(ctx, models.InterestsTable, &hiking))

	attached, err := svc.ToggleInterest(ctx, "alice", hiking.ID)
	require.NoError(t, err)
	assert.True(t, attached)

	attached, err = svc.ToggleInterest(ctx, "alice", hiking.ID)
	require.NoError(t, err)
	assert.False(t, attached, "second toggle detaches")

	got, err := svc.GetUserInterests(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = svc.ToggleInterest(ctx, "alice", "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound, "unknown catalog entry")
}

func TestPreferencesDefaultAndSave(t *testing.T) {
	ds, _ := newTestBackend(t)
	ctx := context.Background()
	svc := &ProfileService{Store: ds}
	seedProfile(t, ds, "alice", "Alice", models.GenderFemale, "1995-03-10")

	prefs, err := svc.GetPreferences(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 18, prefs.MinAge, "defaults when never saved")

	prefs.MinAge = 28
	prefs.MaxAge = 35
	prefs.PreferredGenders = []string{models.GenderMale}
	require.NoError(t, svc.SavePreferences(ctx, *prefs))

	got, err := svc.GetPreferences(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 28, got.MinAge)
	assert.Equal(t, []string{models.GenderMale}, got.PreferredGenders)

	filters := models.FiltersFromPreferences(*got)
	assert.Equal(t, 28, filters.MinAge)
	assert.Equal(t, []string{models.GenderMale}, filters.Genders)
}

func TestSetOnlineMirrorsPresence(t *testing.T) {
	ds, _ := newTestBackend(t)
	ctx := context.Background()
	svc := &ProfileService{Store: ds}
	seedProfile(t, ds, "alice", "Alice", models.GenderFemale, "1995-03-10")

	require.NoError(t, svc.SetOnline(ctx, "alice", true))
	got, err := svc.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, got.IsOnline)

	require.NoError(t, svc.SetOnline(ctx, "alice", false))
	got, err = svc.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, got.IsOnline)
	assert.NotEmpty(t, got.LastSeen)

	// unknown users are ignored, presence can outlive a deleted profile
	require.NoError(t, svc.SetOnline(ctx, "ghost", true))
}
