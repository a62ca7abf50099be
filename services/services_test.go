package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"lovelink_client/models"
	"lovelink_client/realtime"
	"lovelink_client/store"
)

// newTestBackend builds the full in-process stack the services run on in
// tests: an isolated in-memory SQLite database and a miniredis-backed
// realtime feed receiving the store's change events.
func newTestBackend(t *testing.T) (store.DataService, *realtime.RedisFeed) {
	t.Helper()

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	feed := realtime.NewRedisFeed(rc)
	t.Cleanup(func() { _ = rc.Close() })

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	policy := store.Policy{Timeout: 2 * time.Second, Retries: 0, Backoff: 10 * time.Millisecond}
	return store.NewSQLStore(db, feed, policy), feed
}

func seedProfile(t *testing.T, ds store.DataService, id, name, gender, dob string) models.Profile {
	t.Helper()
	profile := models.Profile{
		ID:                  id,
		FullName:            name,
		DateOfBirth:         dob,
		Gender:              gender,
		VerificationStatus:  models.VerificationNone,
		SwipeModeEnabled:    true,
		LiveModeEnabled:     true,
		SeriousModeEnabled:  true,
		OnboardingCompleted: true,
		CreatedAt:           time.Now().UTC().Format(time.RFC3339),
	}
	require.NoError(t, ds.Insert(context.Background(), models.ProfilesTable, &profile))
	return profile
}
