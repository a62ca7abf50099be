package store

import (
	"fmt"

	"lovelink_client/models"
)

// prototypes maps each collection to a constructor for its record type so
// backends can decode rows and build statements without the caller passing a
// model around.
var prototypes = map[string]func() any{
	models.ProfilesTable:            func() any { return &models.Profile{} },
	models.UserPreferencesTable:     func() any { return &models.UserPreferences{} },
	models.UserPhotosTable:          func() any { return &models.UserPhoto{} },
	models.InterestsTable:           func() any { return &models.Interest{} },
	models.UserInterestsTable:       func() any { return &models.UserInterest{} },
	models.SwipesTable:              func() any { return &models.Swipe{} },
	models.BlocksTable:              func() any { return &models.Block{} },
	models.MatchesTable:             func() any { return &models.Match{} },
	models.ConversationsTable:       func() any { return &models.Conversation{} },
	models.MessagesTable:            func() any { return &models.Message{} },
	models.LiveQueueTable:           func() any { return &models.LiveQueueEntry{} },
	models.LiveSessionsTable:        func() any { return &models.LiveSession{} },
	models.SeriousProfilesTable:     func() any { return &models.SeriousProfile{} },
	models.InterestExpressionsTable: func() any { return &models.InterestExpression{} },
}

// keyFields lists the primary key attributes per collection, in declaration
// order. The DynamoDB backend needs them to build keys; the SQL backend uses
// them to address rows it just wrote.
var keyFields = map[string][]string{
	models.ProfilesTable:            {"id"},
	models.UserPreferencesTable:     {"user_id"},
	models.UserPhotosTable:          {"id"},
	models.InterestsTable:           {"id"},
	models.UserInterestsTable:       {"user_id", "interest_id"},
	models.SwipesTable:              {"swiper_id", "swiped_id"},
	models.BlocksTable:              {"blocker_id", "blocked_id"},
	models.MatchesTable:             {"id"},
	models.ConversationsTable:       {"id"},
	models.MessagesTable:            {"id"},
	models.LiveQueueTable:           {"user_id"},
	models.LiveSessionsTable:        {"id"},
	models.SeriousProfilesTable:     {"id"},
	models.InterestExpressionsTable: {"id"},
}

func prototype(collection string) (any, error) {
	ctor, ok := prototypes[collection]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
	return ctor(), nil
}

// AllModels returns one instance of every record type, for migrations.
func AllModels() []any {
	return []any{
		&models.Profile{},
		&models.UserPreferences{},
		&models.UserPhoto{},
		&models.Interest{},
		&models.UserInterest{},
		&models.Swipe{},
		&models.Block{},
		&models.Match{},
		&models.Conversation{},
		&models.Message{},
		&models.LiveQueueEntry{},
		&models.LiveSession{},
		&models.SeriousProfile{},
		&models.InterestExpression{},
	}
}
