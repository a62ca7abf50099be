// Command seed migrates the SQL schema and loads development fixtures: the
// interest catalog and a handful of demo profiles with discovery modes
// enabled.
package main

import (
	"context"
	"os"

	"github.com/google/uuid"

	"lovelink_client/config"
	"lovelink_client/logger"
	"lovelink_client/models"
	"lovelink_client/store"
)

func main() {
	cfg := config.New()
	logger.InitFromConfig(cfg)

	db, err := store.NewSQLDB(cfg)
	if err != nil {
		logger.Error("seed: database connection failed", "err", err)
		os.Exit(1)
	}
	if err := store.Migrate(db); err != nil {
		logger.Error("seed: migration failed", "err", err)
		os.Exit(1)
	}
	logger.Info("seed: schema migrated")

	ds := store.NewSQLStore(db, nil, store.DefaultPolicy())
	ctx := context.Background()

	for _, interest := range interestCatalog() {
		if err := ds.Upsert(ctx, models.InterestsTable, &interest); err != nil {
			logger.Error("seed: interest upsert failed", "name", interest.Name, "err", err)
			os.Exit(1)
		}
	}
	logger.Info("seed: interest catalog loaded")

	for _, profile := range demoProfiles() {
		if err := ds.Upsert(ctx, models.ProfilesTable, &profile); err != nil {
			logger.Error("seed: profile upsert failed", "name", profile.FullName, "err", err)
			os.Exit(1)
		}
	}
	logger.Info("seed: demo profiles loaded")
}

func interestCatalog() []models.Interest {
	names := map[string][]string{
		"lifestyle": {"Travel", "Cooking", "Fitness", "Yoga", "Photography"},
		"culture":   {"Music", "Movies", "Reading", "Art", "Theatre"},
		"social":    {"Foodie", "Dancing", "Volunteering", "Board Games"},
		"outdoors":  {"Hiking", "Cycling", "Swimming", "Camping"},
	}
	var out []models.Interest
	for category, items := range names {
		for _, name := range items {
			out = append(out, models.Interest{
				ID:       uuid.NewString(),
				Name:     name,
				Category: category,
			})
		}
	}
	return out
}

func demoProfiles() []models.Profile {
	type seedUser struct {
		name   string
		gender string
		dob    string
		city   string
	}
	users := []seedUser{
		{"Asha Verma", models.GenderFemale, "1996-04-12", "Mumbai"},
		{"Rohan Mehta", models.GenderMale, "1993-11-02", "Pune"},
		{"Sara Khan", models.GenderFemale, "1998-07-23", "Delhi"},
		{"Dev Patel", models.GenderMale, "1995-01-30", "Bengaluru"},
		{"Mia Fernandes", models.GenderFemale, "1997-09-14", "Goa"},
		{"Arjun Nair", models.GenderMale, "1992-06-05", "Kochi"},
	}
	out := make([]models.Profile, 0, len(users))
	for _, u := range users {
		out = append(out, models.Profile{
			ID:                  uuid.NewString(),
			FullName:            u.name,
			DateOfBirth:         u.dob,
			Gender:              u.gender,
			City:                u.city,
			Country:             "India",
			VerificationStatus:  models.VerificationNone,
			SwipeModeEnabled:    true,
			LiveModeEnabled:     true,
			OnboardingCompleted: true,
		})
	}
	return out
}
