package models

import "time"

// ProfilesTable is the backend collection for user profiles
const ProfilesTable = "profiles"

// UserPreferencesTable is the backend collection for saved discovery filters
const UserPreferencesTable = "user_preferences"

// Genders
const (
	GenderMale           = "male"
	GenderFemale         = "female"
	GenderOther          = "other"
	GenderPreferNotToSay = "prefer_not_to_say"
)

// Verification statuses
const (
	VerificationNone     = "none"
	VerificationPending  = "pending"
	VerificationVerified = "verified"
	VerificationRejected = "rejected"
)

// Relationship goals
const (
	GoalCasual     = "casual"
	GoalSerious    = "serious"
	GoalMarriage   = "marriage"
	GoalFriendship = "friendship"
)

// Profile defines the structure for user profiles. Timestamps are stored as
// RFC3339 strings; DateOfBirth as "2006-01-02".
type Profile struct {
	ID                  string  `json:"id" dynamodbav:"id" gorm:"primaryKey;size:36"`
	Email               string  `json:"email,omitempty" dynamodbav:"email,omitempty" gorm:"size:128"`
	Phone               string  `json:"phone,omitempty" dynamodbav:"phone,omitempty" gorm:"size:32"`
	FullName            string  `json:"full_name" dynamodbav:"full_name" gorm:"size:128;not null"`
	DisplayName         string  `json:"display_name,omitempty" dynamodbav:"display_name,omitempty" gorm:"size:64"`
	DateOfBirth         string  `json:"date_of_birth" dynamodbav:"date_of_birth" gorm:"size:10"`
	Gender              string  `json:"gender" dynamodbav:"gender" gorm:"size:24"`
	Bio                 string  `json:"bio,omitempty" dynamodbav:"bio,omitempty" gorm:"type:text"`
	City                string  `json:"city,omitempty" dynamodbav:"city,omitempty" gorm:"size:64"`
	Country             string  `json:"country,omitempty" dynamodbav:"country,omitempty" gorm:"size:64"`
	Latitude            float64 `json:"latitude,omitempty" dynamodbav:"latitude,omitempty"`
	Longitude           float64 `json:"longitude,omitempty" dynamodbav:"longitude,omitempty"`
	Occupation          string  `json:"occupation,omitempty" dynamodbav:"occupation,omitempty" gorm:"size:96"`
	Company             string  `json:"company,omitempty" dynamodbav:"company,omitempty" gorm:"size:96"`
	Education           string  `json:"education,omitempty" dynamodbav:"education,omitempty" gorm:"size:96"`
	School              string  `json:"school,omitempty" dynamodbav:"school,omitempty" gorm:"size:96"`
	RelationshipGoal    string  `json:"relationship_goal,omitempty" dynamodbav:"relationship_goal,omitempty" gorm:"size:24"`
	HeightCM            int     `json:"height_cm,omitempty" dynamodbav:"height_cm,omitempty"`
	IsOnline            bool    `json:"is_online" dynamodbav:"is_online"`
	LastSeen            string  `json:"last_seen,omitempty" dynamodbav:"last_seen,omitempty" gorm:"size:40"`
	VerificationStatus  string  `json:"verification_status" dynamodbav:"verification_status" gorm:"size:16"`
	IsPremium           bool    `json:"is_premium" dynamodbav:"is_premium"`
	SwipeModeEnabled    bool    `json:"swipe_mode_enabled" dynamodbav:"swipe_mode_enabled"`
	SeriousModeEnabled  bool    `json:"serious_mode_enabled" dynamodbav:"serious_mode_enabled"`
	LiveModeEnabled     bool    `json:"live_mode_enabled" dynamodbav:"live_mode_enabled"`
	OnboardingCompleted bool    `json:"onboarding_completed" dynamodbav:"onboarding_completed"`
	CreatedAt           string  `json:"created_at,omitempty" dynamodbav:"created_at,omitempty" gorm:"size:40"`
	UpdatedAt           string  `json:"updated_at,omitempty" dynamodbav:"updated_at,omitempty" gorm:"size:40"`
}

// TableName maps the model to its collection for the SQL backend
func (Profile) TableName() string { return ProfilesTable }

// Age returns the year-difference age used by discovery filtering.
// It ignores month and day, so it can be off by up to one year; this
// approximation is intentional and mirrors how filtering has always worked.
func (p Profile) Age(now time.Time) int {
	dob, err := time.Parse("2006-01-02", p.DateOfBirth)
	if err != nil {
		return 0
	}
	return now.Year() - dob.Year()
}

// UserPreferences stores a user's saved discovery filters, one row per user.
type UserPreferences struct {
	UserID           string   `json:"user_id" dynamodbav:"user_id" gorm:"primaryKey;size:36"`
	MinAge           int      `json:"min_age" dynamodbav:"min_age"`
	MaxAge           int      `json:"max_age" dynamodbav:"max_age"`
	PreferredGenders []string `json:"preferred_genders,omitempty" dynamodbav:"preferred_genders,omitempty" gorm:"serializer:json"`
	MaxDistanceKm    int      `json:"max_distance_km" dynamodbav:"max_distance_km"`
	ShowVerifiedOnly bool     `json:"show_verified_only" dynamodbav:"show_verified_only"`
	UpdatedAt        string   `json:"updated_at,omitempty" dynamodbav:"updated_at,omitempty" gorm:"size:40"`
}

func (UserPreferences) TableName() string { return UserPreferencesTable }

// DiscoveryFilters are the in-memory filter arguments for candidate loading.
// MaxDistanceKm is declared for forward compatibility but is not applied:
// no real geolocation source is wired, so distance is a pass-through.
type DiscoveryFilters struct {
	MinAge        int      `json:"min_age"`
	MaxAge        int      `json:"max_age"`
	Genders       []string `json:"genders,omitempty"`
	MaxDistanceKm int      `json:"max_distance_km"`
	VerifiedOnly  bool     `json:"verified_only"`
}

// FiltersFromPreferences converts saved preferences into discovery filters.
func FiltersFromPreferences(p UserPreferences) DiscoveryFilters {
	return DiscoveryFilters{
		MinAge:        p.MinAge,
		MaxAge:        p.MaxAge,
		Genders:       p.PreferredGenders,
		MaxDistanceKm: p.MaxDistanceKm,
		VerifiedOnly:  p.ShowVerifiedOnly,
	}
}
