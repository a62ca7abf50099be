package models

// InterestsTable is the backend collection for the global interest catalog
const InterestsTable = "interests"

// UserInterestsTable is the join collection between profiles and interests
const UserInterestsTable = "user_interests"

// Interest is shared reference data; profiles attach and detach membership
// but never mutate the catalog itself.
type Interest struct {
	ID       string `json:"id" dynamodbav:"id" gorm:"primaryKey;size:36"`
	Name     string `json:"name" dynamodbav:"name" gorm:"size:64;not null"`
	Category string `json:"category,omitempty" dynamodbav:"category,omitempty" gorm:"size:48"`
	Icon     string `json:"icon,omitempty" dynamodbav:"icon,omitempty" gorm:"size:16"`
}

func (Interest) TableName() string { return InterestsTable }

// UserInterest links one profile to one catalog interest.
type UserInterest struct {
	UserID     string `json:"user_id" dynamodbav:"user_id" gorm:"primaryKey;size:36"`
	InterestID string `json:"interest_id" dynamodbav:"interest_id" gorm:"primaryKey;size:36"`
}

func (UserInterest) TableName() string { return UserInterestsTable }
