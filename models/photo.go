package models

// UserPhotosTable is the backend collection for profile photos
const UserPhotosTable = "user_photos"

// UserPhoto belongs to exactly one profile. Exactly one photo per profile
// should carry IsPrimary; the profile service enforces that, not the backend.
type UserPhoto struct {
	ID         string `json:"id" dynamodbav:"id" gorm:"primaryKey;size:36"`
	UserID     string `json:"user_id" dynamodbav:"user_id" gorm:"index;size:36;not null"`
	PhotoURL   string `json:"photo_url" dynamodbav:"photo_url" gorm:"size:512;not null"`
	IsPrimary  bool   `json:"is_primary" dynamodbav:"is_primary"`
	OrderIndex int    `json:"order_index" dynamodbav:"order_index"`
	CreatedAt  string `json:"created_at,omitempty" dynamodbav:"created_at,omitempty" gorm:"size:40"`
}

func (UserPhoto) TableName() string { return UserPhotosTable }
