package models

// SwipesTable is the backend collection for swipe facts
const SwipesTable = "swipes"

// BlocksTable is the backend collection for block facts
const BlocksTable = "blocks"

// Swipe actions
const (
	ActionLike      = "like"
	ActionDislike   = "dislike"
	ActionSuperlike = "superlike"
)

// Swipe is an append-only preference fact. The composite primary key keeps
// at most one outstanding fact per (swiper, swiped) pair; undo deletes the
// prior fact rather than allowing duplicates.
type Swipe struct {
	SwiperID  string `json:"swiper_id" dynamodbav:"swiper_id" gorm:"primaryKey;size:36"`
	SwipedID  string `json:"swiped_id" dynamodbav:"swiped_id" gorm:"primaryKey;size:36"`
	Action    string `json:"action" dynamodbav:"action" gorm:"size:16;not null"`
	CreatedAt string `json:"created_at,omitempty" dynamodbav:"created_at,omitempty" gorm:"size:40"`
}

func (Swipe) TableName() string { return SwipesTable }

// IsPositive reports whether the action counts toward a mutual match.
func (s Swipe) IsPositive() bool {
	return s.Action == ActionLike || s.Action == ActionSuperlike
}

// Block is a one-directional block fact; blocked profiles are excluded from
// discovery and any active match with them is deactivated.
type Block struct {
	BlockerID string `json:"blocker_id" dynamodbav:"blocker_id" gorm:"primaryKey;size:36"`
	BlockedID string `json:"blocked_id" dynamodbav:"blocked_id" gorm:"primaryKey;size:36"`
	CreatedAt string `json:"created_at,omitempty" dynamodbav:"created_at,omitempty" gorm:"size:40"`
}

func (Block) TableName() string { return BlocksTable }
