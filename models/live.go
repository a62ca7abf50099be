package models

// LiveQueueTable is the backend collection for waiting-pool entries
const LiveQueueTable = "live_queue"

// LiveSessionsTable is the backend collection for live sessions
const LiveSessionsTable = "live_sessions"

// Live session types
const (
	SessionTypeText  = "text"
	SessionTypeAudio = "audio"
	SessionTypeVideo = "video"
)

// LiveQueueEntry is a user's standing request to be paired, consumed at most
// once. The user id is the primary key, so a rejoin replaces the prior entry.
type LiveQueueEntry struct {
	UserID          string   `json:"user_id" dynamodbav:"user_id" gorm:"primaryKey;size:36"`
	SessionType     string   `json:"session_type" dynamodbav:"session_type" gorm:"size:16;not null;index"`
	PreferredGender []string `json:"preferred_gender,omitempty" dynamodbav:"preferred_gender,omitempty" gorm:"serializer:json"`
	JoinedAt        string   `json:"joined_at" dynamodbav:"joined_at" gorm:"size:40"`
}

func (LiveQueueEntry) TableName() string { return LiveQueueTable }

// LiveSession pairs two users. Once IsActive is false the row is terminal
// and never mutated again.
type LiveSession struct {
	ID          string `json:"id" dynamodbav:"id" gorm:"primaryKey;size:36"`
	User1ID     string `json:"user1_id" dynamodbav:"user1_id" gorm:"size:36;not null;index"`
	User2ID     string `json:"user2_id" dynamodbav:"user2_id" gorm:"size:36;not null;index"`
	SessionType string `json:"session_type" dynamodbav:"session_type" gorm:"size:16;not null"`
	StartedAt   string `json:"started_at" dynamodbav:"started_at" gorm:"size:40"`
	EndedAt     string `json:"ended_at,omitempty" dynamodbav:"ended_at,omitempty" gorm:"size:40"`
	IsActive    bool   `json:"is_active" dynamodbav:"is_active"`
}

func (LiveSession) TableName() string { return LiveSessionsTable }

// OtherUser returns the counterpart's id, or "" when the user is not part of
// the session.
func (s LiveSession) OtherUser(userID string) string {
	switch userID {
	case s.User1ID:
		return s.User2ID
	case s.User2ID:
		return s.User1ID
	}
	return ""
}

// LivePartner is the resolved counterpart of an active live session.
type LivePartner struct {
	Profile  Profile `json:"profile"`
	PhotoURL string  `json:"photo_url,omitempty"`
}

// LiveMessage is ephemeral: exchanged over the realtime channel only, held
// in each participant's local session state, and gone when the session ends.
type LiveMessage struct {
	ID        string `json:"id"`
	SenderID  string `json:"sender_id"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}
