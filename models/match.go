package models

// MatchesTable is the backend collection for matches
const MatchesTable = "matches"

// Match is a symmetric relation between two users. User1ID always holds the
// lexicographically smaller id so the unique index covers the unordered pair.
// Matches are deactivated on unmatch/block, never deleted.
type Match struct {
	ID            string `json:"id" dynamodbav:"id" gorm:"primaryKey;size:36"`
	User1ID       string `json:"user1_id" dynamodbav:"user1_id" gorm:"size:36;not null;uniqueIndex:uq_match_pair,priority:1"`
	User2ID       string `json:"user2_id" dynamodbav:"user2_id" gorm:"size:36;not null;uniqueIndex:uq_match_pair,priority:2"`
	MatchedAt     string `json:"matched_at" dynamodbav:"matched_at" gorm:"size:40"`
	IsActive      bool   `json:"is_active" dynamodbav:"is_active"`
	LastMessageAt string `json:"last_message_at,omitempty" dynamodbav:"last_message_at,omitempty" gorm:"size:40"`
}

func (Match) TableName() string { return MatchesTable }

// OtherUser returns the counterpart id for the given participant, or ""
// when the user is not part of the match.
func (m Match) OtherUser(userID string) string {
	switch userID {
	case m.User1ID:
		return m.User2ID
	case m.User2ID:
		return m.User1ID
	}
	return ""
}

// OrderPair returns the two ids in storage order (user1 < user2).
func OrderPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// MatchWithProfile is a match enriched with the counterpart's profile and
// primary photo, ready for display.
type MatchWithProfile struct {
	Match
	OtherProfile Profile `json:"other_user"`
	PhotoURL     string  `json:"photo_url,omitempty"`
}
