package models

// ConversationsTable is the backend collection for conversations
const ConversationsTable = "conversations"

// MessagesTable is the backend collection for persisted messages
const MessagesTable = "messages"

// Message types
const (
	MessageTypeText = "text"
)

// Conversation is one-to-one with an active match and is created lazily on
// first match detection or first message. It holds no state beyond identity
// and timestamps.
type Conversation struct {
	ID        string `json:"id" dynamodbav:"id" gorm:"primaryKey;size:36"`
	MatchID   string `json:"match_id" dynamodbav:"match_id" gorm:"uniqueIndex;size:36;not null"`
	CreatedAt string `json:"created_at,omitempty" dynamodbav:"created_at,omitempty" gorm:"size:40"`
	UpdatedAt string `json:"updated_at,omitempty" dynamodbav:"updated_at,omitempty" gorm:"size:40"`
}

func (Conversation) TableName() string { return ConversationsTable }

// Message is append-only; only the read flag is mutated, by the recipient.
type Message struct {
	ID             string `json:"id" dynamodbav:"id" gorm:"primaryKey;size:36"`
	ConversationID string `json:"conversation_id" dynamodbav:"conversation_id" gorm:"index;size:36;not null"`
	SenderID       string `json:"sender_id" dynamodbav:"sender_id" gorm:"size:36;not null"`
	Content        string `json:"content" dynamodbav:"content" gorm:"type:text"`
	MessageType    string `json:"message_type" dynamodbav:"message_type" gorm:"size:16"`
	IsRead         bool   `json:"is_read" dynamodbav:"is_read"`
	CreatedAt      string `json:"created_at" dynamodbav:"created_at" gorm:"size:40;index"`
}

func (Message) TableName() string { return MessagesTable }

// ChatPartner is the compact counterpart summary shown in conversation lists.
type ChatPartner struct {
	ID          string `json:"id"`
	FullName    string `json:"full_name"`
	DisplayName string `json:"display_name,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
	IsOnline    bool   `json:"is_online"`
}

// ConversationWithDetails is a conversation enriched for list rendering.
type ConversationWithDetails struct {
	Conversation
	Partner     ChatPartner `json:"other_user"`
	LastMessage *Message    `json:"last_message,omitempty"`
	UnreadCount int         `json:"unread_count"`
}
