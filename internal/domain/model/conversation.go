package model

import "time"

type Conversation struct {
	ID            int64     `json:"id"`
	LastMessageID *int64    `json:"last_message_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Participant is the per-user pivot state of a conversation.
type Participant struct {
	ConversationID int64      `json:"conversation_id"`
	UserID         int64      `json:"user_id"`
	UnreadCount    int        `json:"unread_count"`
	LastReadAt     *time.Time `json:"last_read_at,omitempty"`
	IsMuted        bool       `json:"is_muted"`
	IsArchived     bool       `json:"is_archived"`
	JoinedAt       time.Time  `json:"joined_at"`
}
