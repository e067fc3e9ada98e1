package dto

import "time"

type StartConversationRequest struct {
	TargetID int64 `json:"target_id"`
}

type ConversationResponse struct {
	ID            int64     `json:"id"`
	LastMessageID *int64    `json:"last_message_id,omitempty"`
	Created       bool      `json:"created"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ConversationSummaryResponse struct {
	ID          int64            `json:"id"`
	OtherUserID int64            `json:"other_user_id"`
	UnreadCount int              `json:"unread_count"`
	LastReadAt  *time.Time       `json:"last_read_at,omitempty"`
	IsMuted     bool             `json:"is_muted"`
	IsArchived  bool             `json:"is_archived"`
	LastMessage *MessageResponse `json:"last_message,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type ConversationsResponse struct {
	Items []ConversationSummaryResponse `json:"items"`
}

type ConversationSettingsRequest struct {
	IsMuted    *bool `json:"is_muted,omitempty"`
	IsArchived *bool `json:"is_archived,omitempty"`
}
