package model

import "time"

type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	Type           string    `json:"type"`
	Content        string    `json:"content"`
	AudioDuration  *int      `json:"audio_duration,omitempty"`
	AudioURL       string    `json:"audio_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
