package model

import "time"

// Domain events handed to the notification transport. Delivery is
// fire-and-forget; the emitting transaction never waits on it.

type MatchCreatedEvent struct {
	MatchID    int64     `json:"match_id"`
	UserLowID  int64     `json:"user_low_id"`
	UserHighID int64     `json:"user_high_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

type MessageSentEvent struct {
	MessageID      int64     `json:"message_id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	Type           string    `json:"type"`
	OccurredAt     time.Time `json:"occurred_at"`
}
