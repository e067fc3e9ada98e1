package model

import "time"

type Interaction struct {
	ID           int64     `json:"id"`
	ActorUserID  int64     `json:"actor_user_id"`
	TargetUserID int64     `json:"target_user_id"`
	Type         string    `json:"type"`
	Message      *string   `json:"message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
