package dto

import "time"

type InteractionRequest struct {
	TargetID int64  `json:"target_id"`
	Type     string `json:"type"`
	Message  string `json:"message,omitempty"`
}

type InteractionResponse struct {
	ID           int64          `json:"id"`
	TargetUserID int64          `json:"target_user_id"`
	Type         string         `json:"type"`
	Message      *string        `json:"message,omitempty"`
	Created      bool           `json:"created"`
	Match        *MatchResponse `json:"match,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type LikerResponse struct {
	UserID  int64     `json:"user_id"`
	LikedAt time.Time `json:"liked_at"`
}

type LikersResponse struct {
	Items []LikerResponse `json:"items"`
}
