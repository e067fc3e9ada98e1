package dto

import "time"

type MatchResponse struct {
	ID         int64     `json:"id"`
	UserLowID  int64     `json:"user_low_id"`
	UserHighID int64     `json:"user_high_id"`
	CreatedAt  time.Time `json:"created_at"`
}

type MatchItemResponse struct {
	ID          int64     `json:"id"`
	OtherUserID int64     `json:"other_user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type MatchesResponse struct {
	Items []MatchItemResponse `json:"items"`
}
