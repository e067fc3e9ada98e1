package model

import "time"

type Match struct {
	ID         int64     `json:"id"`
	UserLowID  int64     `json:"user_low_id"`
	UserHighID int64     `json:"user_high_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// OtherUser returns the participant that is not userID. The second value is
// false when userID is not part of the match.
func (m Match) OtherUser(userID int64) (int64, bool) {
	switch userID {
	case m.UserLowID:
		return m.UserHighID, true
	case m.UserHighID:
		return m.UserLowID, true
	default:
		return 0, false
	}
}
