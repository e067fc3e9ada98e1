package auth

import (
	"errors"
	"time"
)

var ErrUnauthorized = errors.New("unauthorized")

type AccessClaims struct {
	UserID    int64
	SID       string
	ExpiresAt time.Time
}
