package auth

import (
	"errors"
	"testing"
	"time"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	mgr := NewJWTManager("test-secret", 15*time.Minute)
	now := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)
	mgr.now = func() time.Time { return now }

	token, expiresAt, err := mgr.GenerateAccessToken(101, "sid-101")
	if err != nil {
		t.Fatalf("generate access token: %v", err)
	}
	if got, want := expiresAt, now.Add(15*time.Minute); !got.Equal(want) {
		t.Fatalf("unexpected expiry: got %v want %v", got, want)
	}

	claims, err := mgr.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != 101 {
		t.Fatalf("unexpected user id: %d", claims.UserID)
	}
	if claims.SID != "sid-101" {
		t.Fatalf("unexpected sid: %s", claims.SID)
	}
	if !claims.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("unexpected claim expiry: got %v want %v", claims.ExpiresAt, expiresAt)
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	mgr := NewJWTManager("test-secret", time.Minute)
	mgr.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, _, err := mgr.GenerateAccessToken(101, "sid-101")
	if err != nil {
		t.Fatalf("generate access token: %v", err)
	}

	if _, err := mgr.ParseAccessToken(token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for expired token, got %v", err)
	}
}

func TestParseAccessTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewJWTManager("issuer-secret", time.Minute)
	verifier := NewJWTManager("other-secret", time.Minute)

	token, _, err := issuer.GenerateAccessToken(101, "sid-101")
	if err != nil {
		t.Fatalf("generate access token: %v", err)
	}

	if _, err := verifier.ParseAccessToken(token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for wrong secret, got %v", err)
	}
	if _, err := verifier.ParseAccessToken(""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for empty token, got %v", err)
	}
}
