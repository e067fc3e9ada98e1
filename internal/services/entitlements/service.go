package entitlements

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrValidation = errors.New("validation error")

type Store interface {
	GetPremiumUntil(ctx context.Context, userID int64) (*time.Time, error)
}

type Config struct {
	DefaultIsPremium bool
}

// Service answers "is this user premium right now". Purchases and renewals
// are handled elsewhere; this only reads the current entitlement.
type Service struct {
	store Store
	cfg   Config
	now   func() time.Time
}

func NewService(store Store, cfg Config) *Service {
	return &Service{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
}

func (s *Service) IsPremiumActive(ctx context.Context, userID int64) (bool, error) {
	if userID <= 0 {
		return false, ErrValidation
	}
	if s.store == nil {
		return s.cfg.DefaultIsPremium, nil
	}

	premiumUntil, err := s.store.GetPremiumUntil(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("resolve premium entitlement: %w", err)
	}
	if premiumUntil != nil && premiumUntil.After(s.now().UTC()) {
		return true, nil
	}

	return s.cfg.DefaultIsPremium, nil
}
