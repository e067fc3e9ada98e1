package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EntitlementRepo struct {
	pool *pgxpool.Pool
}

func NewEntitlementRepo(pool *pgxpool.Pool) *EntitlementRepo {
	return &EntitlementRepo{pool: pool}
}

// GetPremiumUntil returns the premium expiry for a user, or nil when the user
// has no entitlement row.
func (r *EntitlementRepo) GetPremiumUntil(ctx context.Context, userID int64) (*time.Time, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return nil, nil
	}

	var premiumUntil *time.Time
	err := r.pool.QueryRow(ctx, `
SELECT premium_until
FROM entitlements
WHERE user_id = $1
`, userID).Scan(&premiumUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get premium entitlement: %w", err)
	}

	return premiumUntil, nil
}
