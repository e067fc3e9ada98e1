package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrMatchNotFound = errors.New("match not found")

type MatchRepo struct {
	pool *pgxpool.Pool
}

func NewMatchRepo(pool *pgxpool.Pool) *MatchRepo {
	return &MatchRepo{pool: pool}
}

type MatchRecord struct {
	ID         int64
	UserLowID  int64
	UserHighID int64
	CreatedAt  time.Time
}

type MatchListRecord struct {
	ID          int64
	OtherUserID int64
	CreatedAt   time.Time
}

// CreateForPair inserts the canonical match row for the unordered pair
// {userID, targetID}. The pair is stored sorted so the unique index on
// (user_low_id, user_high_id) holds regardless of which side liked last.
// When the row already exists, including when a concurrent transaction just
// created it, the existing row is returned with created=false.
func (r *MatchRepo) CreateForPair(ctx context.Context, tx pgx.Tx, userID, targetID int64) (MatchRecord, bool, error) {
	if userID <= 0 || targetID <= 0 || userID == targetID {
		return MatchRecord{}, false, fmt.Errorf("invalid match payload")
	}
	if tx == nil {
		return MatchRecord{}, false, fmt.Errorf("transaction is required")
	}

	low, high := userID, targetID
	if low > high {
		low, high = high, low
	}

	var rec MatchRecord
	err := tx.QueryRow(ctx, `
INSERT INTO matches (
	user_low_id,
	user_high_id,
	created_at
) VALUES ($1, $2, NOW())
ON CONFLICT (user_low_id, user_high_id) DO NOTHING
RETURNING id, user_low_id, user_high_id, created_at
`, low, high).Scan(&rec.ID, &rec.UserLowID, &rec.UserHighID, &rec.CreatedAt)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return MatchRecord{}, false, fmt.Errorf("create match: %w", err)
	}

	err = tx.QueryRow(ctx, `
SELECT id, user_low_id, user_high_id, created_at
FROM matches
WHERE user_low_id = $1 AND user_high_id = $2
`, low, high).Scan(&rec.ID, &rec.UserLowID, &rec.UserHighID, &rec.CreatedAt)
	if err != nil {
		return MatchRecord{}, false, fmt.Errorf("load existing match: %w", err)
	}

	return rec, false, nil
}

func (r *MatchRepo) GetByID(ctx context.Context, tx pgx.Tx, matchID int64) (MatchRecord, error) {
	if matchID <= 0 {
		return MatchRecord{}, fmt.Errorf("invalid match id")
	}
	if tx == nil {
		return MatchRecord{}, fmt.Errorf("transaction is required")
	}

	var rec MatchRecord
	err := tx.QueryRow(ctx, `
SELECT id, user_low_id, user_high_id, created_at
FROM matches
WHERE id = $1
`, matchID).Scan(&rec.ID, &rec.UserLowID, &rec.UserHighID, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MatchRecord{}, ErrMatchNotFound
		}
		return MatchRecord{}, fmt.Errorf("get match: %w", err)
	}

	return rec, nil
}

func (r *MatchRepo) ListForUser(ctx context.Context, userID int64, limit, offset int) ([]MatchListRecord, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if r.pool == nil {
		return []MatchListRecord{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT
	m.id,
	CASE WHEN m.user_low_id = $1 THEN m.user_high_id ELSE m.user_low_id END AS other_user_id,
	m.created_at
FROM matches m
WHERE m.user_low_id = $1 OR m.user_high_id = $1
ORDER BY m.created_at DESC, m.id DESC
LIMIT $2 OFFSET $3
`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	items := make([]MatchListRecord, 0, limit)
	for rows.Next() {
		var rec MatchListRecord
		if err := rows.Scan(&rec.ID, &rec.OtherUserID, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		items = append(items, rec)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate matches: %w", rows.Err())
	}

	return items, nil
}

func (r *MatchRepo) DeleteByID(ctx context.Context, tx pgx.Tx, matchID int64) error {
	if matchID <= 0 {
		return fmt.Errorf("invalid match id")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
DELETE FROM matches
WHERE id = $1
`, matchID)
	if err != nil {
		return fmt.Errorf("delete match: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrMatchNotFound
	}

	return nil
}
