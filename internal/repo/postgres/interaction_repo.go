package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type InteractionRepo struct {
	pool *pgxpool.Pool
}

func NewInteractionRepo(pool *pgxpool.Pool) *InteractionRepo {
	return &InteractionRepo{pool: pool}
}

type InteractionRecord struct {
	ID           int64
	ActorUserID  int64
	TargetUserID int64
	Type         string
	Message      *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type LikerRecord struct {
	ActorUserID int64
	LikedAt     time.Time
}

// Upsert writes the single interaction row for the ordered pair
// (actorUserID, targetUserID). A repeated action overwrites type and message.
// The second return value reports whether the row was newly inserted; the
// unique index on the pair is the backstop against concurrent duplicates.
func (r *InteractionRepo) Upsert(ctx context.Context, tx pgx.Tx, actorUserID, targetUserID int64, kind string, message *string, now time.Time) (InteractionRecord, bool, error) {
	if actorUserID <= 0 || targetUserID <= 0 || strings.TrimSpace(kind) == "" {
		return InteractionRecord{}, false, fmt.Errorf("invalid interaction payload")
	}
	if tx == nil {
		return InteractionRecord{}, false, fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var (
		rec      InteractionRecord
		inserted bool
	)
	err := tx.QueryRow(ctx, `
INSERT INTO interactions (
	actor_user_id,
	target_user_id,
	type,
	message,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (actor_user_id, target_user_id) DO UPDATE SET
	type = EXCLUDED.type,
	message = EXCLUDED.message,
	updated_at = EXCLUDED.updated_at
RETURNING id, actor_user_id, target_user_id, type, message, created_at, updated_at, (created_at = updated_at)
`, actorUserID, targetUserID, kind, message, now.UTC()).Scan(
		&rec.ID,
		&rec.ActorUserID,
		&rec.TargetUserID,
		&rec.Type,
		&rec.Message,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&inserted,
	)
	if err != nil {
		return InteractionRecord{}, false, fmt.Errorf("upsert interaction: %w", err)
	}

	return rec, inserted, nil
}

// ExistsWithType reports whether the current interaction row for the ordered
// pair has the given type. Used inside the swipe transaction to detect a
// reciprocal like.
func (r *InteractionRepo) ExistsWithType(ctx context.Context, tx pgx.Tx, actorUserID, targetUserID int64, kind string) (bool, error) {
	if actorUserID <= 0 || targetUserID <= 0 {
		return false, fmt.Errorf("invalid interaction lookup payload")
	}
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}

	var one int
	err := tx.QueryRow(ctx, `
SELECT 1
FROM interactions
WHERE actor_user_id = $1 AND target_user_id = $2 AND type = $3
LIMIT 1
`, actorUserID, targetUserID, kind).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("lookup interaction: %w", err)
	}

	return true, nil
}

// ListLikers returns actors whose current interaction targeting userID is a
// like, excluding users the recipient has already acted upon, most recent
// first.
func (r *InteractionRepo) ListLikers(ctx context.Context, userID int64, limit, offset int) ([]LikerRecord, error) {
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
		return []LikerRecord{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT i.actor_user_id, i.updated_at
FROM interactions i
WHERE
	i.target_user_id = $1
	AND i.type = 'like'
	AND NOT EXISTS (
		SELECT 1
		FROM interactions mine
		WHERE mine.actor_user_id = $1
			AND mine.target_user_id = i.actor_user_id
			AND mine.type IN ('like', 'dislike')
	)
ORDER BY i.updated_at DESC, i.id DESC
LIMIT $2 OFFSET $3
`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list likers: %w", err)
	}
	defer rows.Close()

	items := make([]LikerRecord, 0, limit)
	for rows.Next() {
		var rec LikerRecord
		if err := rows.Scan(&rec.ActorUserID, &rec.LikedAt); err != nil {
			return nil, fmt.Errorf("scan liker: %w", err)
		}
		items = append(items, rec)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate likers: %w", rows.Err())
	}

	return items, nil
}
