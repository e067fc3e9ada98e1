package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

type MessageRecord struct {
	ID             int64
	ConversationID int64
	SenderID       int64
	Type           string
	Content        string
	AudioDuration  *int
	CreatedAt      time.Time
}

// Insert appends a message. Messages are immutable; there is no update or
// delete path in this repo.
func (r *MessageRepo) Insert(ctx context.Context, tx pgx.Tx, conversationID, senderID int64, kind, content string, audioDuration *int, now time.Time) (MessageRecord, error) {
	if conversationID <= 0 || senderID <= 0 || strings.TrimSpace(kind) == "" || content == "" {
		return MessageRecord{}, fmt.Errorf("invalid message payload")
	}
	if tx == nil {
		return MessageRecord{}, fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var rec MessageRecord
	err := tx.QueryRow(ctx, `
INSERT INTO messages (
	conversation_id,
	sender_id,
	type,
	content,
	audio_duration,
	created_at
) VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, conversation_id, sender_id, type, content, audio_duration, created_at
`, conversationID, senderID, kind, content, audioDuration, now.UTC()).Scan(
		&rec.ID,
		&rec.ConversationID,
		&rec.SenderID,
		&rec.Type,
		&rec.Content,
		&rec.AudioDuration,
		&rec.CreatedAt,
	)
	if err != nil {
		return MessageRecord{}, fmt.Errorf("insert message: %w", err)
	}

	return rec, nil
}

// ExistsWithAudioKey reports whether any audio message references the blob
// key. The cleanup sweep uses it to tell orphans from live voice messages.
func (r *MessageRepo) ExistsWithAudioKey(ctx context.Context, key string) (bool, error) {
	if strings.TrimSpace(key) == "" {
		return false, fmt.Errorf("invalid audio key")
	}
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1
	FROM messages
	WHERE type = 'audio' AND content = $1
)
`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check audio key reference: %w", err)
	}

	return exists, nil
}

func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID int64, limit, offset int) ([]MessageRecord, error) {
	if conversationID <= 0 {
		return nil, fmt.Errorf("invalid conversation id")
	}
	if limit <= 0 {
		limit = 30
	}
	if offset < 0 {
		offset = 0
	}
	if r.pool == nil {
		return []MessageRecord{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, conversation_id, sender_id, type, content, audio_duration, created_at
FROM messages
WHERE conversation_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3
`, conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	items := make([]MessageRecord, 0, limit)
	for rows.Next() {
		var rec MessageRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.ConversationID,
			&rec.SenderID,
			&rec.Type,
			&rec.Content,
			&rec.AudioDuration,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, rec)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate messages: %w", rows.Err())
	}

	return items, nil
}
