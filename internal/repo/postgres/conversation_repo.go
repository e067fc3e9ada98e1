package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrParticipantNotFound  = errors.New("participant not found")
)

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

type ConversationRecord struct {
	ID            int64
	LastMessageID *int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type ParticipantRecord struct {
	ConversationID int64
	UserID         int64
	UnreadCount    int
	LastReadAt     *time.Time
	IsMuted        bool
	IsArchived     bool
	JoinedAt       time.Time
}

type ConversationSummaryRecord struct {
	ID            int64
	OtherUserID   int64
	UnreadCount   int
	LastReadAt    *time.Time
	IsMuted       bool
	IsArchived    bool
	LastMessage   *MessageRecord
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FindBetween looks up the 1:1 conversation whose participant set is exactly
// {userA, userB}.
func (r *ConversationRepo) FindBetween(ctx context.Context, tx pgx.Tx, userA, userB int64) (ConversationRecord, error) {
	if userA <= 0 || userB <= 0 || userA == userB {
		return ConversationRecord{}, fmt.Errorf("invalid conversation lookup payload")
	}
	if tx == nil {
		return ConversationRecord{}, fmt.Errorf("transaction is required")
	}

	var rec ConversationRecord
	err := tx.QueryRow(ctx, `
SELECT c.id, c.last_message_id, c.created_at, c.updated_at
FROM conversations c
JOIN conversation_participants pa ON pa.conversation_id = c.id AND pa.user_id = $1
JOIN conversation_participants pb ON pb.conversation_id = c.id AND pb.user_id = $2
WHERE (
	SELECT COUNT(*)
	FROM conversation_participants p
	WHERE p.conversation_id = c.id
) = 2
ORDER BY c.id
LIMIT 1
`, userA, userB).Scan(&rec.ID, &rec.LastMessageID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ConversationRecord{}, ErrConversationNotFound
		}
		return ConversationRecord{}, fmt.Errorf("find conversation between users: %w", err)
	}

	return rec, nil
}

// Create inserts the conversation and one participant row per user in the
// same transaction, so membership is never partial. A duplicate participant
// id hits the composite primary key and is treated as already present.
func (r *ConversationRepo) Create(ctx context.Context, tx pgx.Tx, participantIDs []int64, now time.Time) (ConversationRecord, error) {
	if len(participantIDs) < 2 {
		return ConversationRecord{}, fmt.Errorf("conversation requires at least two participants")
	}
	if tx == nil {
		return ConversationRecord{}, fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var rec ConversationRecord
	err := tx.QueryRow(ctx, `
INSERT INTO conversations (created_at, updated_at)
VALUES ($1, $1)
RETURNING id, last_message_id, created_at, updated_at
`, now.UTC()).Scan(&rec.ID, &rec.LastMessageID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return ConversationRecord{}, fmt.Errorf("create conversation: %w", err)
	}

	for _, userID := range participantIDs {
		if userID <= 0 {
			return ConversationRecord{}, fmt.Errorf("invalid participant id")
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO conversation_participants (
	conversation_id,
	user_id,
	unread_count,
	joined_at
) VALUES ($1, $2, 0, $3)
ON CONFLICT (conversation_id, user_id) DO NOTHING
`, rec.ID, userID, now.UTC()); err != nil {
			return ConversationRecord{}, fmt.Errorf("add conversation participant: %w", err)
		}
	}

	return rec, nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, conversationID int64) (ConversationRecord, error) {
	if conversationID <= 0 {
		return ConversationRecord{}, fmt.Errorf("invalid conversation id")
	}
	if r.pool == nil {
		return ConversationRecord{}, ErrConversationNotFound
	}

	var rec ConversationRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, last_message_id, created_at, updated_at
FROM conversations
WHERE id = $1
`, conversationID).Scan(&rec.ID, &rec.LastMessageID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ConversationRecord{}, ErrConversationNotFound
		}
		return ConversationRecord{}, fmt.Errorf("get conversation: %w", err)
	}

	return rec, nil
}

func (r *ConversationRepo) GetParticipant(ctx context.Context, conversationID, userID int64) (ParticipantRecord, error) {
	if conversationID <= 0 || userID <= 0 {
		return ParticipantRecord{}, fmt.Errorf("invalid participant lookup payload")
	}
	if r.pool == nil {
		return ParticipantRecord{}, ErrParticipantNotFound
	}

	var rec ParticipantRecord
	err := r.pool.QueryRow(ctx, `
SELECT conversation_id, user_id, unread_count, last_read_at, is_muted, is_archived, joined_at
FROM conversation_participants
WHERE conversation_id = $1 AND user_id = $2
`, conversationID, userID).Scan(
		&rec.ConversationID,
		&rec.UserID,
		&rec.UnreadCount,
		&rec.LastReadAt,
		&rec.IsMuted,
		&rec.IsArchived,
		&rec.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ParticipantRecord{}, ErrParticipantNotFound
		}
		return ParticipantRecord{}, fmt.Errorf("get conversation participant: %w", err)
	}

	return rec, nil
}

func (r *ConversationRepo) MarkRead(ctx context.Context, conversationID, userID int64, now time.Time) error {
	if conversationID <= 0 || userID <= 0 {
		return fmt.Errorf("invalid mark read payload")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if r.pool == nil {
		return ErrParticipantNotFound
	}

	result, err := r.pool.Exec(ctx, `
UPDATE conversation_participants
SET unread_count = 0, last_read_at = $3
WHERE conversation_id = $1 AND user_id = $2
`, conversationID, userID, now.UTC())
	if err != nil {
		return fmt.Errorf("mark conversation read: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrParticipantNotFound
	}

	return nil
}

// IncrementUnread bumps the unread counter for every participant except the
// sender. Runs inside the send-message transaction.
func (r *ConversationRepo) IncrementUnread(ctx context.Context, tx pgx.Tx, conversationID, senderID int64) error {
	if conversationID <= 0 || senderID <= 0 {
		return fmt.Errorf("invalid unread increment payload")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	if _, err := tx.Exec(ctx, `
UPDATE conversation_participants
SET unread_count = unread_count + 1
WHERE conversation_id = $1 AND user_id <> $2
`, conversationID, senderID); err != nil {
		return fmt.Errorf("increment unread counters: %w", err)
	}

	return nil
}

func (r *ConversationRepo) SetLastMessage(ctx context.Context, tx pgx.Tx, conversationID, messageID int64, now time.Time) error {
	if conversationID <= 0 || messageID <= 0 {
		return fmt.Errorf("invalid last message payload")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	result, err := tx.Exec(ctx, `
UPDATE conversations
SET last_message_id = $2, updated_at = $3
WHERE id = $1
`, conversationID, messageID, now.UTC())
	if err != nil {
		return fmt.Errorf("set last message: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrConversationNotFound
	}

	return nil
}

func (r *ConversationRepo) SetParticipantFlags(ctx context.Context, conversationID, userID int64, muted, archived *bool) error {
	if conversationID <= 0 || userID <= 0 {
		return fmt.Errorf("invalid participant flags payload")
	}
	if muted == nil && archived == nil {
		return nil
	}
	if r.pool == nil {
		return ErrParticipantNotFound
	}

	result, err := r.pool.Exec(ctx, `
UPDATE conversation_participants
SET
	is_muted = COALESCE($3, is_muted),
	is_archived = COALESCE($4, is_archived)
WHERE conversation_id = $1 AND user_id = $2
`, conversationID, userID, muted, archived)
	if err != nil {
		return fmt.Errorf("set participant flags: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrParticipantNotFound
	}

	return nil
}

// ListForUser returns the caller's conversations with the other participant,
// the caller's own pivot state and a last-message preview, most recently
// updated first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID int64, limit, offset int) ([]ConversationSummaryRecord, error) {
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
		return []ConversationSummaryRecord{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT
	c.id,
	other.user_id,
	me.unread_count,
	me.last_read_at,
	me.is_muted,
	me.is_archived,
	m.id,
	m.conversation_id,
	m.sender_id,
	m.type,
	m.content,
	m.audio_duration,
	m.created_at,
	c.created_at,
	c.updated_at
FROM conversations c
JOIN conversation_participants me ON me.conversation_id = c.id AND me.user_id = $1
JOIN conversation_participants other ON other.conversation_id = c.id AND other.user_id <> $1
LEFT JOIN messages m ON m.id = c.last_message_id
ORDER BY c.updated_at DESC, c.id DESC
LIMIT $2 OFFSET $3
`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	items := make([]ConversationSummaryRecord, 0, limit)
	for rows.Next() {
		var (
			rec        ConversationSummaryRecord
			msgID      *int64
			msgConvID  *int64
			msgSender  *int64
			msgType    *string
			msgContent *string
			msgAudio   *int
			msgCreated *time.Time
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.OtherUserID,
			&rec.UnreadCount,
			&rec.LastReadAt,
			&rec.IsMuted,
			&rec.IsArchived,
			&msgID,
			&msgConvID,
			&msgSender,
			&msgType,
			&msgContent,
			&msgAudio,
			&msgCreated,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan conversation summary: %w", err)
		}
		if msgID != nil {
			rec.LastMessage = &MessageRecord{
				ID:             *msgID,
				ConversationID: *msgConvID,
				SenderID:       *msgSender,
				Type:           *msgType,
				Content:        *msgContent,
				AudioDuration:  msgAudio,
				CreatedAt:      *msgCreated,
			}
		}
		items = append(items, rec)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate conversations: %w", rows.Err())
	}

	return items, nil
}
