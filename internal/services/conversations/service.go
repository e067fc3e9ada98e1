package conversations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dmarchetti/faisca/internal/domain/enums"
	"github.com/dmarchetti/faisca/internal/domain/model"
	pgrepo "github.com/dmarchetti/faisca/internal/repo/postgres"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("conversation not found")
	ErrForbidden  = errors.New("not a participant of this conversation")
)

type ConversationStore interface {
	FindBetween(ctx context.Context, tx pgx.Tx, userA, userB int64) (pgrepo.ConversationRecord, error)
	Create(ctx context.Context, tx pgx.Tx, participantIDs []int64, now time.Time) (pgrepo.ConversationRecord, error)
	GetByID(ctx context.Context, conversationID int64) (pgrepo.ConversationRecord, error)
	GetParticipant(ctx context.Context, conversationID, userID int64) (pgrepo.ParticipantRecord, error)
	MarkRead(ctx context.Context, conversationID, userID int64, now time.Time) error
	SetParticipantFlags(ctx context.Context, conversationID, userID int64, muted, archived *bool) error
	ListForUser(ctx context.Context, userID int64, limit, offset int) ([]pgrepo.ConversationSummaryRecord, error)
}

type MessageStore interface {
	ListByConversation(ctx context.Context, conversationID int64, limit, offset int) ([]pgrepo.MessageRecord, error)
}

type AudioURLResolver interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type Config struct {
	AudioURLTTL time.Duration
}

type Service struct {
	pool          *pgxpool.Pool
	conversations ConversationStore
	messages      MessageStore
	audioURLs     AudioURLResolver
	logger        *zap.Logger
	cfg           Config
	runTx         func(context.Context, func(context.Context, pgx.Tx) error) error
	now           func() time.Time
}

type Dependencies struct {
	Pool          *pgxpool.Pool
	Conversations ConversationStore
	Messages      MessageStore
	AudioURLs     AudioURLResolver
	Logger        *zap.Logger
}

type Summary struct {
	ID          int64
	OtherUserID int64
	UnreadCount int
	LastReadAt  *time.Time
	IsMuted     bool
	IsArchived  bool
	LastMessage *model.Message
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.AudioURLTTL <= 0 {
		cfg.AudioURLTTL = 15 * time.Minute
	}

	s := &Service{
		pool:          deps.Pool,
		conversations: deps.Conversations,
		messages:      deps.Messages,
		audioURLs:     deps.AudioURLs,
		logger:        deps.Logger,
		cfg:           cfg,
	}
	s.runTx = func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
		return pgrepo.WithTx(ctx, s.pool, fn)
	}
	s.now = time.Now
	return s
}

// GetOrStart returns the 1:1 conversation between the two users, creating it
// with both participant rows when none exists yet. Creation is atomic:
// either the conversation and all participant rows land, or nothing does.
func (s *Service) GetOrStart(ctx context.Context, userA, userB int64) (model.Conversation, bool, error) {
	if userA <= 0 || userB <= 0 || userA == userB {
		return model.Conversation{}, false, ErrValidation
	}
	if s.conversations == nil {
		return model.Conversation{}, false, fmt.Errorf("conversation store is nil")
	}

	var (
		rec     pgrepo.ConversationRecord
		created bool
	)
	if err := s.runTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		existing, err := s.conversations.FindBetween(txCtx, tx, userA, userB)
		if err == nil {
			rec = existing
			return nil
		}
		if !errors.Is(err, pgrepo.ErrConversationNotFound) {
			return err
		}

		rec, err = s.conversations.Create(txCtx, tx, []int64{userA, userB}, s.now().UTC())
		if err != nil {
			return err
		}
		created = true
		return nil
	}); err != nil {
		return model.Conversation{}, false, err
	}

	return mapConversation(rec), created, nil
}

// MarkRead zeroes the caller's unread counter and stamps last_read_at.
// Reading messages does not mark them read; callers compose the two.
func (s *Service) MarkRead(ctx context.Context, conversationID, userID int64) error {
	if conversationID <= 0 || userID <= 0 {
		return ErrValidation
	}
	if s.conversations == nil {
		return fmt.Errorf("conversation store is nil")
	}

	if _, err := s.conversations.GetByID(ctx, conversationID); err != nil {
		if errors.Is(err, pgrepo.ErrConversationNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.conversations.MarkRead(ctx, conversationID, userID, s.now().UTC()); err != nil {
		if errors.Is(err, pgrepo.ErrParticipantNotFound) {
			return ErrForbidden
		}
		return err
	}
	return nil
}

// ListMessages returns the conversation's messages newest first, after
// checking the caller is a participant.
func (s *Service) ListMessages(ctx context.Context, conversationID, userID int64, limit, offset int) ([]model.Message, error) {
	if conversationID <= 0 || userID <= 0 {
		return nil, ErrValidation
	}
	if s.conversations == nil || s.messages == nil {
		return nil, fmt.Errorf("conversation dependencies are not configured")
	}

	if _, err := s.conversations.GetByID(ctx, conversationID); err != nil {
		if errors.Is(err, pgrepo.ErrConversationNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if _, err := s.conversations.GetParticipant(ctx, conversationID, userID); err != nil {
		if errors.Is(err, pgrepo.ErrParticipantNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}

	rows, err := s.messages.ListByConversation(ctx, conversationID, limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]model.Message, 0, len(rows))
	for _, row := range rows {
		items = append(items, s.mapMessage(ctx, row))
	}
	return items, nil
}

// List returns the caller's conversations, most recently active first, with
// the other participant, the caller's unread state and a last-message
// preview.
func (s *Service) List(ctx context.Context, userID int64, limit, offset int) ([]Summary, error) {
	if userID <= 0 {
		return nil, ErrValidation
	}
	if s.conversations == nil {
		return nil, fmt.Errorf("conversation store is nil")
	}

	rows, err := s.conversations.ListForUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]Summary, 0, len(rows))
	for _, row := range rows {
		item := Summary{
			ID:          row.ID,
			OtherUserID: row.OtherUserID,
			UnreadCount: row.UnreadCount,
			LastReadAt:  row.LastReadAt,
			IsMuted:     row.IsMuted,
			IsArchived:  row.IsArchived,
			CreatedAt:   row.CreatedAt,
			UpdatedAt:   row.UpdatedAt,
		}
		if row.LastMessage != nil {
			preview := s.mapMessage(ctx, *row.LastMessage)
			if preview.Type == string(enums.MessageTypeAudio) {
				// The preview never exposes the raw blob key.
				preview.Content = ""
			}
			item.LastMessage = &preview
		}
		items = append(items, item)
	}
	return items, nil
}

// SetSettings toggles the caller's mute/archive flags on a conversation.
func (s *Service) SetSettings(ctx context.Context, conversationID, userID int64, muted, archived *bool) error {
	if conversationID <= 0 || userID <= 0 {
		return ErrValidation
	}
	if muted == nil && archived == nil {
		return nil
	}
	if s.conversations == nil {
		return fmt.Errorf("conversation store is nil")
	}

	if _, err := s.conversations.GetByID(ctx, conversationID); err != nil {
		if errors.Is(err, pgrepo.ErrConversationNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.conversations.SetParticipantFlags(ctx, conversationID, userID, muted, archived); err != nil {
		if errors.Is(err, pgrepo.ErrParticipantNotFound) {
			return ErrForbidden
		}
		return err
	}
	return nil
}

func (s *Service) mapMessage(ctx context.Context, rec pgrepo.MessageRecord) model.Message {
	msg := model.Message{
		ID:             rec.ID,
		ConversationID: rec.ConversationID,
		SenderID:       rec.SenderID,
		Type:           rec.Type,
		Content:        rec.Content,
		AudioDuration:  rec.AudioDuration,
		CreatedAt:      rec.CreatedAt,
	}
	if msg.Type == string(enums.MessageTypeAudio) && s.audioURLs != nil {
		url, err := s.audioURLs.PresignGet(ctx, msg.Content, s.cfg.AudioURLTTL)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("presign audio url", zap.Error(err), zap.Int64("message_id", msg.ID))
			}
		} else {
			msg.AudioURL = url
		}
	}
	return msg
}

func mapConversation(rec pgrepo.ConversationRecord) model.Conversation {
	return model.Conversation{
		ID:            rec.ID,
		LastMessageID: rec.LastMessageID,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}
