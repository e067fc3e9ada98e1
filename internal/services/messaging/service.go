package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dmarchetti/faisca/internal/domain/enums"
	"github.com/dmarchetti/faisca/internal/domain/model"
	pgrepo "github.com/dmarchetti/faisca/internal/repo/postgres"
	redrepo "github.com/dmarchetti/faisca/internal/repo/redis"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrUnsupportedType = errors.New("unsupported message type")
	ErrNotFound        = errors.New("conversation not found")
	ErrForbidden       = errors.New("not a participant of this conversation")
)

// TooFastError is returned when the sender hit the per-sender send limit.
type TooFastError struct {
	RetryAfterSec int64
}

func (e *TooFastError) Error() string {
	return fmt.Sprintf("too many messages, retry after %d seconds", e.RetryAfterSec)
}

const defaultMaxTextLen = 2000

type ConversationStore interface {
	GetByID(ctx context.Context, conversationID int64) (pgrepo.ConversationRecord, error)
	GetParticipant(ctx context.Context, conversationID, userID int64) (pgrepo.ParticipantRecord, error)
	SetLastMessage(ctx context.Context, tx pgx.Tx, conversationID, messageID int64, now time.Time) error
	IncrementUnread(ctx context.Context, tx pgx.Tx, conversationID, senderID int64) error
}

type MessageStore interface {
	Insert(ctx context.Context, tx pgx.Tx, conversationID, senderID int64, kind, content string, audioDuration *int, now time.Time) (pgrepo.MessageRecord, error)
}

type RateLimiter interface {
	AllowMessage(ctx context.Context, userID int64) (int64, bool, error)
}

type BlobStore interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

type Config struct {
	MaxTextLen  int
	AudioURLTTL time.Duration
}

type Service struct {
	pool          *pgxpool.Pool
	conversations ConversationStore
	messages      MessageStore
	limiter       RateLimiter
	blobs         BlobStore
	events        EventPublisher
	logger        *zap.Logger
	cfg           Config
	runTx         func(context.Context, func(context.Context, pgx.Tx) error) error
	now           func() time.Time
}

type Dependencies struct {
	Pool          *pgxpool.Pool
	Conversations ConversationStore
	Messages      MessageStore
	Limiter       RateLimiter
	Blobs         BlobStore
	Events        EventPublisher
	Logger        *zap.Logger
}

type SendInput struct {
	ConversationID int64
	SenderID       int64
	Type           string
	// Content is the message text, or the blob key for audio messages.
	Content       string
	AudioDuration *int
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.MaxTextLen <= 0 {
		cfg.MaxTextLen = defaultMaxTextLen
	}
	if cfg.AudioURLTTL <= 0 {
		cfg.AudioURLTTL = 15 * time.Minute
	}

	s := &Service{
		pool:          deps.Pool,
		conversations: deps.Conversations,
		messages:      deps.Messages,
		limiter:       deps.Limiter,
		blobs:         deps.Blobs,
		events:        deps.Events,
		logger:        deps.Logger,
		cfg:           cfg,
	}
	s.runTx = func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
		return pgrepo.WithTx(ctx, s.pool, fn)
	}
	s.now = time.Now
	return s
}

// Send appends a message to the conversation. Inside one transaction it
// inserts the message row, repoints the conversation's last message and bumps
// the unread counter of every other participant. For audio messages the blob
// is already uploaded; if the transaction rolls back the orphaned blob is
// deleted as compensation.
func (s *Service) Send(ctx context.Context, in SendInput) (model.Message, error) {
	if in.ConversationID <= 0 || in.SenderID <= 0 {
		return model.Message{}, ErrValidation
	}
	if s.conversations == nil || s.messages == nil {
		return model.Message{}, fmt.Errorf("messaging dependencies are not configured")
	}

	kind, content, err := s.validatePayload(in)
	if err != nil {
		return model.Message{}, err
	}

	if _, err := s.conversations.GetByID(ctx, in.ConversationID); err != nil {
		if errors.Is(err, pgrepo.ErrConversationNotFound) {
			return model.Message{}, ErrNotFound
		}
		return model.Message{}, err
	}
	if _, err := s.conversations.GetParticipant(ctx, in.ConversationID, in.SenderID); err != nil {
		if errors.Is(err, pgrepo.ErrParticipantNotFound) {
			return model.Message{}, ErrForbidden
		}
		return model.Message{}, err
	}

	if s.limiter != nil {
		retryAfter, allowed, err := s.limiter.AllowMessage(ctx, in.SenderID)
		if err != nil {
			return model.Message{}, err
		}
		if !allowed {
			return model.Message{}, &TooFastError{RetryAfterSec: retryAfter}
		}
	}

	now := s.now().UTC()

	var rec pgrepo.MessageRecord
	if err := s.runTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		var err error
		rec, err = s.messages.Insert(txCtx, tx, in.ConversationID, in.SenderID, kind, content, in.AudioDuration, now)
		if err != nil {
			return err
		}
		if err := s.conversations.SetLastMessage(txCtx, tx, in.ConversationID, rec.ID, now); err != nil {
			return err
		}
		return s.conversations.IncrementUnread(txCtx, tx, in.ConversationID, in.SenderID)
	}); err != nil {
		if kind == string(enums.MessageTypeAudio) {
			s.compensateAudio(ctx, content)
		}
		return model.Message{}, err
	}

	msg := model.Message{
		ID:             rec.ID,
		ConversationID: rec.ConversationID,
		SenderID:       rec.SenderID,
		Type:           rec.Type,
		Content:        rec.Content,
		AudioDuration:  rec.AudioDuration,
		CreatedAt:      rec.CreatedAt,
	}
	if msg.Type == string(enums.MessageTypeAudio) && s.blobs != nil {
		url, err := s.blobs.PresignGet(ctx, msg.Content, s.cfg.AudioURLTTL)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("presign audio url", zap.Error(err), zap.Int64("message_id", msg.ID))
			}
		} else {
			msg.AudioURL = url
		}
	}

	s.emitMessageSent(ctx, msg, now)

	return msg, nil
}

func (s *Service) validatePayload(in SendInput) (kind, content string, err error) {
	kind = strings.ToLower(strings.TrimSpace(in.Type))
	switch enums.MessageType(kind) {
	case enums.MessageTypeText:
		content = strings.TrimSpace(in.Content)
		if content == "" {
			return "", "", ErrValidation
		}
		if len([]rune(content)) > s.cfg.MaxTextLen {
			return "", "", ErrValidation
		}
		return kind, content, nil
	case enums.MessageTypeAudio:
		content = strings.TrimSpace(in.Content)
		if content == "" {
			return "", "", ErrValidation
		}
		if in.AudioDuration != nil && *in.AudioDuration < 0 {
			return "", "", ErrValidation
		}
		return kind, content, nil
	default:
		return "", "", ErrUnsupportedType
	}
}

func (s *Service) compensateAudio(ctx context.Context, key string) {
	if s.blobs == nil || key == "" {
		return
	}
	if err := s.blobs.Delete(ctx, key); err != nil && s.logger != nil {
		s.logger.Warn("delete orphaned audio blob", zap.Error(err), zap.String("key", key))
	}
}

func (s *Service) emitMessageSent(ctx context.Context, msg model.Message, at time.Time) {
	if s.events == nil {
		return
	}
	event := model.MessageSentEvent{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Type:           msg.Type,
		OccurredAt:     at,
	}
	if err := s.events.Publish(ctx, redrepo.ChannelMessageSent, event); err != nil && s.logger != nil {
		s.logger.Warn("publish message sent event", zap.Error(err), zap.Int64("message_id", msg.ID))
	}
}
