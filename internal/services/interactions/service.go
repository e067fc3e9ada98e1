package interactions

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
	ErrUnsupportedType = errors.New("unsupported interaction type")
	ErrMessageRequired = errors.New("message is required for quick messages")
	ErrPremiumRequired = errors.New("premium required")
)

const maxQuickMessageLen = 255

type InteractionStore interface {
	Upsert(ctx context.Context, tx pgx.Tx, actorUserID, targetUserID int64, kind string, message *string, now time.Time) (pgrepo.InteractionRecord, bool, error)
	ExistsWithType(ctx context.Context, tx pgx.Tx, actorUserID, targetUserID int64, kind string) (bool, error)
	ListLikers(ctx context.Context, userID int64, limit, offset int) ([]pgrepo.LikerRecord, error)
}

type MatchStore interface {
	CreateForPair(ctx context.Context, tx pgx.Tx, userID, targetID int64) (pgrepo.MatchRecord, bool, error)
}

type EntitlementChecker interface {
	IsPremiumActive(ctx context.Context, userID int64) (bool, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

type Service struct {
	pool         *pgxpool.Pool
	interactions InteractionStore
	matchStore   MatchStore
	entitlements EntitlementChecker
	events       EventPublisher
	logger       *zap.Logger
	runTx        func(context.Context, func(context.Context, pgx.Tx) error) error
	now          func() time.Time
}

type Dependencies struct {
	Pool         *pgxpool.Pool
	Interactions InteractionStore
	MatchStore   MatchStore
	Entitlements EntitlementChecker
	Events       EventPublisher
	Logger       *zap.Logger
}

type RecordResult struct {
	Interaction  model.Interaction
	Created      bool
	MatchCreated bool
	Match        *model.Match
}

type Liker struct {
	UserID  int64
	LikedAt time.Time
}

func NewService(deps Dependencies) *Service {
	s := &Service{
		pool:         deps.Pool,
		interactions: deps.Interactions,
		matchStore:   deps.MatchStore,
		entitlements: deps.Entitlements,
		events:       deps.Events,
		logger:       deps.Logger,
		now:          time.Now,
	}
	s.runTx = func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
		return pgrepo.WithTx(ctx, s.pool, fn)
	}
	return s
}

// Record upserts the directional interaction row for (actorID, targetID) and,
// for likes, detects mutuality and promotes it to a match inside the same
// transaction. A repeated action from the same actor to the same target
// overwrites the previous row instead of duplicating it.
func (s *Service) Record(ctx context.Context, actorID, targetID int64, kind, message string) (RecordResult, error) {
	if actorID <= 0 || targetID <= 0 || actorID == targetID {
		return RecordResult{}, ErrValidation
	}

	normalizedKind, err := normalizeKind(kind)
	if err != nil {
		return RecordResult{}, err
	}

	var msg *string
	if normalizedKind == string(enums.InteractionTypeQuickMessage) {
		trimmed := strings.TrimSpace(message)
		if trimmed == "" {
			return RecordResult{}, ErrMessageRequired
		}
		if len([]rune(trimmed)) > maxQuickMessageLen {
			return RecordResult{}, ErrValidation
		}

		if s.entitlements == nil {
			return RecordResult{}, fmt.Errorf("entitlement checker is nil")
		}
		isPremium, err := s.entitlements.IsPremiumActive(ctx, actorID)
		if err != nil {
			return RecordResult{}, err
		}
		if !isPremium {
			return RecordResult{}, ErrPremiumRequired
		}
		msg = &trimmed
	}

	if s.interactions == nil || s.matchStore == nil {
		return RecordResult{}, fmt.Errorf("interaction dependencies are not configured")
	}

	now := s.now().UTC()

	var (
		rec          pgrepo.InteractionRecord
		created      bool
		matchRec     pgrepo.MatchRecord
		matchCreated bool
	)
	if err := s.runTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		var err error
		rec, created, err = s.interactions.Upsert(txCtx, tx, actorID, targetID, normalizedKind, msg, now)
		if err != nil {
			return err
		}

		if normalizedKind != string(enums.InteractionTypeLike) {
			return nil
		}

		mutual, err := s.interactions.ExistsWithType(txCtx, tx, targetID, actorID, string(enums.InteractionTypeLike))
		if err != nil {
			return err
		}
		if !mutual {
			return nil
		}

		matchRec, matchCreated, err = s.matchStore.CreateForPair(txCtx, tx, actorID, targetID)
		return err
	}); err != nil {
		return RecordResult{}, err
	}

	result := RecordResult{
		Interaction:  mapInteraction(rec),
		Created:      created,
		MatchCreated: matchCreated,
	}
	if matchCreated {
		match := model.Match{
			ID:         matchRec.ID,
			UserLowID:  matchRec.UserLowID,
			UserHighID: matchRec.UserHighID,
			CreatedAt:  matchRec.CreatedAt,
		}
		result.Match = &match
		s.emitMatchCreated(ctx, match, now)
	}

	return result, nil
}

// WhoLiked lists users whose current interaction targeting userID is a like,
// excluding anyone userID has already liked or disliked. Premium only.
func (s *Service) WhoLiked(ctx context.Context, userID int64, limit, offset int) ([]Liker, error) {
	if userID <= 0 {
		return nil, ErrValidation
	}
	if s.interactions == nil {
		return nil, fmt.Errorf("interaction store is nil")
	}

	if s.entitlements != nil {
		isPremium, err := s.entitlements.IsPremiumActive(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !isPremium {
			return nil, ErrPremiumRequired
		}
	}

	rows, err := s.interactions.ListLikers(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]Liker, 0, len(rows))
	for _, row := range rows {
		items = append(items, Liker{
			UserID:  row.ActorUserID,
			LikedAt: row.LikedAt,
		})
	}
	return items, nil
}

func (s *Service) emitMatchCreated(ctx context.Context, match model.Match, at time.Time) {
	if s.logger != nil {
		s.logger.Info("match created",
			zap.Int64("match_id", match.ID),
			zap.Int64("user_low_id", match.UserLowID),
			zap.Int64("user_high_id", match.UserHighID),
		)
	}
	if s.events == nil {
		return
	}
	event := model.MatchCreatedEvent{
		MatchID:    match.ID,
		UserLowID:  match.UserLowID,
		UserHighID: match.UserHighID,
		OccurredAt: at,
	}
	if err := s.events.Publish(ctx, redrepo.ChannelMatchCreated, event); err != nil && s.logger != nil {
		s.logger.Warn("publish match created event", zap.Error(err), zap.Int64("match_id", match.ID))
	}
}

func normalizeKind(input string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(input))
	switch enums.InteractionType(value) {
	case enums.InteractionTypeLike,
		enums.InteractionTypeDislike,
		enums.InteractionTypeQuickMessage,
		enums.InteractionTypeFriendRequest,
		enums.InteractionTypeBlock:
		return value, nil
	default:
		return "", ErrUnsupportedType
	}
}

func mapInteraction(rec pgrepo.InteractionRecord) model.Interaction {
	return model.Interaction{
		ID:           rec.ID,
		ActorUserID:  rec.ActorUserID,
		TargetUserID: rec.TargetUserID,
		Type:         rec.Type,
		Message:      rec.Message,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}
