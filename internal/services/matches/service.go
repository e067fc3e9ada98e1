package matches

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmarchetti/faisca/internal/domain/model"
	pgrepo "github.com/dmarchetti/faisca/internal/repo/postgres"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("match not found")
	ErrForbidden  = errors.New("not a participant of this match")
)

type MatchStore interface {
	CreateForPair(ctx context.Context, tx pgx.Tx, userID, targetID int64) (pgrepo.MatchRecord, bool, error)
	GetByID(ctx context.Context, tx pgx.Tx, matchID int64) (pgrepo.MatchRecord, error)
	ListForUser(ctx context.Context, userID int64, limit, offset int) ([]pgrepo.MatchListRecord, error)
	DeleteByID(ctx context.Context, tx pgx.Tx, matchID int64) error
}

type Service struct {
	pool       *pgxpool.Pool
	matchStore MatchStore
	runTx      func(context.Context, func(context.Context, pgx.Tx) error) error
}

type Dependencies struct {
	Pool       *pgxpool.Pool
	MatchStore MatchStore
}

type MatchItem struct {
	ID          int64
	OtherUserID int64
	CreatedAt   time.Time
}

func NewService(deps Dependencies) *Service {
	s := &Service{
		pool:       deps.Pool,
		matchStore: deps.MatchStore,
	}
	s.runTx = func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
		return pgrepo.WithTx(ctx, s.pool, fn)
	}
	return s
}

// EnsureMatch creates the canonical match for the unordered pair, or returns
// the existing one. Safe to call from two racing mutual-like detections; the
// unique pair index collapses the race into wasCreated=false for the loser.
func (s *Service) EnsureMatch(ctx context.Context, userA, userB int64) (model.Match, bool, error) {
	if userA <= 0 || userB <= 0 || userA == userB {
		return model.Match{}, false, ErrValidation
	}
	if s.matchStore == nil {
		return model.Match{}, false, fmt.Errorf("match store is nil")
	}

	var (
		rec     pgrepo.MatchRecord
		created bool
	)
	if err := s.runTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		var err error
		rec, created, err = s.matchStore.CreateForPair(txCtx, tx, userA, userB)
		return err
	}); err != nil {
		return model.Match{}, false, err
	}

	return mapRecord(rec), created, nil
}

func (s *Service) List(ctx context.Context, userID int64, limit, offset int) ([]MatchItem, error) {
	if userID <= 0 {
		return nil, ErrValidation
	}
	if s.matchStore == nil {
		return nil, fmt.Errorf("match store is nil")
	}

	rows, err := s.matchStore.ListForUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]MatchItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, MatchItem{
			ID:          row.ID,
			OtherUserID: row.OtherUserID,
			CreatedAt:   row.CreatedAt,
		})
	}
	return items, nil
}

// Remove unmatches on behalf of requesterID. Only a participant of the match
// may remove it.
func (s *Service) Remove(ctx context.Context, matchID, requesterID int64) error {
	if matchID <= 0 || requesterID <= 0 {
		return ErrValidation
	}
	if s.matchStore == nil {
		return fmt.Errorf("match store is nil")
	}

	return s.runTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		rec, err := s.matchStore.GetByID(txCtx, tx, matchID)
		if err != nil {
			if errors.Is(err, pgrepo.ErrMatchNotFound) {
				return ErrNotFound
			}
			return err
		}

		if rec.UserLowID != requesterID && rec.UserHighID != requesterID {
			return ErrForbidden
		}

		if err := s.matchStore.DeleteByID(txCtx, tx, matchID); err != nil {
			if errors.Is(err, pgrepo.ErrMatchNotFound) {
				return ErrNotFound
			}
			return err
		}
		return nil
	})
}

func mapRecord(rec pgrepo.MatchRecord) model.Match {
	return model.Match{
		ID:         rec.ID,
		UserLowID:  rec.UserLowID,
		UserHighID: rec.UserHighID,
		CreatedAt:  rec.CreatedAt,
	}
}
