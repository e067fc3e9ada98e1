package matches

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	pgrepo "github.com/dmarchetti/faisca/internal/repo/postgres"
)

type pairKey struct {
	low  int64
	high int64
}

type matchStoreStub struct {
	matches map[pairKey]pgrepo.MatchRecord
	byID    map[int64]pgrepo.MatchRecord
	nextID  int64
	lists   []pgrepo.MatchListRecord
}

func newMatchStoreStub() *matchStoreStub {
	return &matchStoreStub{
		matches: map[pairKey]pgrepo.MatchRecord{},
		byID:    map[int64]pgrepo.MatchRecord{},
	}
}

func (s *matchStoreStub) CreateForPair(_ context.Context, _ pgx.Tx, userID, targetID int64) (pgrepo.MatchRecord, bool, error) {
	low, high := userID, targetID
	if low > high {
		low, high = high, low
	}
	key := pairKey{low: low, high: high}
	if existing, ok := s.matches[key]; ok {
		return existing, false, nil
	}

	s.nextID++
	rec := pgrepo.MatchRecord{
		ID:         s.nextID,
		UserLowID:  low,
		UserHighID: high,
		CreatedAt:  time.Now().UTC(),
	}
	s.matches[key] = rec
	s.byID[rec.ID] = rec
	return rec, true, nil
}

func (s *matchStoreStub) GetByID(_ context.Context, _ pgx.Tx, matchID int64) (pgrepo.MatchRecord, error) {
	rec, ok := s.byID[matchID]
	if !ok {
		return pgrepo.MatchRecord{}, pgrepo.ErrMatchNotFound
	}
	return rec, nil
}

func (s *matchStoreStub) ListForUser(_ context.Context, _ int64, _, _ int) ([]pgrepo.MatchListRecord, error) {
	return s.lists, nil
}

func (s *matchStoreStub) DeleteByID(_ context.Context, _ pgx.Tx, matchID int64) error {
	rec, ok := s.byID[matchID]
	if !ok {
		return pgrepo.ErrMatchNotFound
	}
	delete(s.byID, matchID)
	delete(s.matches, pairKey{low: rec.UserLowID, high: rec.UserHighID})
	return nil
}

func newTestService(store *matchStoreStub) *Service {
	svc := NewService(Dependencies{MatchStore: store})
	svc.runTx = func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
		return fn(ctx, nil)
	}
	return svc
}

func TestEnsureMatchIsIdempotentAcrossArgumentOrder(t *testing.T) {
	store := newMatchStoreStub()
	svc := newTestService(store)

	ctx := context.Background()
	first, created, err := svc.EnsureMatch(ctx, 202, 101)
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	if !created {
		t.Fatalf("expected first ensure to create")
	}
	if first.UserLowID != 101 || first.UserHighID != 202 {
		t.Fatalf("expected canonical pair (101,202), got (%d,%d)", first.UserLowID, first.UserHighID)
	}

	second, created, err := svc.EnsureMatch(ctx, 101, 202)
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if created {
		t.Fatalf("expected second ensure to reuse the existing match")
	}
	if second.ID != first.ID {
		t.Fatalf("expected same match id, got %d then %d", first.ID, second.ID)
	}
	if len(store.matches) != 1 {
		t.Fatalf("expected one stored match, got %d", len(store.matches))
	}
}

func TestEnsureMatchRejectsSelfPair(t *testing.T) {
	svc := newTestService(newMatchStoreStub())

	if _, _, err := svc.EnsureMatch(context.Background(), 101, 101); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRemoveRequiresParticipant(t *testing.T) {
	store := newMatchStoreStub()
	svc := newTestService(store)

	ctx := context.Background()
	match, _, err := svc.EnsureMatch(ctx, 101, 202)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	if err := svc.Remove(ctx, match.ID, 999); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for outsider, got %v", err)
	}
	if _, ok := store.byID[match.ID]; !ok {
		t.Fatalf("forbidden remove must not delete the match")
	}

	if err := svc.Remove(ctx, match.ID, 202); err != nil {
		t.Fatalf("participant remove: %v", err)
	}
	if _, ok := store.byID[match.ID]; ok {
		t.Fatalf("expected match to be deleted")
	}
}

func TestRemoveUnknownMatchReturnsNotFound(t *testing.T) {
	svc := newTestService(newMatchStoreStub())

	if err := svc.Remove(context.Background(), 777, 101); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
