package interactions

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmarchetti/faisca/internal/domain/enums"
	pgrepo "github.com/dmarchetti/faisca/internal/repo/postgres"
)

type pairKey struct {
	actor  int64
	target int64
}

type interactionStoreStub struct {
	rows       map[pairKey]pgrepo.InteractionRecord
	nextID     int64
	likers     []pgrepo.LikerRecord
	likersUser int64
}

func newInteractionStoreStub() *interactionStoreStub {
	return &interactionStoreStub{rows: map[pairKey]pgrepo.InteractionRecord{}}
}

func (s *interactionStoreStub) Upsert(_ context.Context, _ pgx.Tx, actorUserID, targetUserID int64, kind string, message *string, now time.Time) (pgrepo.InteractionRecord, bool, error) {
	key := pairKey{actor: actorUserID, target: targetUserID}
	if existing, ok := s.rows[key]; ok {
		existing.Type = kind
		existing.Message = message
		existing.UpdatedAt = now
		s.rows[key] = existing
		return existing, false, nil
	}

	s.nextID++
	rec := pgrepo.InteractionRecord{
		ID:           s.nextID,
		ActorUserID:  actorUserID,
		TargetUserID: targetUserID,
		Type:         kind,
		Message:      message,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.rows[key] = rec
	return rec, true, nil
}

func (s *interactionStoreStub) ExistsWithType(_ context.Context, _ pgx.Tx, actorUserID, targetUserID int64, kind string) (bool, error) {
	rec, ok := s.rows[pairKey{actor: actorUserID, target: targetUserID}]
	return ok && rec.Type == kind, nil
}

func (s *interactionStoreStub) ListLikers(_ context.Context, userID int64, _, _ int) ([]pgrepo.LikerRecord, error) {
	s.likersUser = userID
	return s.likers, nil
}

type matchStoreStub struct {
	matches map[pairKey]pgrepo.MatchRecord
	nextID  int64
}

func newMatchStoreStub() *matchStoreStub {
	return &matchStoreStub{matches: map[pairKey]pgrepo.MatchRecord{}}
}

func (s *matchStoreStub) CreateForPair(_ context.Context, _ pgx.Tx, userID, targetID int64) (pgrepo.MatchRecord, bool, error) {
	low, high := userID, targetID
	if low > high {
		low, high = high, low
	}
	key := pairKey{actor: low, target: high}
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
	return rec, true, nil
}

type entitlementStub struct {
	premium map[int64]bool
	err     error
}

func (s *entitlementStub) IsPremiumActive(_ context.Context, userID int64) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.premium[userID], nil
}

type publisherStub struct {
	channels []string
	payloads []any
	err      error
}

func (s *publisherStub) Publish(_ context.Context, channel string, payload any) error {
	s.channels = append(s.channels, channel)
	s.payloads = append(s.payloads, payload)
	return s.err
}

func newTestService(interactions *interactionStoreStub, matches *matchStoreStub, ents *entitlementStub, pub *publisherStub) *Service {
	svc := NewService(Dependencies{
		Interactions: interactions,
		MatchStore:   matches,
		Entitlements: ents,
		Events:       pub,
	})
	svc.runTx = func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
		return fn(ctx, nil)
	}
	return svc
}

func TestRecordRepeatedActionOverwritesInsteadOfDuplicating(t *testing.T) {
	store := newInteractionStoreStub()
	svc := newTestService(store, newMatchStoreStub(), &entitlementStub{}, &publisherStub{})

	ctx := context.Background()
	first, err := svc.Record(ctx, 101, 202, "dislike", "")
	if err != nil {
		t.Fatalf("first record: %v", err)
	}
	if !first.Created {
		t.Fatalf("expected first interaction to be created")
	}

	second, err := svc.Record(ctx, 101, 202, "like", "")
	if err != nil {
		t.Fatalf("second record: %v", err)
	}
	if second.Created {
		t.Fatalf("expected repeated pair to overwrite, not create")
	}
	if second.Interaction.ID != first.Interaction.ID {
		t.Fatalf("expected same row id, got %d then %d", first.Interaction.ID, second.Interaction.ID)
	}
	if second.Interaction.Type != string(enums.InteractionTypeLike) {
		t.Fatalf("expected type to be rewritten to like, got %s", second.Interaction.Type)
	}
	if len(store.rows) != 1 {
		t.Fatalf("expected one stored row, got %d", len(store.rows))
	}
}

func TestRecordMutualLikeCreatesOneCanonicalMatch(t *testing.T) {
	store := newInteractionStoreStub()
	matches := newMatchStoreStub()
	pub := &publisherStub{}
	svc := newTestService(store, matches, &entitlementStub{}, pub)

	ctx := context.Background()
	first, err := svc.Record(ctx, 202, 101, "like", "")
	if err != nil {
		t.Fatalf("first like: %v", err)
	}
	if first.MatchCreated {
		t.Fatalf("one-directional like must not create a match")
	}

	second, err := svc.Record(ctx, 101, 202, "like", "")
	if err != nil {
		t.Fatalf("second like: %v", err)
	}
	if !second.MatchCreated || second.Match == nil {
		t.Fatalf("expected mutual like to create a match, got %+v", second)
	}
	if second.Match.UserLowID != 101 || second.Match.UserHighID != 202 {
		t.Fatalf("expected canonical pair (101,202), got (%d,%d)", second.Match.UserLowID, second.Match.UserHighID)
	}

	// Liking again must not mint a second match.
	third, err := svc.Record(ctx, 101, 202, "like", "")
	if err != nil {
		t.Fatalf("third like: %v", err)
	}
	if third.MatchCreated {
		t.Fatalf("repeated like must not create another match")
	}
	if len(matches.matches) != 1 {
		t.Fatalf("expected exactly one match, got %d", len(matches.matches))
	}

	if len(pub.channels) != 1 || !strings.Contains(pub.channels[0], "match_created") {
		t.Fatalf("expected one match_created event, got %v", pub.channels)
	}
}

func TestRecordRejectsSelfInteraction(t *testing.T) {
	svc := newTestService(newInteractionStoreStub(), newMatchStoreStub(), &entitlementStub{}, &publisherStub{})

	if _, err := svc.Record(context.Background(), 101, 101, "like", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for self interaction, got %v", err)
	}
}

func TestRecordRejectsUnsupportedType(t *testing.T) {
	svc := newTestService(newInteractionStoreStub(), newMatchStoreStub(), &entitlementStub{}, &publisherStub{})

	if _, err := svc.Record(context.Background(), 101, 202, "superlike", ""); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestRecordQuickMessageRequiresPremium(t *testing.T) {
	ents := &entitlementStub{premium: map[int64]bool{}}
	store := newInteractionStoreStub()
	svc := newTestService(store, newMatchStoreStub(), ents, &publisherStub{})

	ctx := context.Background()
	if _, err := svc.Record(ctx, 101, 202, "quick_message", "hey there"); !errors.Is(err, ErrPremiumRequired) {
		t.Fatalf("expected ErrPremiumRequired, got %v", err)
	}
	if len(store.rows) != 0 {
		t.Fatalf("gated quick message must not be stored")
	}

	ents.premium = map[int64]bool{101: true}
	result, err := svc.Record(ctx, 101, 202, "quick_message", "  hey there  ")
	if err != nil {
		t.Fatalf("premium quick message: %v", err)
	}
	if result.Interaction.Message == nil || *result.Interaction.Message != "hey there" {
		t.Fatalf("expected trimmed message to be stored, got %+v", result.Interaction.Message)
	}
}

func TestRecordQuickMessageValidatesBody(t *testing.T) {
	ents := &entitlementStub{premium: map[int64]bool{101: true}}
	svc := newTestService(newInteractionStoreStub(), newMatchStoreStub(), ents, &publisherStub{})

	ctx := context.Background()
	if _, err := svc.Record(ctx, 101, 202, "quick_message", "   "); !errors.Is(err, ErrMessageRequired) {
		t.Fatalf("expected ErrMessageRequired for blank body, got %v", err)
	}
	if _, err := svc.Record(ctx, 101, 202, "quick_message", strings.Repeat("a", 256)); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for oversized body, got %v", err)
	}
}

func TestWhoLikedIsPremiumGated(t *testing.T) {
	store := newInteractionStoreStub()
	store.likers = []pgrepo.LikerRecord{
		{ActorUserID: 301, LikedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{ActorUserID: 302, LikedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	ents := &entitlementStub{premium: map[int64]bool{}}
	svc := newTestService(store, newMatchStoreStub(), ents, &publisherStub{})

	ctx := context.Background()
	if _, err := svc.WhoLiked(ctx, 101, 20, 0); !errors.Is(err, ErrPremiumRequired) {
		t.Fatalf("expected ErrPremiumRequired for free user, got %v", err)
	}

	ents.premium = map[int64]bool{101: true}
	likers, err := svc.WhoLiked(ctx, 101, 20, 0)
	if err != nil {
		t.Fatalf("who liked: %v", err)
	}
	if len(likers) != 2 {
		t.Fatalf("expected two likers, got %d", len(likers))
	}
	if likers[0].UserID != 301 || likers[1].UserID != 302 {
		t.Fatalf("unexpected liker order: %+v", likers)
	}
	if store.likersUser != 101 {
		t.Fatalf("expected likers query for user 101, got %d", store.likersUser)
	}
}
