package conversations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	pgrepo "github.com/dmarchetti/faisca/internal/repo/postgres"
)

type participantKey struct {
	conversationID int64
	userID         int64
}

type conversationStoreStub struct {
	conversations map[int64]pgrepo.ConversationRecord
	participants  map[participantKey]pgrepo.ParticipantRecord
	nextID        int64
	summaries     []pgrepo.ConversationSummaryRecord
}

func newConversationStoreStub() *conversationStoreStub {
	return &conversationStoreStub{
		conversations: map[int64]pgrepo.ConversationRecord{},
		participants:  map[participantKey]pgrepo.ParticipantRecord{},
	}
}

func (s *conversationStoreStub) FindBetween(_ context.Context, _ pgx.Tx, userA, userB int64) (pgrepo.ConversationRecord, error) {
	for id, rec := range s.conversations {
		_, hasA := s.participants[participantKey{conversationID: id, userID: userA}]
		_, hasB := s.participants[participantKey{conversationID: id, userID: userB}]
		if hasA && hasB {
			return rec, nil
		}
	}
	return pgrepo.ConversationRecord{}, pgrepo.ErrConversationNotFound
}

func (s *conversationStoreStub) Create(_ context.Context, _ pgx.Tx, participantIDs []int64, now time.Time) (pgrepo.ConversationRecord, error) {
	s.nextID++
	rec := pgrepo.ConversationRecord{
		ID:        s.nextID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[rec.ID] = rec
	for _, userID := range participantIDs {
		s.participants[participantKey{conversationID: rec.ID, userID: userID}] = pgrepo.ParticipantRecord{
			ConversationID: rec.ID,
			UserID:         userID,
			JoinedAt:       now,
		}
	}
	return rec, nil
}

func (s *conversationStoreStub) GetByID(_ context.Context, conversationID int64) (pgrepo.ConversationRecord, error) {
	rec, ok := s.conversations[conversationID]
	if !ok {
		return pgrepo.ConversationRecord{}, pgrepo.ErrConversationNotFound
	}
	return rec, nil
}

func (s *conversationStoreStub) GetParticipant(_ context.Context, conversationID, userID int64) (pgrepo.ParticipantRecord, error) {
	rec, ok := s.participants[participantKey{conversationID: conversationID, userID: userID}]
	if !ok {
		return pgrepo.ParticipantRecord{}, pgrepo.ErrParticipantNotFound
	}
	return rec, nil
}

func (s *conversationStoreStub) MarkRead(_ context.Context, conversationID, userID int64, now time.Time) error {
	key := participantKey{conversationID: conversationID, userID: userID}
	rec, ok := s.participants[key]
	if !ok {
		return pgrepo.ErrParticipantNotFound
	}
	rec.UnreadCount = 0
	rec.LastReadAt = &now
	s.participants[key] = rec
	return nil
}

func (s *conversationStoreStub) SetParticipantFlags(_ context.Context, conversationID, userID int64, muted, archived *bool) error {
	key := participantKey{conversationID: conversationID, userID: userID}
	rec, ok := s.participants[key]
	if !ok {
		return pgrepo.ErrParticipantNotFound
	}
	if muted != nil {
		rec.IsMuted = *muted
	}
	if archived != nil {
		rec.IsArchived = *archived
	}
	s.participants[key] = rec
	return nil
}

func (s *conversationStoreStub) ListForUser(_ context.Context, _ int64, _, _ int) ([]pgrepo.ConversationSummaryRecord, error) {
	return s.summaries, nil
}

type messageStoreStub struct {
	messages []pgrepo.MessageRecord
}

func (s *messageStoreStub) ListByConversation(_ context.Context, conversationID int64, _, _ int) ([]pgrepo.MessageRecord, error) {
	items := make([]pgrepo.MessageRecord, 0, len(s.messages))
	for _, rec := range s.messages {
		if rec.ConversationID == conversationID {
			items = append(items, rec)
		}
	}
	return items, nil
}

type presignerStub struct {
	calls []string
	err   error
}

func (s *presignerStub) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	s.calls = append(s.calls, key)
	if s.err != nil {
		return "", s.err
	}
	return "https://cdn.test/" + key, nil
}

func newTestService(store *conversationStoreStub, messages *messageStoreStub, presigner *presignerStub) *Service {
	svc := NewService(Dependencies{
		Conversations: store,
		Messages:      messages,
		AudioURLs:     presigner,
	}, Config{})
	svc.runTx = func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
		return fn(ctx, nil)
	}
	return svc
}

func TestGetOrStartCreatesOnceThenReuses(t *testing.T) {
	store := newConversationStoreStub()
	svc := newTestService(store, &messageStoreStub{}, &presignerStub{})

	ctx := context.Background()
	first, created, err := svc.GetOrStart(ctx, 101, 202)
	if err != nil {
		t.Fatalf("first get-or-start: %v", err)
	}
	if !created {
		t.Fatalf("expected first call to create the conversation")
	}
	if _, ok := store.participants[participantKey{conversationID: first.ID, userID: 101}]; !ok {
		t.Fatalf("expected participant row for user 101")
	}
	if _, ok := store.participants[participantKey{conversationID: first.ID, userID: 202}]; !ok {
		t.Fatalf("expected participant row for user 202")
	}

	second, created, err := svc.GetOrStart(ctx, 202, 101)
	if err != nil {
		t.Fatalf("second get-or-start: %v", err)
	}
	if created {
		t.Fatalf("expected second call to reuse the conversation")
	}
	if second.ID != first.ID {
		t.Fatalf("expected same conversation id, got %d then %d", first.ID, second.ID)
	}
	if len(store.conversations) != 1 {
		t.Fatalf("expected one conversation, got %d", len(store.conversations))
	}
}

func TestGetOrStartRejectsSelfConversation(t *testing.T) {
	svc := newTestService(newConversationStoreStub(), &messageStoreStub{}, &presignerStub{})

	if _, _, err := svc.GetOrStart(context.Background(), 101, 101); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestMarkReadResetsUnreadAndStampsLastRead(t *testing.T) {
	store := newConversationStoreStub()
	svc := newTestService(store, &messageStoreStub{}, &presignerStub{})
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	ctx := context.Background()
	conv, _, err := svc.GetOrStart(ctx, 101, 202)
	if err != nil {
		t.Fatalf("get-or-start: %v", err)
	}

	key := participantKey{conversationID: conv.ID, userID: 101}
	rec := store.participants[key]
	rec.UnreadCount = 4
	store.participants[key] = rec

	if err := svc.MarkRead(ctx, conv.ID, 101); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	rec = store.participants[key]
	if rec.UnreadCount != 0 {
		t.Fatalf("expected unread to reset, got %d", rec.UnreadCount)
	}
	if rec.LastReadAt == nil || !rec.LastReadAt.Equal(now) {
		t.Fatalf("expected last_read_at %v, got %+v", now, rec.LastReadAt)
	}

	if err := svc.MarkRead(ctx, conv.ID, 999); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-participant, got %v", err)
	}
	if err := svc.MarkRead(ctx, 777, 101); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown conversation, got %v", err)
	}
}

func TestListMessagesChecksMembershipAndPresignsAudio(t *testing.T) {
	store := newConversationStoreStub()
	duration := 12
	messages := &messageStoreStub{}
	presigner := &presignerStub{}
	svc := newTestService(store, messages, presigner)

	ctx := context.Background()
	conv, _, err := svc.GetOrStart(ctx, 101, 202)
	if err != nil {
		t.Fatalf("get-or-start: %v", err)
	}
	messages.messages = []pgrepo.MessageRecord{
		{ID: 2, ConversationID: conv.ID, SenderID: 202, Type: "audio", Content: "conversation_audio/1/abc.ogg", AudioDuration: &duration},
		{ID: 1, ConversationID: conv.ID, SenderID: 101, Type: "text", Content: "oi"},
	}

	if _, err := svc.ListMessages(ctx, conv.ID, 999, 30, 0); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-participant, got %v", err)
	}

	items, err := svc.ListMessages(ctx, conv.ID, 101, 30, 0)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected two messages, got %d", len(items))
	}
	if items[0].AudioURL == "" {
		t.Fatalf("expected presigned url on audio message")
	}
	if items[1].AudioURL != "" {
		t.Fatalf("text message must not carry an audio url")
	}
	if len(presigner.calls) != 1 || presigner.calls[0] != "conversation_audio/1/abc.ogg" {
		t.Fatalf("unexpected presign calls: %v", presigner.calls)
	}
}

func TestListBlanksAudioKeyInPreview(t *testing.T) {
	store := newConversationStoreStub()
	store.summaries = []pgrepo.ConversationSummaryRecord{
		{
			ID:          1,
			OtherUserID: 202,
			UnreadCount: 3,
			LastMessage: &pgrepo.MessageRecord{
				ID: 9, ConversationID: 1, SenderID: 202,
				Type: "audio", Content: "conversation_audio/1/xyz.ogg",
			},
		},
	}
	svc := newTestService(store, &messageStoreStub{}, &presignerStub{})

	items, err := svc.List(context.Background(), 101, 20, 0)
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one summary, got %d", len(items))
	}
	if items[0].LastMessage == nil {
		t.Fatalf("expected last message preview")
	}
	if items[0].LastMessage.Content != "" {
		t.Fatalf("audio preview must not expose the blob key, got %q", items[0].LastMessage.Content)
	}
	if items[0].LastMessage.AudioURL == "" {
		t.Fatalf("expected presigned url on audio preview")
	}
	if items[0].UnreadCount != 3 {
		t.Fatalf("unexpected unread count: %d", items[0].UnreadCount)
	}
}

func TestSetSettingsTogglesOnlyProvidedFlags(t *testing.T) {
	store := newConversationStoreStub()
	svc := newTestService(store, &messageStoreStub{}, &presignerStub{})

	ctx := context.Background()
	conv, _, err := svc.GetOrStart(ctx, 101, 202)
	if err != nil {
		t.Fatalf("get-or-start: %v", err)
	}

	muted := true
	if err := svc.SetSettings(ctx, conv.ID, 101, &muted, nil); err != nil {
		t.Fatalf("set settings: %v", err)
	}

	rec := store.participants[participantKey{conversationID: conv.ID, userID: 101}]
	if !rec.IsMuted {
		t.Fatalf("expected conversation to be muted")
	}
	if rec.IsArchived {
		t.Fatalf("archive flag must stay untouched")
	}

	if err := svc.SetSettings(ctx, conv.ID, 999, &muted, nil); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-participant, got %v", err)
	}
}
