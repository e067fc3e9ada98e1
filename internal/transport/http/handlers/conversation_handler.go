package handlers

import (
	"errors"
	"net/http"

	authsvc "github.com/dmarchetti/faisca/internal/services/auth"
	convsvc "github.com/dmarchetti/faisca/internal/services/conversations"
	"github.com/dmarchetti/faisca/internal/transport/http/dto"
	httperrors "github.com/dmarchetti/faisca/internal/transport/http/errors"
)

type ConversationHandler struct {
	service *convsvc.Service
}

func NewConversationHandler(service *convsvc.Service) *ConversationHandler {
	return &ConversationHandler{service: service}
}

func (h *ConversationHandler) Start(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "CONVERSATIONS_SERVICE_UNAVAILABLE", "conversations service is unavailable")
		return
	}

	var req dto.StartConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	conversation, created, err := h.service.GetOrStart(r.Context(), identity.UserID, req.TargetID)
	if err != nil {
		switch {
		case errors.Is(err, convsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid conversation request")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to start conversation")
		}
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httperrors.Write(w, status, dto.ConversationResponse{
		ID:            conversation.ID,
		LastMessageID: conversation.LastMessageID,
		Created:       created,
		CreatedAt:     conversation.CreatedAt,
		UpdatedAt:     conversation.UpdatedAt,
	})
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "CONVERSATIONS_SERVICE_UNAVAILABLE", "conversations service is unavailable")
		return
	}

	limit := parseIntOrDefault(r.URL.Query().Get("limit"), 20)
	offset := parseIntOrDefault(r.URL.Query().Get("offset"), 0)

	items, err := h.service.List(r.Context(), identity.UserID, limit, offset)
	if err != nil {
		switch {
		case errors.Is(err, convsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid conversations request")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to load conversations")
		}
		return
	}

	responseItems := make([]dto.ConversationSummaryResponse, 0, len(items))
	for _, item := range items {
		summary := dto.ConversationSummaryResponse{
			ID:          item.ID,
			OtherUserID: item.OtherUserID,
			UnreadCount: item.UnreadCount,
			LastReadAt:  item.LastReadAt,
			IsMuted:     item.IsMuted,
			IsArchived:  item.IsArchived,
			CreatedAt:   item.CreatedAt,
			UpdatedAt:   item.UpdatedAt,
		}
		if item.LastMessage != nil {
			summary.LastMessage = &dto.MessageResponse{
				ID:             item.LastMessage.ID,
				ConversationID: item.LastMessage.ConversationID,
				SenderID:       item.LastMessage.SenderID,
				Type:           item.LastMessage.Type,
				Content:        item.LastMessage.Content,
				AudioDuration:  item.LastMessage.AudioDuration,
				AudioURL:       item.LastMessage.AudioURL,
				CreatedAt:      item.LastMessage.CreatedAt,
			}
		}
		responseItems = append(responseItems, summary)
	}

	httperrors.Write(w, http.StatusOK, dto.ConversationsResponse{Items: responseItems})
}

func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "CONVERSATIONS_SERVICE_UNAVAILABLE", "conversations service is unavailable")
		return
	}

	conversationID, ok := urlParamInt64(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid conversation id")
		return
	}

	limit := parseIntOrDefault(r.URL.Query().Get("limit"), 30)
	offset := parseIntOrDefault(r.URL.Query().Get("offset"), 0)

	messages, err := h.service.ListMessages(r.Context(), conversationID, identity.UserID, limit, offset)
	if err != nil {
		writeConversationError(w, err, "failed to load messages")
		return
	}

	items := make([]dto.MessageResponse, 0, len(messages))
	for _, msg := range messages {
		items = append(items, dto.MessageResponse{
			ID:             msg.ID,
			ConversationID: msg.ConversationID,
			SenderID:       msg.SenderID,
			Type:           msg.Type,
			Content:        msg.Content,
			AudioDuration:  msg.AudioDuration,
			AudioURL:       msg.AudioURL,
			CreatedAt:      msg.CreatedAt,
		})
	}

	httperrors.Write(w, http.StatusOK, dto.MessagesResponse{Items: items})
}

func (h *ConversationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "CONVERSATIONS_SERVICE_UNAVAILABLE", "conversations service is unavailable")
		return
	}

	conversationID, ok := urlParamInt64(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid conversation id")
		return
	}

	if err := h.service.MarkRead(r.Context(), conversationID, identity.UserID); err != nil {
		writeConversationError(w, err, "failed to mark conversation read")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}

func (h *ConversationHandler) Settings(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "CONVERSATIONS_SERVICE_UNAVAILABLE", "conversations service is unavailable")
		return
	}

	conversationID, ok := urlParamInt64(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid conversation id")
		return
	}

	var req dto.ConversationSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	if err := h.service.SetSettings(r.Context(), conversationID, identity.UserID, req.IsMuted, req.IsArchived); err != nil {
		writeConversationError(w, err, "failed to update conversation settings")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}

func writeConversationError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, convsvc.ErrNotFound):
		writeNotFound(w, "CONVERSATION_NOT_FOUND", "conversation not found")
	case errors.Is(err, convsvc.ErrForbidden):
		writeForbidden(w, "FORBIDDEN", "not a participant of this conversation")
	case errors.Is(err, convsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid conversation request")
	default:
		writeInternal(w, "INTERNAL_ERROR", fallback)
	}
}
