package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dmarchetti/faisca/internal/domain/model"
	authsvc "github.com/dmarchetti/faisca/internal/services/auth"
	mediasvc "github.com/dmarchetti/faisca/internal/services/media"
	messagingsvc "github.com/dmarchetti/faisca/internal/services/messaging"
	"github.com/dmarchetti/faisca/internal/transport/http/dto"
	httperrors "github.com/dmarchetti/faisca/internal/transport/http/errors"
)

const defaultMaxAudioUploadSize = 10 << 20 // 10 MiB

type MessageHandler struct {
	service      *messagingsvc.Service
	audioStorage *mediasvc.AudioStorage
	maxAudioSize int64
}

func NewMessageHandler(service *messagingsvc.Service, audioStorage *mediasvc.AudioStorage, maxAudioSize int64) *MessageHandler {
	if maxAudioSize <= 0 {
		maxAudioSize = defaultMaxAudioUploadSize
	}
	return &MessageHandler{
		service:      service,
		audioStorage: audioStorage,
		maxAudioSize: maxAudioSize,
	}
}

// Send accepts either a JSON body for text messages or a multipart form with
// an "audio" file part for voice messages.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "MESSAGING_SERVICE_UNAVAILABLE", "messaging service is unavailable")
		return
	}

	conversationID, ok := urlParamInt64(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid conversation id")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		h.sendAudio(w, r, conversationID, identity.UserID)
		return
	}

	var req dto.SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	msg, err := h.service.Send(r.Context(), messagingsvc.SendInput{
		ConversationID: conversationID,
		SenderID:       identity.UserID,
		Type:           req.Type,
		Content:        req.Content,
	})
	if err != nil {
		writeMessagingError(w, err)
		return
	}

	httperrors.Write(w, http.StatusCreated, mapMessage(msg))
}

func (h *MessageHandler) sendAudio(w http.ResponseWriter, r *http.Request, conversationID, senderID int64) {
	if h.audioStorage == nil {
		writeInternal(w, "AUDIO_STORAGE_UNAVAILABLE", "audio storage is unavailable")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxAudioSize)
	if err := r.ParseMultipartForm(h.maxAudioSize); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "audio file is required")
		return
	}
	defer file.Close()

	if header == nil || header.Size <= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "audio file is empty")
		return
	}

	var duration *int
	if raw := r.FormValue("duration"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid audio duration")
			return
		}
		duration = &value
	}

	blobContentType := header.Header.Get("Content-Type")
	if blobContentType == "" {
		blobContentType = "application/octet-stream"
	}

	key := mediasvc.NewAudioKey(conversationID, filepath.Ext(header.Filename))
	if err := h.audioStorage.PutAudio(r.Context(), key, file, header.Size, blobContentType); err != nil {
		writeInternal(w, "AUDIO_UPLOAD_FAILED", "failed to store audio")
		return
	}

	msg, err := h.service.Send(r.Context(), messagingsvc.SendInput{
		ConversationID: conversationID,
		SenderID:       senderID,
		Type:           "audio",
		Content:        key,
		AudioDuration:  duration,
	})
	if err != nil {
		writeMessagingError(w, err)
		return
	}

	httperrors.Write(w, http.StatusCreated, mapMessage(msg))
}

func writeMessagingError(w http.ResponseWriter, err error) {
	var tooFast *messagingsvc.TooFastError
	switch {
	case errors.As(err, &tooFast):
		httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
			Code:          "TOO_FAST",
			Message:       "message rate limit exceeded",
			RetryAfterSec: tooFast.RetryAfterSec,
		})
	case errors.Is(err, messagingsvc.ErrNotFound):
		writeNotFound(w, "CONVERSATION_NOT_FOUND", "conversation not found")
	case errors.Is(err, messagingsvc.ErrForbidden):
		writeForbidden(w, "FORBIDDEN", "not a participant of this conversation")
	case errors.Is(err, messagingsvc.ErrUnsupportedType):
		writeBadRequest(w, "UNSUPPORTED_TYPE", "unsupported message type")
	case errors.Is(err, messagingsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid message request")
	default:
		writeInternal(w, "INTERNAL_ERROR", "failed to send message")
	}
}

func mapMessage(msg model.Message) dto.MessageResponse {
	return dto.MessageResponse{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Type:           msg.Type,
		Content:        msg.Content,
		AudioDuration:  msg.AudioDuration,
		AudioURL:       msg.AudioURL,
		CreatedAt:      msg.CreatedAt,
	}
}
