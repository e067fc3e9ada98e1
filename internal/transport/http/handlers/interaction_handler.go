package handlers

import (
	"errors"
	"net/http"

	authsvc "github.com/dmarchetti/faisca/internal/services/auth"
	interactionsvc "github.com/dmarchetti/faisca/internal/services/interactions"
	"github.com/dmarchetti/faisca/internal/transport/http/dto"
	httperrors "github.com/dmarchetti/faisca/internal/transport/http/errors"
)

type InteractionHandler struct {
	service *interactionsvc.Service
}

func NewInteractionHandler(service *interactionsvc.Service) *InteractionHandler {
	return &InteractionHandler{service: service}
}

func (h *InteractionHandler) Record(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "INTERACTIONS_SERVICE_UNAVAILABLE", "interactions service is unavailable")
		return
	}

	var req dto.InteractionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	result, err := h.service.Record(r.Context(), identity.UserID, req.TargetID, req.Type, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, interactionsvc.ErrUnsupportedType):
			writeBadRequest(w, "UNSUPPORTED_TYPE", "unsupported interaction type")
		case errors.Is(err, interactionsvc.ErrMessageRequired):
			writeBadRequest(w, "MESSAGE_REQUIRED", "message is required for quick messages")
		case errors.Is(err, interactionsvc.ErrPremiumRequired):
			writeForbidden(w, "PREMIUM_REQUIRED", "premium subscription required")
		case errors.Is(err, interactionsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid interaction request")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to record interaction")
		}
		return
	}

	resp := dto.InteractionResponse{
		ID:           result.Interaction.ID,
		TargetUserID: result.Interaction.TargetUserID,
		Type:         result.Interaction.Type,
		Message:      result.Interaction.Message,
		Created:      result.Created,
		CreatedAt:    result.Interaction.CreatedAt,
		UpdatedAt:    result.Interaction.UpdatedAt,
	}
	if result.MatchCreated && result.Match != nil {
		resp.Match = &dto.MatchResponse{
			ID:         result.Match.ID,
			UserLowID:  result.Match.UserLowID,
			UserHighID: result.Match.UserHighID,
			CreatedAt:  result.Match.CreatedAt,
		}
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	httperrors.Write(w, status, resp)
}

func (h *InteractionHandler) WhoLiked(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "INTERACTIONS_SERVICE_UNAVAILABLE", "interactions service is unavailable")
		return
	}

	limit := parseIntOrDefault(r.URL.Query().Get("limit"), 20)
	offset := parseIntOrDefault(r.URL.Query().Get("offset"), 0)

	likers, err := h.service.WhoLiked(r.Context(), identity.UserID, limit, offset)
	if err != nil {
		switch {
		case errors.Is(err, interactionsvc.ErrPremiumRequired):
			writeForbidden(w, "PREMIUM_REQUIRED", "premium subscription required")
		case errors.Is(err, interactionsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid likers request")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to load likers")
		}
		return
	}

	items := make([]dto.LikerResponse, 0, len(likers))
	for _, liker := range likers {
		items = append(items, dto.LikerResponse{
			UserID:  liker.UserID,
			LikedAt: liker.LikedAt,
		})
	}

	httperrors.Write(w, http.StatusOK, dto.LikersResponse{Items: items})
}
