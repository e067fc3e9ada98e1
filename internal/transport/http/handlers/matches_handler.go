package handlers

import (
	"errors"
	"net/http"

	authsvc "github.com/dmarchetti/faisca/internal/services/auth"
	matchessvc "github.com/dmarchetti/faisca/internal/services/matches"
	"github.com/dmarchetti/faisca/internal/transport/http/dto"
	httperrors "github.com/dmarchetti/faisca/internal/transport/http/errors"
)

type MatchesHandler struct {
	service *matchessvc.Service
}

func NewMatchesHandler(service *matchessvc.Service) *MatchesHandler {
	return &MatchesHandler{service: service}
}

func (h *MatchesHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "MATCHES_SERVICE_UNAVAILABLE", "matches service is unavailable")
		return
	}

	limit := parseIntOrDefault(r.URL.Query().Get("limit"), 50)
	offset := parseIntOrDefault(r.URL.Query().Get("offset"), 0)

	items, err := h.service.List(r.Context(), identity.UserID, limit, offset)
	if err != nil {
		switch {
		case errors.Is(err, matchessvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid matches request")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to load matches")
		}
		return
	}

	responseItems := make([]dto.MatchItemResponse, 0, len(items))
	for _, item := range items {
		responseItems = append(responseItems, dto.MatchItemResponse{
			ID:          item.ID,
			OtherUserID: item.OtherUserID,
			CreatedAt:   item.CreatedAt,
		})
	}

	httperrors.Write(w, http.StatusOK, dto.MatchesResponse{Items: responseItems})
}

func (h *MatchesHandler) Remove(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "MATCHES_SERVICE_UNAVAILABLE", "matches service is unavailable")
		return
	}

	matchID, ok := urlParamInt64(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid match id")
		return
	}

	if err := h.service.Remove(r.Context(), matchID, identity.UserID); err != nil {
		switch {
		case errors.Is(err, matchessvc.ErrNotFound):
			writeNotFound(w, "MATCH_NOT_FOUND", "match not found")
		case errors.Is(err, matchessvc.ErrForbidden):
			writeForbidden(w, "FORBIDDEN", "not a participant of this match")
		case errors.Is(err, matchessvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid unmatch request")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to unmatch")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}
