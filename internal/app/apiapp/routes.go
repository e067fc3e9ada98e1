package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dmarchetti/faisca/internal/config"
	authsvc "github.com/dmarchetti/faisca/internal/services/auth"
	convsvc "github.com/dmarchetti/faisca/internal/services/conversations"
	interactionsvc "github.com/dmarchetti/faisca/internal/services/interactions"
	matchessvc "github.com/dmarchetti/faisca/internal/services/matches"
	mediasvc "github.com/dmarchetti/faisca/internal/services/media"
	messagingsvc "github.com/dmarchetti/faisca/internal/services/messaging"
	"github.com/dmarchetti/faisca/internal/transport/http/handlers"
)

type Dependencies struct {
	InteractionService  *interactionsvc.Service
	MatchService        *matchessvc.Service
	ConversationService *convsvc.Service
	MessagingService    *messagingsvc.Service
	AudioStorage        *mediasvc.AudioStorage
	JWTManager          *authsvc.JWTManager
	Logger              *zap.Logger
	Config              config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	interactionHandler := handlers.NewInteractionHandler(deps.InteractionService)
	matchesHandler := handlers.NewMatchesHandler(deps.MatchService)
	conversationHandler := handlers.NewConversationHandler(deps.ConversationService)
	messageHandler := handlers.NewMessageHandler(deps.MessagingService, deps.AudioStorage, deps.Config.Chat.MaxAudioUploadBytes)
	authMW := AuthMiddleware(deps.JWTManager, deps.Logger)

	r.Get("/healthz", healthHandler.Get)

	r.Route("/v1", func(r chi.Router) {
		r.With(authMW).Post("/interactions", interactionHandler.Record)
		r.With(authMW).Get("/likes/received", interactionHandler.WhoLiked)

		r.With(authMW).Get("/matches", matchesHandler.List)
		r.With(authMW).Delete("/matches/{id}", matchesHandler.Remove)

		r.Route("/conversations", func(r chi.Router) {
			r.Use(authMW)
			r.Post("/", conversationHandler.Start)
			r.Get("/", conversationHandler.List)
			r.Get("/{id}/messages", conversationHandler.Messages)
			r.Post("/{id}/messages", messageHandler.Send)
			r.Post("/{id}/read", conversationHandler.MarkRead)
			r.Patch("/{id}/settings", conversationHandler.Settings)
		})
	})
}
