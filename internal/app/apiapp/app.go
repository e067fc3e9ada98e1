package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dmarchetti/faisca/internal/config"
	s3infra "github.com/dmarchetti/faisca/internal/infra/s3"
	"github.com/dmarchetti/faisca/internal/jobs/cleanup"
	pgrepo "github.com/dmarchetti/faisca/internal/repo/postgres"
	redrepo "github.com/dmarchetti/faisca/internal/repo/redis"
	authsvc "github.com/dmarchetti/faisca/internal/services/auth"
	convsvc "github.com/dmarchetti/faisca/internal/services/conversations"
	entsvc "github.com/dmarchetti/faisca/internal/services/entitlements"
	interactionsvc "github.com/dmarchetti/faisca/internal/services/interactions"
	matchessvc "github.com/dmarchetti/faisca/internal/services/matches"
	mediasvc "github.com/dmarchetti/faisca/internal/services/media"
	messagingsvc "github.com/dmarchetti/faisca/internal/services/messaging"
	ratesvc "github.com/dmarchetti/faisca/internal/services/rate"
)

type App struct {
	cfg         config.Config
	logger      *zap.Logger
	server      *http.Server
	postgres    *pgxpool.Pool
	redis       *goredis.Client
	s3          *minio.Client
	httpRouter  http.Handler
	cleanupJob  *cleanup.Job
	cleanupStop chan struct{}
}

const cleanupInterval = 6 * time.Hour

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	rateRepo := redrepo.NewRateRepo(redisClient)
	eventsRepo := redrepo.NewEventsRepo(redisClient)

	interactionRepo := pgrepo.NewInteractionRepo(pool)
	matchRepo := pgrepo.NewMatchRepo(pool)
	conversationRepo := pgrepo.NewConversationRepo(pool)
	messageRepo := pgrepo.NewMessageRepo(pool)
	entitlementRepo := pgrepo.NewEntitlementRepo(pool)

	var s3Client *minio.Client
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
	} else {
		s3Client = c
	}
	audioStorage := mediasvc.NewAudioStorage(s3Client, cfg.S3.Bucket)

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	entitlementService := entsvc.NewService(entitlementRepo, entsvc.Config{
		DefaultIsPremium: cfg.Premium.DefaultIsPremium,
	})
	rateLimiter := ratesvc.NewLimiter(rateRepo, cfg.Chat.MessagesPerMinute, cfg.Chat.MessagesPer10Sec)

	interactionService := interactionsvc.NewService(interactionsvc.Dependencies{
		Pool:         pool,
		Interactions: interactionRepo,
		MatchStore:   matchRepo,
		Entitlements: entitlementService,
		Events:       eventsRepo,
		Logger:       log,
	})
	matchService := matchessvc.NewService(matchessvc.Dependencies{
		Pool:       pool,
		MatchStore: matchRepo,
	})
	conversationService := convsvc.NewService(convsvc.Dependencies{
		Pool:          pool,
		Conversations: conversationRepo,
		Messages:      messageRepo,
		AudioURLs:     audioStorage,
		Logger:        log,
	}, convsvc.Config{
		AudioURLTTL: cfg.Chat.AudioURLTTL,
	})
	messagingService := messagingsvc.NewService(messagingsvc.Dependencies{
		Pool:          pool,
		Conversations: conversationRepo,
		Messages:      messageRepo,
		Limiter:       rateLimiter,
		Blobs:         audioStorage,
		Events:        eventsRepo,
		Logger:        log,
	}, messagingsvc.Config{
		MaxTextLen:  cfg.Chat.MaxTextLen,
		AudioURLTTL: cfg.Chat.AudioURLTTL,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	RegisterRoutes(r, Dependencies{
		InteractionService:  interactionService,
		MatchService:        matchService,
		ConversationService: conversationService,
		MessagingService:    messagingService,
		AudioStorage:        audioStorage,
		JWTManager:          jwtManager,
		Logger:              log,
		Config:              cfg,
	})

	return &App{
		cfg:         cfg,
		logger:      log,
		server:      server,
		postgres:    pool,
		redis:       redisClient,
		s3:          s3Client,
		httpRouter:  r,
		cleanupJob:  cleanup.NewOrphanedAudioJob(audioStorage, messageRepo, 24*time.Hour, log),
		cleanupStop: make(chan struct{}),
	}, nil
}

func (a *App) Run() error {
	go a.runCleanupLoop()

	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) runCleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.cleanupStop:
			return
		case <-ticker.C:
			if err := a.cleanupJob.Run(context.Background()); err != nil {
				a.logger.Warn("orphaned audio cleanup failed", zap.Error(err))
			}
		}
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	close(a.cleanupStop)

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
