// Package app assembles stores, the real-time core and the HTTP surface
// from a Config. The binary and the end-to-end tests share it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"my-chat-backend/auth"
	"my-chat-backend/blocking"
	"my-chat-backend/infrastructure/httpapi"
	"my-chat-backend/infrastructure/ws"
	"my-chat-backend/internal"
	"my-chat-backend/media"
	"my-chat-backend/moderation"
	"my-chat-backend/observability"
	"my-chat-backend/repositories"
	"my-chat-backend/runtime"
	"my-chat-backend/services"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
)

type App struct {
	log          *slog.Logger
	Users        *repositories.UserRepository
	Groups       *repositories.GroupRepository
	Messages     *repositories.MessageRepository
	Orchestrator *runtime.Orchestrator
	Chat         *services.ChatService
	Tokens       *auth.Tokens
	Handler      http.Handler
}

// New wires the application on top of already opened stores.
// The caller keeps ownership of db and writer.
func New(log *slog.Logger, cfg internal.Config, db *badger.DB, writer *bluge.Writer) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	charReplacement, _ := internal.CharacterRune(cfg.CharReplacement)
	echoKinds, _ := cfg.EchoKindList()

	metrics, err := observability.NewMetrics(nil)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	users := repositories.NewUserRepository(db, log.With("repository", "user"),
		repositories.NewUserIndex(writer, log.With("component", "user_index")))
	groups := repositories.NewGroupRepository(db, log.With("repository", "group"))
	messages := repositories.NewMessageRepository(db, log.With("repository", "message"), cfg.LimitMessages)

	orchestrator := runtime.NewOrchestrator(log, users, groups, metrics, runtime.Options{
		Shards:          cfg.RegistryShards,
		StoreTimeout:    cfg.StoreTimeout,
		DeliveryTimeout: cfg.DeliveryTimeout,
		StatsInterval:   cfg.StatsInterval,
		RestartInterval: cfg.RestartInterval,
		QueueThreshold:  cfg.QueueThreshold,
		EchoKinds:       echoKinds,
	})
	if err := observability.RegisterGauges(nil, orchestrator.Registry); err != nil {
		return nil, fmt.Errorf("gauges: %w", err)
	}

	moderator, err := moderation.NewModerator(moderation.ParseWords(cfg.CensoredWords), charReplacement,
		log.With("component", "moderator"))
	if err != nil {
		return nil, fmt.Errorf("moderator: %w", err)
	}
	uploader, err := media.NewDiskUploader(log.With("component", "uploader"), cfg.MediaDir, cfg.MediaBaseURL, cfg.MaxMediaBytes)
	if err != nil {
		return nil, fmt.Errorf("uploader: %w", err)
	}
	guard := blocking.NewGuard(log.With("component", "block_guard"), users, cfg.StoreTimeout)

	chat := services.NewChatService(log.With("service", "chat"), users, groups, messages, uploader, guard,
		orchestrator.Router, moderator, cfg.UploadTimeout, services.BlockedSendPolicy(cfg.BlockedSendPolicy))
	groupService := services.NewGroupService(log.With("service", "group"), users, groups, guard,
		orchestrator.Channels, orchestrator.Router, cfg.MaxGroupSize)
	blockService := services.NewBlockService(log.With("service", "block"), users)
	userService := services.NewUserService(users, orchestrator.Tracker, cfg.SearchLimit)

	socket := ws.NewHandler(log.With("component", "ws"), orchestrator.Tracker, chat, ws.Options{
		BufferSize:     cfg.ConnectionBufferSize,
		WriteTimeout:   cfg.WsWriteTimeout,
		PingInterval:   cfg.WsPingInterval,
		AllowedOrigins: cfg.Origins(),
	})
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenDuration)
	api := httpapi.NewAPI(log.With("component", "http"), chat, groupService, blockService, userService, cfg.MaxMediaBytes)

	return &App{
		log:          log,
		Users:        users,
		Groups:       groups,
		Messages:     messages,
		Orchestrator: orchestrator,
		Chat:         chat,
		Tokens:       tokens,
		Handler:      api.Routes(tokens, socket, uploader.Dir()),
	}, nil
}

func (a *App) Start(ctx context.Context) {
	a.Orchestrator.Start(ctx)
}

func (a *App) Close() {
	a.Orchestrator.Stop()
}
