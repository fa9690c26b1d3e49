package bootstrap

import (
	"context"
	"log"

	"chatbot-be/internal/config"
	"chatbot-be/internal/controller"
	"chatbot-be/internal/directory"
	"chatbot-be/internal/identity"
	"chatbot-be/internal/notify"
	"chatbot-be/internal/pkg/logger"
	"chatbot-be/internal/repository/unitofwork"
	"chatbot-be/internal/responder"
	"chatbot-be/internal/send"
	"chatbot-be/internal/stream"
	"chatbot-be/internal/websocket"

	pktNats "chatbot-be/pkg/nats"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	AuthController      controller.IAuthController
	ChatController      controller.IChatController
	ResponderController controller.IResponderController

	// Shared infrastructure
	IdentityProvider identity.Provider
	Notifier         *notify.Notifier
	WebSocketHub     *websocket.Hub
	WebSocketHandler *websocket.Handler
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Infrastructure
	// NATS (optional; audit events are skipped when unavailable)
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis (optional; change fan-out stays single-instance without it)
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{
				Addr: cfg.App.RedisURL,
			}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
	}

	notifier := notify.NewNotifier(rdb, sysLogger)

	// 3. Domain components
	provider := identity.NewJWTProvider(uowFactory, cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	dir := directory.New(uowFactory, notifier, sysLogger)
	streamer := stream.NewStreamer(uowFactory, notifier, sysLogger)
	httpResponder := responder.NewHTTPResponder(cfg.Responder.BaseURL, cfg.Responder.Timeout)
	botWriter := send.NewBotWriter(uowFactory, notifier, sysLogger)

	// 4. WebSocket delivery
	wsLogger := logger.NewIsolatedLogger("logs/websocket.log")
	wsHub := websocket.NewHub(wsLogger)
	go wsHub.Run()
	wsHandler := websocket.NewHandler(wsHub, provider, dir, streamer, natsPub, wsLogger)

	return &Container{
		AuthController:      controller.NewAuthController(provider, wsHub),
		ChatController:      controller.NewChatController(dir, streamer, uowFactory, notifier, httpResponder, sysLogger),
		ResponderController: controller.NewResponderController(botWriter, cfg.Responder.CallbackToken),

		IdentityProvider: provider,
		Notifier:         notifier,
		WebSocketHub:     wsHub,
		WebSocketHandler: wsHandler,
	}
}
