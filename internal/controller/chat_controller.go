package controller

import (
	"errors"
	"sync"
	"time"

	"chatbot-be/internal/apperr"
	"chatbot-be/internal/directory"
	"chatbot-be/internal/dto"
	"chatbot-be/internal/notify"
	"chatbot-be/internal/pkg/logger"
	"chatbot-be/internal/pkg/serverutils"
	"chatbot-be/internal/repository/specification"
	"chatbot-be/internal/repository/unitofwork"
	"chatbot-be/internal/responder"
	"chatbot-be/internal/send"
	"chatbot-be/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Idle coordinators are evicted so the per-(user, chat) map cannot grow
// unboundedly; a send never lives anywhere near this long.
const coordinatorTTL = time.Hour

type IChatController interface {
	RegisterRoutes(r fiber.Router, jwtMiddleware fiber.Handler)
	ListChats(ctx *fiber.Ctx) error
	CreateChat(ctx *fiber.Ctx) error
	ListMessages(ctx *fiber.Ctx) error
	SendMessage(ctx *fiber.Ctx) error
}

type chatController struct {
	directory  *directory.Directory
	streamer   *stream.Streamer
	uowFactory unitofwork.RepositoryFactory
	notifier   *notify.Notifier
	responder  responder.Responder
	logger     logger.ILogger

	// One coordinator per (user, chat) input instance; enforces
	// at-most-one-in-flight per instance without serializing across chats.
	coordinators *cache.Cache
	coordMu      sync.Mutex
}

func NewChatController(
	dir *directory.Directory,
	streamer *stream.Streamer,
	uowFactory unitofwork.RepositoryFactory,
	notifier *notify.Notifier,
	resp responder.Responder,
	log logger.ILogger,
) IChatController {
	return &chatController{
		directory:    dir,
		streamer:     streamer,
		uowFactory:   uowFactory,
		notifier:     notifier,
		responder:    resp,
		logger:       log,
		coordinators: cache.New(coordinatorTTL, 10*time.Minute),
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router, jwtMiddleware fiber.Handler) {
	h := r.Group("/chats", jwtMiddleware)
	h.Get("/", c.ListChats)
	h.Post("/", c.CreateChat)
	h.Get("/:id/messages", c.ListMessages)
	h.Post("/:id/messages", c.SendMessage)
}

func (c *chatController) coordinatorFor(userID, chatID uuid.UUID) *send.Coordinator {
	key := userID.String() + "/" + chatID.String()

	// The mutex keeps concurrent requests for the same pair from racing two
	// coordinators into existence; the Set also refreshes the idle TTL.
	c.coordMu.Lock()
	defer c.coordMu.Unlock()

	if existing, ok := c.coordinators.Get(key); ok {
		c.coordinators.SetDefault(key, existing)
		return existing.(*send.Coordinator)
	}
	coord := send.NewCoordinator(c.uowFactory, c.notifier, c.responder, c.logger)
	c.coordinators.SetDefault(key, coord)
	return coord
}

func (c *chatController) ListChats(ctx *fiber.Ctx) error {
	userId, _ := ctx.Locals("user_id").(uuid.UUID)

	chats, err := c.directory.Snapshot(ctx.Context(), userId)
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    200,
		"data":    dto.ChatsToResponse(chats),
	})
}

func (c *chatController) CreateChat(ctx *fiber.Ctx) error {
	userId, _ := ctx.Locals("user_id").(uuid.UUID)

	var req dto.CreateChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	chat, err := c.directory.Create(ctx.Context(), userId, req.Title)
	if err != nil {
		return err
	}
	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    200,
		"message": "Chat created",
		"data":    dto.ChatToResponse(*chat),
	})
}

func (c *chatController) ListMessages(ctx *fiber.Ctx) error {
	userId, _ := ctx.Locals("user_id").(uuid.UUID)
	chatId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	// Ownership check: messages are only readable in the context of a chat
	// the acting identity can see.
	uow := c.uowFactory.NewUnitOfWork(ctx.Context())
	chat, err := uow.ChatRepository().FindOne(ctx.Context(),
		specification.ByID{ID: chatId},
		specification.OwnedBy{UserID: userId},
	)
	if err != nil {
		return err
	}
	if chat == nil {
		return fiber.ErrNotFound
	}

	messages, err := c.streamer.Snapshot(ctx.Context(), chatId)
	if err != nil {
		return err
	}
	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    200,
		"data":    dto.MessagesToResponse(messages),
	})
}

func (c *chatController) SendMessage(ctx *fiber.Ctx) error {
	userId, _ := ctx.Locals("user_id").(uuid.UUID)
	chatId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	coord := c.coordinatorFor(userId, chatId)
	msg, result, err := coord.Send(ctx.Context(), userId, chatId, req.Content)

	if err != nil {
		if errors.Is(err, send.ErrSendInFlight) {
			return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success": false,
				"code":    409,
				"message": "A send is already in flight for this chat",
			})
		}

		var sendErr *apperr.SendError
		if errors.As(err, &sendErr) && sendErr.Phase == apperr.PhaseTrigger {
			// The user message was saved; only the responder trigger failed.
			return ctx.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"success": false,
				"code":    502,
				"message": "Message saved, but the responder could not be notified",
				"data": dto.SendMessageResponse{
					Sent: dto.MessageToResponse(*msg),
				},
			})
		}
		return err
	}

	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    200,
		"message": "Message sent",
		"data": dto.SendMessageResponse{
			Sent:    dto.MessageToResponse(*msg),
			Trigger: dto.TriggerResult{Success: result.Success, Message: result.Message},
		},
	})
}
