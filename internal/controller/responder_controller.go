package controller

import (
	"crypto/subtle"
	"errors"

	"chatbot-be/internal/dto"
	"chatbot-be/internal/pkg/serverutils"
	"chatbot-be/internal/send"

	"github.com/gofiber/fiber/v2"
)

type IResponderController interface {
	RegisterRoutes(r fiber.Router)
	Callback(ctx *fiber.Ctx) error
}

// responderController receives the external responder's bot-authored replies.
// The reply is persisted and reaches clients through the live message stream,
// exactly like a user message would.
type responderController struct {
	writer        *send.BotWriter
	callbackToken string
}

func NewResponderController(writer *send.BotWriter, callbackToken string) IResponderController {
	return &responderController{
		writer:        writer,
		callbackToken: callbackToken,
	}
}

func (c *responderController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/responder")
	h.Post("/callback", c.Callback)
}

func (c *responderController) Callback(ctx *fiber.Ctx) error {
	token := ctx.Get("X-Responder-Token")
	if c.callbackToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(c.callbackToken)) != 1 {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"code":    401,
			"message": "Invalid callback token",
		})
	}

	var req dto.ResponderCallbackRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	msg, err := c.writer.Write(ctx.Context(), req.ChatId, req.Content)
	if err != nil {
		if errors.Is(err, send.ErrChatNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"code":    404,
				"message": "Chat not found",
			})
		}
		if errors.Is(err, send.ErrEmptyMessage) {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"code":    400,
				"message": "Content is required",
			})
		}
		return err
	}

	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    200,
		"data": dto.MessageToResponse(*msg),
	})
}
