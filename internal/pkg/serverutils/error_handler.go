package serverutils

import (
	"errors"

	"chatbot-be/internal/apperr"
	"chatbot-be/internal/send"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware maps typed domain errors to the standard response
// envelope so handlers can just return them.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var authErr *apperr.AuthError
		if errors.As(err, &authErr) {
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"code":    fiber.StatusUnauthorized,
				"message": authErr.Reason,
			})
		}

		var createErr *apperr.CreateChatError
		if errors.As(err, &createErr) {
			return ctx.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"success": false,
				"code":    fiber.StatusBadGateway,
				"message": "Failed to create chat",
			})
		}

		var sendErr *apperr.SendError
		if errors.As(err, &sendErr) {
			// Persist failures mean nothing was stored; trigger failures mean
			// the message IS stored but the bot may not respond. The client
			// needs to tell these apart.
			status := fiber.StatusBadGateway
			switch {
			case errors.Is(sendErr.Err, send.ErrEmptyMessage):
				status = fiber.StatusBadRequest
			case errors.Is(sendErr.Err, send.ErrChatNotFound):
				status = fiber.StatusNotFound
			}
			return ctx.Status(status).JSON(fiber.Map{
				"success": false,
				"code":    status,
				"message": sendErr.Error(),
				"data":    fiber.Map{"phase": string(sendErr.Phase)},
			})
		}

		var subErr *apperr.SubscriptionError
		if errors.As(err, &subErr) {
			return ctx.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"success": false,
				"code":    fiber.StatusServiceUnavailable,
				"message": "Live subscription unavailable",
			})
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(fiber.Map{
				"success": false,
				"code":    fiberErr.Code,
				"message": fiberErr.Message,
			})
		}

		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"code":    fiber.StatusInternalServerError,
			"message": "Internal server error",
		})
	}
}
