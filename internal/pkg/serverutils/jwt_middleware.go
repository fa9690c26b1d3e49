package serverutils

import (
	"chatbot-be/internal/identity"

	"github.com/gofiber/fiber/v2"
)

// NewJwtMiddleware gates routes behind a valid bearer token. The resolved
// identity is stored in locals for handlers.
func NewJwtMiddleware(provider identity.Provider) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		authHeader := ctx.Get("Authorization")
		if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Missing token"})
		}
		tokenStr := authHeader[7:]

		ident, _, err := provider.Introspect(tokenStr)
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid token"})
		}

		ctx.Locals("user_id", ident.UserId)
		ctx.Locals("user_email", ident.Email)
		return ctx.Next()
	}
}
