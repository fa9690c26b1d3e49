package controller

import (
	"chatbot-be/internal/dto"
	"chatbot-be/internal/entity"
	"chatbot-be/internal/identity"
	"chatbot-be/internal/pkg/serverutils"
	"chatbot-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IAuthController interface {
	RegisterRoutes(r fiber.Router, jwtMiddleware fiber.Handler)
	Register(ctx *fiber.Ctx) error
	Login(ctx *fiber.Ctx) error
	Logout(ctx *fiber.Ctx) error
	Session(ctx *fiber.Ctx) error
}

type authController struct {
	provider identity.Provider
	hub      *websocket.Hub
}

func NewAuthController(provider identity.Provider, hub *websocket.Hub) IAuthController {
	return &authController{provider: provider, hub: hub}
}

func (c *authController) RegisterRoutes(r fiber.Router, jwtMiddleware fiber.Handler) {
	h := r.Group("/auth")
	h.Post("/register", c.Register)
	h.Post("/login", c.Login)
	h.Post("/logout", jwtMiddleware, c.Logout)
	h.Get("/session", c.Session)
}

func credentialsResponse(cred *identity.Credentials) dto.SignInResponse {
	return dto.SignInResponse{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		User: dto.UserDTO{
			Id:    cred.Identity.UserId,
			Email: cred.Identity.Email,
		},
	}
}

func (c *authController) Register(ctx *fiber.Ctx) error {
	var req dto.SignUpRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	cred, err := c.provider.SignUp(ctx.Context(), req.Email, req.Password)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"code":    400,
			"message": err.Error(),
		})
	}
	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    200,
		"message": "Account created",
		"data":    credentialsResponse(cred),
	})
}

func (c *authController) Login(ctx *fiber.Ctx) error {
	var req dto.SignInRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	cred, err := c.provider.SignIn(ctx.Context(), req.Email, req.Password)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"code":    401,
			"message": err.Error(),
		})
	}
	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    200,
		"message": "Login successful",
		"data":    credentialsResponse(cred),
	})
}

func (c *authController) Logout(ctx *fiber.Ctx) error {
	userId, _ := ctx.Locals("user_id").(uuid.UUID)
	email, _ := ctx.Locals("user_email").(string)
	authHeader := ctx.Get("Authorization")
	accessToken := ""
	if len(authHeader) > 7 {
		accessToken = authHeader[7:]
	}

	// The body is optional: with a refresh token only that session is
	// revoked, without one sign-out falls back to revoking them all.
	var req dto.SignOutRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return err
		}
	}

	err := c.provider.SignOut(ctx.Context(), &identity.Credentials{
		AccessToken:  accessToken,
		RefreshToken: req.RefreshToken,
		Identity:     entity.Identity{UserId: userId, Email: email},
	})

	// Sessions on this identity are done either way: drop live connections so
	// no subscription keeps delivering for revoked credentials.
	c.hub.CloseUser(userId)

	if err != nil {
		return ctx.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"code":    502,
			"message": "Signed out locally, but remote revocation failed",
		})
	}
	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    200,
		"message": "Signed out",
	})
}

func (c *authController) Session(ctx *fiber.Ctx) error {
	authHeader := ctx.Get("Authorization")
	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return ctx.JSON(fiber.Map{
			"success": true,
			"code":    200,
			"data":    dto.SessionResponse{},
		})
	}

	ident, _, err := c.provider.Introspect(authHeader[7:])
	if err != nil {
		return ctx.JSON(fiber.Map{
			"success": true,
			"code":    200,
			"data":    dto.SessionResponse{},
		})
	}
	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    200,
		"data": dto.SessionResponse{
			IsAuthenticated: true,
			User:            &dto.UserDTO{Id: ident.UserId, Email: ident.Email},
		},
	})
}
