package auth

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/tokengate/internal/middleware"
)

// Handler exposes the register, login and refresh endpoints.
type Handler struct {
	gateway *Gateway
	logger  *slog.Logger
}

func NewHandler(gateway *Gateway, logger *slog.Logger) *Handler {
	return &Handler{gateway: gateway, logger: logger}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates a credential and answers 200 with an empty body.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest)
	}
	if err := h.gateway.Register(c.UserContext(), req.Username, req.Password); err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).Send(nil)
}

// Login answers with the signed token as a plain-text body.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest)
	}
	signed, err := h.gateway.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return h.fail(c, err)
	}
	return sendToken(c, signed)
}

// Refresh must sit behind the token guard; it re-issues a token for the
// identity the guard confirmed.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized)
	}
	signed, err := h.gateway.Refresh(identity)
	if err != nil {
		return h.fail(c, err)
	}
	return sendToken(c, signed)
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	status := StatusFor(err)
	if status == http.StatusInternalServerError && h.logger != nil {
		h.logger.ErrorContext(c.UserContext(), "auth request failed",
			slog.String("path", c.Path()),
			slog.String("request_id", middleware.RequestIDFrom(c)),
			slog.Any("error", err),
		)
	}
	return fiber.NewError(status)
}

func sendToken(c *fiber.Ctx, signed string) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(http.StatusOK).SendString(signed)
}
