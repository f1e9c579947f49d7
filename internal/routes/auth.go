package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/tokengate/internal/auth"
	"github.com/congo-pay/tokengate/internal/middleware"
)

// RegisterAuthRoutes wires the register, login and refresh endpoints at the
// configured paths. Refresh sits behind guard.
func RegisterAuthRoutes(r fiber.Router, d Deps, h *auth.Handler, guard fiber.Handler) {
	r.Post(d.Cfg.RegisterPath, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger), h.Register)
	r.Post(d.Cfg.LoginPath, middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRateLimit, d.Logger), h.Login)
	r.Post(d.Cfg.RefreshPath, guard, h.Refresh)
}
