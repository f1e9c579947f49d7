package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/tokengate/internal/middleware"
)

// RegisterProtectedRoutes wires routes that run only after guard passes.
func RegisterProtectedRoutes(r fiber.Router, guard fiber.Handler) {
	r.Get("/me", guard, func(c *fiber.Ctx) error {
		identity, _ := middleware.IdentityFrom(c)
		return c.Status(http.StatusOK).JSON(fiber.Map{"username": identity})
	})
}
