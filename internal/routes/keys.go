package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/paywallet/internal/apikey"
)

// RegisterKeyRoutes wires API key management. The router must already
// authenticate the caller.
func RegisterKeyRoutes(r fiber.Router, h *apikey.Handler) {
	r.Post("/create", h.Create)
	r.Post("/rollover", h.Rollover)
	r.Get("/", h.List)
	r.Post("/:id/revoke", h.Revoke)
}
