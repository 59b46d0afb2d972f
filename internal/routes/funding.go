package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/paywallet/internal/domain"
	"github.com/congo-pay/paywallet/internal/funding"
	"github.com/congo-pay/paywallet/internal/middleware"
)

// RegisterFundingRoutes wires deposit initiation and the provider callbacks.
// The webhook, redirect and status endpoints are public.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler, authenticate, idempotent fiber.Handler) {
	r.Post("/paystack/webhook", h.Webhook)
	r.Get("/paystack/webhook", h.Redirect)
	r.Get("/deposit/:reference/status", h.Status)
	r.Post("/deposit", authenticate, middleware.RequirePermission(domain.PermissionDeposit), idempotent, h.Deposit)
}
