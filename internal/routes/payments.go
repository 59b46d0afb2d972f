package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/paywallet/internal/domain"
	"github.com/congo-pay/paywallet/internal/middleware"
	"github.com/congo-pay/paywallet/internal/payments"
)

// RegisterPaymentRoutes wires wallet-to-wallet transfers.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler, authenticate, idempotent fiber.Handler) {
	r.Post("/transfer", authenticate, middleware.RequirePermission(domain.PermissionTransfer), idempotent, h.Transfer)
}
