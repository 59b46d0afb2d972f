package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/paywallet/internal/apikey"
	"github.com/congo-pay/paywallet/internal/domain"
	"github.com/congo-pay/paywallet/internal/ledger"
	"github.com/congo-pay/paywallet/internal/middleware"
	"github.com/congo-pay/paywallet/internal/wallet"
)

// RegisterWalletRoutes wires the read side of a user's wallet.
func RegisterWalletRoutes(r fiber.Router, wh *wallet.Handler, lh *ledger.Handler, kh *apikey.Handler, authenticate fiber.Handler) {
	read := middleware.RequirePermission(domain.PermissionRead)
	r.Get("/balance", authenticate, read, wh.Balance)
	r.Get("/id", authenticate, read, wh.Number)
	r.Get("/transactions", authenticate, read, lh.History)
	r.Get("/api-key/id", authenticate, kh.Current)
}
