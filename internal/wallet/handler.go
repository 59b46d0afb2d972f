package wallet

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/paywallet/internal/auth"
	"github.com/congo-pay/paywallet/internal/domain"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Balance returns the caller's balance, provisioning the wallet on first use.
func (h *Handler) Balance(c *fiber.Ctx) error {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing user context")
	}
	if _, err := h.service.GetOrCreate(c.UserContext(), p.UserID); err != nil {
		return allocationError(err)
	}
	balance, err := h.service.Balance(c.UserContext(), p.UserID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"balance": balance})
}

// Number returns the caller's wallet number.
func (h *Handler) Number(c *fiber.Ctx) error {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing user context")
	}
	w, err := h.service.GetOrCreate(c.UserContext(), p.UserID)
	if err != nil {
		return allocationError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"wallet_number": w.WalletNumber})
}

func allocationError(err error) error {
	if errors.Is(err, domain.ErrWalletAllocationExhausted) {
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	}
	return fiber.NewError(http.StatusInternalServerError, err.Error())
}
