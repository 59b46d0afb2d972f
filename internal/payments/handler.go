package payments

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/paywallet/internal/auth"
	"github.com/congo-pay/paywallet/internal/domain"
	"github.com/congo-pay/paywallet/internal/store"
)

// Handler exposes payment endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type transferRequest struct {
	WalletNumber string `json:"wallet_number"`
	Amount       int64  `json:"amount"`
}

// Transfer moves funds from the caller's wallet to another wallet number.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing user context")
	}

	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Transfer(c.UserContext(), TransferInput{
		SenderUserID:          p.UserID,
		RecipientWalletNumber: req.WalletNumber,
		Amount:                req.Amount,
	})
	if err != nil {
		return h.transferError(err)
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status":       "success",
		"message":      "Transfer completed",
		"reference":    res.Reference,
		"balance":      res.SenderBalance,
		"completed_at": res.CompletedAt,
	})
}

func (h *Handler) transferError(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrSelfTransfer),
		errors.Is(err, domain.ErrInsufficientBalance):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrSenderNotFound),
		errors.Is(err, domain.ErrRecipientNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrBalanceOverflow):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case store.IsTransient(err):
		h.logger.Warn("transfer aborted", slog.String("error", err.Error()))
		return fiber.NewError(http.StatusServiceUnavailable, "transfer could not be completed, retry later")
	default:
		h.logger.Error("transfer failed", slog.String("error", err.Error()))
		return fiber.NewError(http.StatusInternalServerError, "transfer failed")
	}
}
