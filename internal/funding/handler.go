package funding

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/paywallet/internal/auth"
	"github.com/congo-pay/paywallet/internal/domain"
	"github.com/congo-pay/paywallet/internal/store"
)

// Handler exposes deposit and provider callback endpoints.
type Handler struct {
	service       *Service
	webhookSecret string
	logger        *slog.Logger
}

// NewHandler constructs a funding handler. webhookSecret authenticates
// provider callbacks.
func NewHandler(service *Service, webhookSecret string, logger *slog.Logger) *Handler {
	return &Handler{service: service, webhookSecret: webhookSecret, logger: logger}
}

type depositRequest struct {
	Amount int64 `json:"amount"`
}

// Deposit starts funding the caller's wallet.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing user context")
	}
	var req depositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.InitiateDeposit(c.UserContext(), DepositInput{
		UserID:      p.UserID,
		Email:       p.Email,
		Amount:      req.Amount,
		CallbackURL: c.BaseURL() + "/wallet/paystack/webhook",
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidAmount):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrWalletAllocationExhausted):
			return fiber.NewError(http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, ErrProviderRejected):
			return fiber.NewError(http.StatusBadGateway, "payment provider rejected the deposit")
		default:
			return fiber.NewError(http.StatusInternalServerError, "deposit initialization failed")
		}
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"reference":         res.Reference,
		"authorization_url": res.AuthorizationURL,
	})
}

// Webhook applies a signed provider notification.
func (h *Handler) Webhook(c *fiber.Ctx) error {
	event, err := ParseWebhook(h.webhookSecret, c.Body(), c.Get(SignatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSignature):
			h.logger.Warn("webhook rejected", slog.String("error", err.Error()))
			return fiber.NewError(http.StatusUnauthorized, "invalid signature")
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}

	if !event.Confirmed() {
		return c.Status(http.StatusOK).JSON(fiber.Map{"status": true})
	}

	result, err := h.service.ApplyExternalCredit(c.UserContext(), event.Reference, event.Amount)
	if errors.Is(err, domain.ErrAmountMismatch) {
		// Redelivery cannot change the amount; acknowledge and leave the
		// deposit pending for manual reconciliation.
		h.logger.Warn("webhook amount mismatch",
			slog.String("reference", event.Reference),
			slog.Int64("confirmed_amount", event.Amount),
		)
		return c.Status(http.StatusOK).JSON(fiber.Map{"status": true, "result": "amount_mismatch"})
	}
	if err != nil {
		h.logger.Error("webhook processing failed",
			slog.String("reference", event.Reference),
			slog.String("error", err.Error()),
		)
		return creditError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": true, "result": result.Status})
}

// Redirect verifies a deposit when the payer returns from checkout.
func (h *Handler) Redirect(c *fiber.Ctx) error {
	reference := c.Query("reference")
	if reference == "" {
		reference = c.Query("trxref")
	}
	if reference == "" {
		return fiber.NewError(http.StatusBadRequest, "missing reference")
	}

	res, err := h.service.VerifyAndApply(c.UserContext(), reference)
	if err != nil {
		if errors.Is(err, ErrProviderRejected) {
			return fiber.NewError(http.StatusBadGateway, "payment verification failed")
		}
		h.logger.Error("redirect processing failed",
			slog.String("reference", reference),
			slog.String("error", err.Error()),
		)
		return creditError(err)
	}

	body := fiber.Map{
		"reference": reference,
		"status":    res.Verification.Status,
		"amount":    res.Verification.Amount,
	}
	if res.Credit != nil {
		body["result"] = res.Credit.Status
	}
	return c.Status(http.StatusOK).JSON(body)
}

// Status reports the provider's view of a deposit.
func (h *Handler) Status(c *fiber.Ctx) error {
	reference := c.Params("reference")
	v, err := h.service.DepositStatus(c.UserContext(), reference)
	if err != nil {
		return fiber.NewError(http.StatusBadGateway, "payment verification failed")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"reference": reference,
		"status":    v.Status,
		"amount":    v.Amount,
	})
}

func creditError(err error) error {
	switch {
	case errors.Is(err, domain.ErrUnknownReference):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAmountMismatch):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidTransaction):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrBalanceOverflow):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case store.IsTransient(err):
		return fiber.NewError(http.StatusServiceUnavailable, "credit could not be applied, retry later")
	default:
		return fiber.NewError(http.StatusInternalServerError, "credit could not be applied")
	}
}
