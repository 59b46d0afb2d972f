package ledger

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/paywallet/internal/auth"
	"github.com/congo-pay/paywallet/internal/domain"
)

// Handler exposes transaction history over HTTP.
type Handler struct {
	ledger *Ledger
}

// NewHandler constructs a history handler.
func NewHandler(l *Ledger) *Handler {
	return &Handler{ledger: l}
}

type transactionResponse struct {
	Reference string    `json:"reference"`
	Type      string    `json:"type"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// History lists the caller's transactions, newest first.
func (h *Handler) History(c *fiber.Ctx) error {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing user context")
	}

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", DefaultPageSize)

	txns, err := h.ledger.History(c.UserContext(), p.UserID, page, limit)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toResponses(txns))
}

func toResponses(txns []domain.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txns))
	for _, t := range txns {
		out = append(out, transactionResponse{
			Reference: t.Reference,
			Type:      string(t.Type),
			Amount:    t.Amount,
			Status:    string(t.Status),
			CreatedAt: t.CreatedAt,
		})
	}
	return out
}
