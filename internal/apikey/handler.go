package apikey

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/paywallet/internal/auth"
	"github.com/congo-pay/paywallet/internal/domain"
)

// Handler exposes API key management endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an API key HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	Expiry      string   `json:"expiry"`
}

type rolloverRequest struct {
	ExpiredKeyID string `json:"expired_key_id"`
	Expiry       string `json:"expiry"`
}

type issuedResponse struct {
	ID        string    `json:"id"`
	APIKey    string    `json:"api_key"`
	Name      string    `json:"name"`
	ExpiresAt time.Time `json:"expires_at"`
}

type keyResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"expires_at"`
	Revoked     bool      `json:"revoked"`
	CreatedAt   time.Time `json:"created_at"`
}

// Create mints a key for the signed-in user.
func (h *Handler) Create(c *fiber.Ctx) error {
	p, err := userPrincipal(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	issued, err := h.service.Create(c.UserContext(), CreateInput{
		UserID:      p.UserID,
		Name:        req.Name,
		Permissions: req.Permissions,
		Expiry:      req.Expiry,
	})
	if err != nil {
		return keyError(err)
	}
	return c.Status(http.StatusCreated).JSON(toIssued(issued))
}

// Rollover replaces an expired key.
func (h *Handler) Rollover(c *fiber.Ctx) error {
	p, err := userPrincipal(c)
	if err != nil {
		return err
	}
	var req rolloverRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.ExpiredKeyID == "" {
		return fiber.NewError(http.StatusBadRequest, "expired_key_id is required")
	}

	issued, err := h.service.Rollover(c.UserContext(), p.UserID, req.ExpiredKeyID, req.Expiry)
	if err != nil {
		return keyError(err)
	}
	return c.Status(http.StatusCreated).JSON(toIssued(issued))
}

// List returns the caller's keys without their secrets.
func (h *Handler) List(c *fiber.Ctx) error {
	p, err := userPrincipal(c)
	if err != nil {
		return err
	}
	keys, err := h.service.List(c.UserContext(), p.UserID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]keyResponse, 0, len(keys))
	for _, k := range keys {
		perms := make([]string, len(k.Permissions))
		for i, perm := range k.Permissions {
			perms[i] = string(perm)
		}
		out = append(out, keyResponse{
			ID:          k.ID,
			Name:        k.Name,
			Permissions: perms,
			ExpiresAt:   k.ExpiresAt,
			Revoked:     k.Revoked,
			CreatedAt:   k.CreatedAt,
		})
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Revoke disables one of the caller's keys.
func (h *Handler) Revoke(c *fiber.Ctx) error {
	p, err := userPrincipal(c)
	if err != nil {
		return err
	}
	if err := h.service.Revoke(c.UserContext(), p.UserID, c.Params("id")); err != nil {
		return keyError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// Current returns the id of the API key the request authenticated with.
func (h *Handler) Current(c *fiber.Ctx) error {
	p, ok := auth.PrincipalFrom(c)
	if !ok || !p.IsAPIKey() {
		return fiber.NewError(http.StatusUnauthorized, "API key required")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"id": p.APIKeyID})
}

// userPrincipal only admits bearer-token callers: keys cannot manage keys.
func userPrincipal(c *fiber.Ctx) (auth.Principal, error) {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		return auth.Principal{}, fiber.NewError(http.StatusUnauthorized, "missing user context")
	}
	if p.IsAPIKey() {
		return auth.Principal{}, fiber.NewError(http.StatusForbidden, "API keys cannot manage API keys")
	}
	return p, nil
}

func toIssued(issued Issued) issuedResponse {
	return issuedResponse{
		ID:        issued.Key.ID,
		APIKey:    issued.Secret,
		Name:      issued.Key.Name,
		ExpiresAt: issued.Key.ExpiresAt,
	}
}

func keyError(err error) error {
	switch {
	case errors.Is(err, domain.ErrAPIKeyNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrAPIKeyLimitReached),
		errors.Is(err, domain.ErrAPIKeyNotExpired),
		errors.Is(err, domain.ErrInvalidPermission),
		errors.Is(err, domain.ErrInvalidExpiry),
		errors.Is(err, ErrNameRequired):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
