package token

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sorewa/gatehouse/internal/database"
	"github.com/sorewa/gatehouse/internal/utils"
)

// Handler exposes the admin token console
type Handler struct {
	service Service
}

func NewHandler(s Service) *Handler {
	return &Handler{service: s}
}

type createRequest struct {
	Duration Duration `json:"duration"`
}

// Create issues a new invitation token. The plain value appears in
// this response only.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "invalid_body", fiber.StatusBadRequest)
	}

	issued, err := h.service.Issue(c.UserContext(), req.Duration)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidDuration):
		return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest)
	case errors.Is(err, database.ErrUnavailable):
		return utils.ErrorResponse(c, "store_unavailable", fiber.StatusServiceUnavailable)
	default:
		return utils.ErrorResponse(c, "token_create_failed", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, fiber.Map{
		"token": issued.Token,
		"value": issued.Plain,
	}, "Token created", fiber.StatusCreated)
}

// List returns every token row
func (h *Handler) List(c *fiber.Ctx) error {
	toks, err := h.service.List(c.UserContext())
	if err != nil {
		return utils.ErrorResponse(c, "token_list_failed", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, fiber.Map{
		"tokens": toks,
	}, "Tokens")
}

// Delete revokes a token by its at-rest value
func (h *Handler) Delete(c *fiber.Ctx) error {
	hashed := c.Params("value")
	if hashed == "" {
		return utils.ErrorResponse(c, "missing_token_value", fiber.StatusBadRequest)
	}

	if err := h.service.Revoke(c.UserContext(), hashed); err != nil {
		return utils.ErrorResponse(c, "token_delete_failed", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, nil, "Token deleted")
}
