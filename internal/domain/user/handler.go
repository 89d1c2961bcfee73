package user

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sorewa/gatehouse/internal/domain/token"
	"github.com/sorewa/gatehouse/internal/utils"
)

// Handler exposes the admin user console
type Handler struct {
	service Service
}

func NewHandler(s Service) *Handler {
	return &Handler{service: s}
}

// List returns all accounts
func (h *Handler) List(c *fiber.Ctx) error {
	users, err := h.service.List(c.UserContext())
	if err != nil {
		return utils.ErrorResponse(c, "user_list_failed", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, fiber.Map{
		"users": users,
	}, "Users")
}

// Delete removes an account and its token
func (h *Handler) Delete(c *fiber.Ctx) error {
	username := c.Params("username")

	err := h.service.Delete(c.UserContext(), username)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		return utils.ErrorResponse(c, err.Error(), fiber.StatusNotFound)
	default:
		return utils.ErrorResponse(c, "user_delete_failed", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, nil, "User deleted")
}

// ForceLogout deactivates every session of an account
func (h *Handler) ForceLogout(c *fiber.Ctx) error {
	username := c.Params("username")

	err := h.service.ForceLogout(c.UserContext(), username)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		return utils.ErrorResponse(c, err.Error(), fiber.StatusNotFound)
	default:
		return utils.ErrorResponse(c, "force_logout_failed", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, nil, "Sessions deactivated")
}

type renewRequest struct {
	Duration token.Duration `json:"duration"`
}

// Renew replaces the account's token for a fresh access period
func (h *Handler) Renew(c *fiber.Ctx) error {
	username := c.Params("username")

	var req renewRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "invalid_body", fiber.StatusBadRequest)
	}

	issued, err := h.service.RenewToken(c.UserContext(), username, req.Duration)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		return utils.ErrorResponse(c, err.Error(), fiber.StatusNotFound)
	case errors.Is(err, token.ErrInvalidDuration):
		return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest)
	default:
		return utils.ErrorResponse(c, "token_renew_failed", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, fiber.Map{
		"token": issued.Token,
		"value": issued.Plain,
	}, "Token renewed")
}
