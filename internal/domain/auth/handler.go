package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sorewa/gatehouse/internal/database"
	"github.com/sorewa/gatehouse/internal/domain/session"
	"github.com/sorewa/gatehouse/internal/domain/token"
	"github.com/sorewa/gatehouse/internal/utils"
)

// FingerprintHeader carries the client's device fingerprint
const FingerprintHeader = "X-Device-Fingerprint"

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) fingerprint(c *fiber.Ctx) string {
	return c.Get(FingerprintHeader)
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "invalid_body", fiber.StatusBadRequest)
	}

	fp := h.fingerprint(c)
	if fp == "" {
		return utils.ErrorResponse(c, "missing_device_fingerprint", fiber.StatusBadRequest)
	}

	res, err := h.service.SignIn(c.UserContext(), req.Username, req.Password, fp)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidCredentials):
		return utils.ErrorResponse(c, err.Error(), fiber.StatusUnauthorized)
	case errors.Is(err, ErrAlreadyLoggedInElsewhere),
		errors.Is(err, session.ErrConcurrentSessionConflict):
		return utils.ErrorResponse(c, err.Error(), fiber.StatusConflict)
	case errors.Is(err, database.ErrUnavailable):
		return utils.ErrorResponse(c, "store_unavailable", fiber.StatusServiceUnavailable)
	default:
		return utils.ErrorResponse(c, "login_failed", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, fiber.Map{
		"access_token": res.AccessToken,
		"session":      res.Record,
	}, "Login successful")
}

func (h *Handler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, "invalid_body", fiber.StatusBadRequest)
	}

	u, err := h.service.SignUp(c.UserContext(), req.Username, req.Password, req.Token)
	switch {
	case err == nil:
	case errors.Is(err, ErrUsernameTaken):
		return utils.ErrorResponse(c, err.Error(), fiber.StatusConflict)
	case errors.Is(err, token.ErrInvalidToken),
		errors.Is(err, token.ErrTokenAlreadyUsed):
		return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest)
	case errors.Is(err, database.ErrUnavailable):
		return utils.ErrorResponse(c, "store_unavailable", fiber.StatusServiceUnavailable)
	default:
		return utils.ErrorResponse(c, "registration_failed", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, fiber.Map{
		"user": u,
	}, "User registered successfully", fiber.StatusCreated)
}

// Session re-runs the session check for the calling client
func (h *Handler) Session(c *fiber.Ctx) error {
	identity := GetIdentity(c)
	if identity == nil {
		return utils.ErrorResponse(c, "unauthorized", fiber.StatusUnauthorized)
	}

	status, rec, err := h.service.CheckSession(c.UserContext(), identity.ClientKey)
	if err != nil {
		return utils.ErrorResponse(c, "session_check_failed", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, fiber.Map{
		"status":  status,
		"session": rec,
	}, "Session state")
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	identity := GetIdentity(c)
	if identity == nil {
		return utils.ErrorResponse(c, "unauthorized", fiber.StatusUnauthorized)
	}

	if err := h.service.SignOut(c.UserContext(), identity.ClientKey); err != nil {
		return utils.ErrorResponse(c, "logout_failed", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, nil, "Logged out")
}
