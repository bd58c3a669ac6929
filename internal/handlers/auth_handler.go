package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/mssola/useragent"
	"github.com/unibvs/bvs-backend/internal/dto"
	"github.com/unibvs/bvs-backend/internal/identity"
	"github.com/unibvs/bvs-backend/internal/services"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) LoginPIN(c *fiber.Ctx) error {
	var req dto.PINLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	resp, err := h.authService.LoginWithPIN(c.UserContext(), req.IdentificationNumber, req.PIN)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorizedCaller(c)
	}

	user, err := h.authService.GetUser(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.NewUserResponse(user))
}

func (h *AuthHandler) SetPIN(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorizedCaller(c)
	}
	var req dto.SetPINRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	if err := h.authService.SetPIN(c.UserContext(), userID, req.CurrentPIN, req.NewPIN); err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.MessageResponse{Message: "PIN updated"})
}

func (h *AuthHandler) RegisterOptions(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorizedCaller(c)
	}

	options, err := h.authService.BeginRegistration(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(options)
}

// RegisterVerify expects the browser's PublicKeyCredential JSON as the body.
func (h *AuthHandler) RegisterVerify(c *fiber.Ctx) error {
	userID, err := identity.GetUserID(c)
	if err != nil {
		return unauthorizedCaller(c)
	}

	authenticator, err := h.authService.FinishRegistration(c.UserContext(), userID, c.Body(), deviceLabel(c.Get(fiber.HeaderUserAgent)))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(authenticator)
}

func (h *AuthHandler) BiometricOptions(c *fiber.Ctx) error {
	var req dto.BiometricOptionsRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	options, err := h.authService.BeginLogin(c.UserContext(), req.IdentificationNumber)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(options)
}

func (h *AuthHandler) BiometricVerify(c *fiber.Ctx) error {
	var req dto.BiometricVerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if len(req.Credential) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "credential is required",
		})
	}

	resp, err := h.authService.FinishLogin(c.UserContext(), req.IdentificationNumber, req.Credential)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

// deviceLabel names an authenticator after the browser and OS that enrolled
// it, e.g. "Chrome on Android 14".
func deviceLabel(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return "Unknown device"
	}
	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	os := ua.OS()
	switch {
	case browser != "" && os != "":
		return browser + " on " + os
	case browser != "":
		return browser
	case os != "":
		return os
	}
	return "Unknown device"
}
