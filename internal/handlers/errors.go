package handlers

import (
	"errors"
	"log/slog"

	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	"github.com/unibvs/bvs-backend/internal/dto"
	"github.com/unibvs/bvs-backend/internal/services"
)

// statusFor maps a service error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrInvalidState):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, services.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrBadRequest):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, services.ErrUnavailable):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// respondError writes err as an ErrorResponse. Categorized errors carry a
// caller-facing message; anything else is logged and reported to Sentry
// and the client only sees a generic message.
func respondError(c *fiber.Ctx, err error) error {
	status := statusFor(err)

	var svcErr *services.Error
	message := "Internal server error"
	switch {
	case errors.As(err, &svcErr):
		message = svcErr.Message
	case status == fiber.StatusServiceUnavailable:
		message = "Service temporarily unavailable, please retry"
	}

	if status >= fiber.StatusInternalServerError {
		slog.Error("request failed", "action", c.Method()+" "+c.Route().Path, "error", err.Error(), "status", status)
		if hub := sentryfiber.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
	}

	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: message})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: "Invalid request body",
	})
}

func badID(c *fiber.Ctx, what string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: "Invalid " + what + " id",
	})
}

func unauthorizedCaller(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error: true, Message: "Unauthorized",
	})
}
