package middleware

import (
	"log/slog"
	"slices"

	"github.com/gofiber/fiber/v2"
	"github.com/unibvs/bvs-backend/internal/config"
	"github.com/unibvs/bvs-backend/internal/database"
	"github.com/unibvs/bvs-backend/internal/dto"
	"github.com/unibvs/bvs-backend/internal/identity"
	"github.com/unibvs/bvs-backend/internal/models"
	"gorm.io/gorm"
)

// ResolveAdmin marks the caller as admin when either:
// 1. the user's DB role is ADMIN, or
// 2. the user's identification number is listed in ADMIN_ID_NUMBERS.
//
// The role claim in the token is not trusted on its own, so a demoted admin
// loses access without waiting for token expiry.
func ResolveAdmin(db *gorm.DB, cfg *config.Config) fiber.Handler {
	adminIDs := config.SplitCSV(cfg.AdminIDNumbers)

	return func(c *fiber.Ctx) error {
		identity.SetAdmin(c, false)

		userID, err := identity.GetUserID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Invalid token claims",
			})
		}

		var user models.User
		err = db.WithContext(c.UserContext()).
			Select("id", "identification_number", "role").
			First(&user, "id = ?", userID).Error
		switch {
		case err == nil:
			identity.SetAdmin(c, user.IsAdmin() || slices.Contains(adminIDs, user.IdentificationNumber))
		case !database.IsNotFound(err):
			slog.Warn("admin lookup failed", "user_id", userID.String(), "error", err)
		}

		return c.Next()
	}
}

// AdminRequired rejects callers ResolveAdmin did not mark as admin.
func AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !identity.IsAdmin(c) {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: "Admin access required",
			})
		}
		return c.Next()
	}
}
