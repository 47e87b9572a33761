package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/CoachMarketBack/internal/models"
)

func parseUserID(c *fiber.Ctx) (int64, error) {
	userIDValue := c.Locals("user_id")
	userIDStr, ok := userIDValue.(string)
	if !ok {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseInt(userIDStr, 10, 64)
}

// actorFromCtx reads the identity placed in Locals by the auth middleware.
func actorFromCtx(c *fiber.Ctx) (models.Actor, bool) {
	userID, err := parseUserID(c)
	if err != nil || userID <= 0 {
		return models.Actor{}, false
	}
	role, _ := c.Locals("role").(string)
	switch role {
	case models.RoleStudent, models.RoleCoach, models.RoleAdmin:
	default:
		return models.Actor{}, false
	}
	return models.Actor{UserID: userID, Role: role}, true
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
}

func parseIDParam(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
