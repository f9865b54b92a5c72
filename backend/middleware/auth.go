package middleware

import (
	"github.com/gofiber/fiber/v2"

	"lms/backend/config"
	"lms/backend/models"
	"lms/backend/utils"
)

const actorKey = "actor"

// AuthMiddleware validates the JWT and stores the acting user on the context.
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := utils.ExtractActorFromToken(c, cfg)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		c.Locals(actorKey, actor)
		return c.Next()
	}
}

// RequireRole gates a route to the given roles. Must run after AuthMiddleware.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := Actor(c)
		for _, role := range roles {
			if actor.Role == role {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Forbidden - insufficient role",
		})
	}
}

// Actor returns the authenticated caller stored by AuthMiddleware.
func Actor(c *fiber.Ctx) models.Actor {
	actor, _ := c.Locals(actorKey).(models.Actor)
	return actor
}
