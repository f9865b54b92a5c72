package utils

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"

	"lms/backend/config"
	"lms/backend/models"
)

func GenerateJWTToken(userID uint, role string, cfg *config.Config) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(time.Hour * 72).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// ExtractActorFromToken parses the Authorization header into the acting user.
func ExtractActorFromToken(c *fiber.Ctx, cfg *config.Config) (models.Actor, error) {
	tokenString := c.Get("Authorization")
	if tokenString == "" {
		return models.Actor{}, fiber.NewError(fiber.StatusUnauthorized, "Missing authorization token")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})

	if err != nil {
		return models.Actor{}, fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return models.Actor{}, fiber.NewError(fiber.StatusUnauthorized, "Invalid token claims")
	}

	userIDFloat, ok := claims["user_id"].(float64)
	if !ok {
		return models.Actor{}, fiber.NewError(fiber.StatusUnauthorized, "Invalid user ID in token")
	}
	role, ok := claims["role"].(string)
	if !ok {
		return models.Actor{}, fiber.NewError(fiber.StatusUnauthorized, "Invalid role in token")
	}

	return models.Actor{ID: uint(userIDFloat), Role: role}, nil
}
