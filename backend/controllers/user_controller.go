package controllers

import (
	"errors"
	"log"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"lms/backend/config"
	"lms/backend/middleware"
	"lms/backend/models"
	"lms/backend/utils"
)

type UserController struct {
	DB       *gorm.DB
	Cfg      *config.Config
	Validate *validator.Validate
	Logger   *log.Logger
}

func NewUserController(db *gorm.DB, cfg *config.Config, logger *log.Logger) *UserController {
	return &UserController{DB: db, Cfg: cfg, Validate: validator.New(), Logger: logger}
}

func (uc *UserController) GetProfile(c *fiber.Ctx) error {
	actor := middleware.Actor(c)

	var user models.User
	if err := uc.DB.First(&user, actor.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Fail(c, models.ErrNotFound("user not found"))
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	return c.JSON(fiber.Map{
		"id":        user.ID,
		"username":  user.Username,
		"email":     user.Email,
		"role":      user.Role,
		"full_name": user.FullName,
		"bio":       user.Bio,
	})
}

func (uc *UserController) UpdateProfile(c *fiber.Ctx) error {
	actor := middleware.Actor(c)

	var input struct {
		FullName string `json:"full_name"`
		Bio      string `json:"bio"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	var user models.User
	if err := uc.DB.First(&user, actor.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Fail(c, models.ErrNotFound("user not found"))
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	if input.FullName != "" {
		user.FullName = input.FullName
	}
	if input.Bio != "" {
		user.Bio = input.Bio
	}

	if err := uc.DB.Save(&user).Error; err != nil {
		return utils.InternalServerError(c, "Could not update profile")
	}

	return c.JSON(fiber.Map{"message": "Profile updated"})
}

// DeleteUser removes an account and cascades: enrollments where the user is
// student or tutor are removed; modules a deleted tutor owned lose their
// tutor reference and fall back to draft.
func (uc *UserController) DeleteUser(c *fiber.Ctx) error {
	userID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid user ID")
	}

	txErr := uc.DB.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := utils.WithRowLock(tx).First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrNotFound("user not found")
			}
			return err
		}

		if err := tx.Where("student_id = ? OR tutor_id = ?", user.ID, user.ID).
			Delete(&models.Enrollment{}).Error; err != nil {
			return err
		}

		if user.Role == models.RoleTutor {
			if err := tx.Model(&models.Module{}).
				Where("tutor_id = ?", user.ID).
				Updates(map[string]interface{}{
					"tutor_id": nil,
					"status":   models.StatusDraft,
				}).Error; err != nil {
				return err
			}
		}

		return tx.Delete(&user).Error
	})

	if txErr != nil {
		var domainErr *models.DomainError
		if !errors.As(txErr, &domainErr) {
			uc.Logger.Printf("user delete cascade failed: %v", txErr)
		}
		return utils.Fail(c, txErr)
	}

	return c.JSON(fiber.Map{"message": "User deleted"})
}
