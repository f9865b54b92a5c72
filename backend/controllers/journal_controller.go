package controllers

import (
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"lms/backend/config"
	"lms/backend/middleware"
	"lms/backend/models"
	"lms/backend/utils"
)

type JournalController struct {
	DB       *gorm.DB
	Cfg      *config.Config
	Validate *validator.Validate
	Logger   *log.Logger
}

func NewJournalController(db *gorm.DB, cfg *config.Config, logger *log.Logger) *JournalController {
	return &JournalController{DB: db, Cfg: cfg, Validate: validator.New(), Logger: logger}
}

type journalInput struct {
	WhatIKnow        string `json:"what_i_know" validate:"required,min=5"`
	WhatIChanged     string `json:"what_i_changed" validate:"required,min=5"`
	WhatChallengedMe string `json:"what_challenged_me" validate:"required,min=5"`
}

func (jc *JournalController) CreateDailyJournal(c *fiber.Ctx) error {
	var input journalInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if err := jc.Validate.Struct(input); err != nil {
		return utils.ValidationFailed(c, err)
	}

	return jc.mutate(c, func(e *models.Enrollment) (interface{}, error) {
		entry, err := e.CreateJournal(input.WhatIKnow, input.WhatIChanged, input.WhatChallengedMe, time.Now())
		if err != nil {
			return nil, err
		}
		return fiber.Map{
			"message": "Journal entry created",
			"entry":   entry,
		}, nil
	})
}

func (jc *JournalController) UpdateDailyJournal(c *fiber.Ctx) error {
	entryID := c.Params("entryId")

	var input journalInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if err := jc.Validate.Struct(input); err != nil {
		return utils.ValidationFailed(c, err)
	}

	return jc.mutate(c, func(e *models.Enrollment) (interface{}, error) {
		if err := e.UpdateJournal(entryID, input.WhatIKnow, input.WhatIChanged, input.WhatChallengedMe, time.Now()); err != nil {
			return nil, err
		}
		return fiber.Map{"message": "Journal entry updated"}, nil
	})
}

func (jc *JournalController) DeleteDailyJournal(c *fiber.Ctx) error {
	entryID := c.Params("entryId")

	return jc.mutate(c, func(e *models.Enrollment) (interface{}, error) {
		if err := e.DeleteJournal(entryID, time.Now()); err != nil {
			return nil, err
		}
		return fiber.Map{"message": "Journal entry deleted"}, nil
	})
}

// GetJournal returns the full journal sequence. The student sees their own;
// the enrollment's tutor and admins get the read-only tutor view.
func (jc *JournalController) GetJournal(c *fiber.Ctx) error {
	actor := middleware.Actor(c)

	enrollmentID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid enrollment ID")
	}

	var enrollment models.Enrollment
	if err := jc.DB.First(&enrollment, enrollmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Fail(c, models.ErrNotFound("enrollment not found"))
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	if enrollment.StudentID != actor.ID && enrollment.TutorID != actor.ID && !actor.IsAdmin() {
		return utils.Fail(c, models.ErrPermissionDenied("not your enrollment"))
	}

	return c.JSON(fiber.Map{"journals": enrollment.DailyJournals})
}

func (jc *JournalController) AddJournalFeedback(c *fiber.Ctx) error {
	actor := middleware.Actor(c)
	entryID := c.Params("entryId")

	var input struct {
		Comment string `json:"comment" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if err := jc.Validate.Struct(input); err != nil {
		return utils.ValidationFailed(c, err)
	}

	enrollmentID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid enrollment ID")
	}

	var enrollment models.Enrollment
	txErr := jc.DB.Transaction(func(tx *gorm.DB) error {
		if err := utils.WithRowLock(tx).First(&enrollment, enrollmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrNotFound("enrollment not found")
			}
			return err
		}
		if enrollment.TutorID != actor.ID && !actor.IsAdmin() {
			return models.ErrPermissionDenied("only the enrollment's tutor can leave feedback")
		}
		if err := enrollment.AddJournalFeedback(entryID, input.Comment, time.Now()); err != nil {
			return err
		}
		return tx.Save(&enrollment).Error
	})

	if txErr != nil {
		var domainErr *models.DomainError
		if !errors.As(txErr, &domainErr) {
			jc.Logger.Printf("journal feedback failed: %v", txErr)
		}
		return utils.Fail(c, txErr)
	}

	return c.JSON(fiber.Map{"message": "Feedback saved"})
}

// mutate runs a student-owned journal write on the locked enrollment row.
func (jc *JournalController) mutate(c *fiber.Ctx, op func(*models.Enrollment) (interface{}, error)) error {
	actor := middleware.Actor(c)

	enrollmentID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid enrollment ID")
	}

	var response interface{}
	txErr := jc.DB.Transaction(func(tx *gorm.DB) error {
		var enrollment models.Enrollment
		if err := utils.WithRowLock(tx).First(&enrollment, enrollmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrNotFound("enrollment not found")
			}
			return err
		}
		if enrollment.StudentID != actor.ID {
			return models.ErrPermissionDenied("not your enrollment")
		}

		out, err := op(&enrollment)
		if err != nil {
			return err
		}
		response = out
		return tx.Save(&enrollment).Error
	})

	if txErr != nil {
		var domainErr *models.DomainError
		if !errors.As(txErr, &domainErr) {
			jc.Logger.Printf("journal mutation failed: %v", txErr)
		}
		return utils.Fail(c, txErr)
	}

	return c.JSON(response)
}
