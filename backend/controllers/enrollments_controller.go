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

type EnrollmentsController struct {
	DB       *gorm.DB
	Cfg      *config.Config
	Validate *validator.Validate
	Notifier utils.Notifier
	Logger   *log.Logger
}

func NewEnrollmentsController(db *gorm.DB, cfg *config.Config, notifier utils.Notifier, logger *log.Logger) *EnrollmentsController {
	return &EnrollmentsController{DB: db, Cfg: cfg, Validate: validator.New(), Notifier: notifier, Logger: logger}
}

func (ec *EnrollmentsController) Enroll(c *fiber.Ctx) error {
	actor := middleware.Actor(c)

	var input struct {
		ModuleID        uint       `json:"module_id" validate:"required"`
		HourlyRate      float64    `json:"hourly_rate" validate:"omitempty,min=0"`
		ExpectedEndDate *time.Time `json:"expected_end_date"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if err := ec.Validate.Struct(input); err != nil {
		return utils.ValidationFailed(c, err)
	}

	var module models.Module
	if err := ec.DB.First(&module, input.ModuleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Fail(c, models.ErrNotFound("module not found"))
		}
		return utils.InternalServerError(c, "Could not query database")
	}
	if module.TutorID == nil {
		return utils.Fail(c, models.ErrInvalidState("module has no tutor assigned"))
	}

	now := time.Now()
	if input.ExpectedEndDate != nil && !input.ExpectedEndDate.After(now) {
		return utils.Fail(c, models.ErrValidation("expected end date must be after enrollment"))
	}

	enrollment := models.Enrollment{
		StudentID:       actor.ID,
		ModuleID:        module.ID,
		TutorID:         *module.TutorID,
		EnrolledAt:      now,
		LastActivityAt:  now,
		HourlyRate:      input.HourlyRate,
		ExpectedEndDate: input.ExpectedEndDate,
	}

	if err := ec.DB.Create(&enrollment).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return utils.Fail(c, models.ErrConflict("already enrolled in this module"))
		}
		return utils.InternalServerError(c, "Could not create enrollment")
	}

	ec.notify(enrollment.TutorID, utils.NotifyEnrolled, fiber.Map{
		"enrollment_id": enrollment.ID,
		"module_id":     module.ID,
		"student_id":    actor.ID,
	})

	return c.JSON(fiber.Map{
		"message":    "Enrolled",
		"enrollment": enrollment,
	})
}

func (ec *EnrollmentsController) GetMyEnrollments(c *fiber.Ctx) error {
	actor := middleware.Actor(c)

	var enrollments []models.Enrollment
	if err := ec.DB.Where("student_id = ?", actor.ID).Find(&enrollments).Error; err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	var result []fiber.Map
	for _, e := range enrollments {
		result = append(result, fiber.Map{
			"id":               e.ID,
			"module_id":        e.ModuleID,
			"progress_percent": e.ProgressPercent,
			"final_score":      e.FinalScore,
			"passed":           e.Passed,
			"enrolled_at":      e.EnrolledAt,
			"last_activity_at": e.LastActivityAt,
		})
	}

	return c.JSON(result)
}

func (ec *EnrollmentsController) GetTutorRoster(c *fiber.Ctx) error {
	actor := middleware.Actor(c)

	var enrollments []models.Enrollment
	if err := ec.DB.Where("tutor_id = ?", actor.ID).Find(&enrollments).Error; err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	return c.JSON(enrollments)
}

func (ec *EnrollmentsController) GetModuleEnrollments(c *fiber.Ctx) error {
	actor := middleware.Actor(c)

	moduleID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid module ID")
	}

	var module models.Module
	if err := ec.DB.First(&module, moduleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Fail(c, models.ErrNotFound("module not found"))
		}
		return utils.InternalServerError(c, "Could not query database")
	}
	if !module.IsOwnedBy(actor) && !actor.IsAdmin() {
		return utils.Fail(c, models.ErrPermissionDenied("not your module"))
	}

	var enrollments []models.Enrollment
	if err := ec.DB.Where("module_id = ?", moduleID).Find(&enrollments).Error; err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	return c.JSON(enrollments)
}

func (ec *EnrollmentsController) RecordActivity(c *fiber.Ctx) error {
	blockID := c.Params("blockId")

	return ec.mutate(c, studentOnly, func(actor models.Actor, e *models.Enrollment, module *models.Module) (interface{}, error) {
		block, ok := module.FindBlock(blockID)
		if !ok {
			return nil, models.ErrNotFound("block not found in module")
		}
		if err := e.RecordActivity(module, block, time.Now()); err != nil {
			return nil, err
		}
		return fiber.Map{
			"message":          "Block completed",
			"progress_percent": e.ProgressPercent,
		}, nil
	})
}

func (ec *EnrollmentsController) FetchQuizState(c *fiber.Ctx) error {
	actor := middleware.Actor(c)
	blockID := c.Params("blockId")

	enrollmentID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid enrollment ID")
	}

	var enrollment models.Enrollment
	if err := ec.DB.First(&enrollment, enrollmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Fail(c, models.ErrNotFound("enrollment not found"))
		}
		return utils.InternalServerError(c, "Could not query database")
	}
	if enrollment.StudentID != actor.ID && enrollment.TutorID != actor.ID && !actor.IsAdmin() {
		return utils.Fail(c, models.ErrPermissionDenied("not your enrollment"))
	}

	return c.JSON(enrollment.FetchQuizState(blockID))
}

func (ec *EnrollmentsController) SubmitQuiz(c *fiber.Ctx) error {
	blockID := c.Params("blockId")

	var input struct {
		Answers [][]int `json:"answers"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	return ec.mutate(c, studentOnly, func(actor models.Actor, e *models.Enrollment, module *models.Module) (interface{}, error) {
		block, ok := module.FindBlock(blockID)
		if !ok {
			return nil, models.ErrNotFound("block not found in module")
		}
		result, err := e.SubmitQuiz(module, block, input.Answers, time.Now())
		if err != nil {
			return nil, err
		}
		return fiber.Map{
			"result":           result,
			"progress_percent": e.ProgressPercent,
		}, nil
	})
}

func (ec *EnrollmentsController) SubmitTask(c *fiber.Ctx) error {
	blockID := c.Params("blockId")

	var input struct {
		Text    string `json:"text"`
		Link    string `json:"link" validate:"omitempty,url"`
		FileURL string `json:"file_url" validate:"omitempty,url"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if err := ec.Validate.Struct(input); err != nil {
		return utils.ValidationFailed(c, err)
	}

	return ec.mutate(c, studentOnly, func(actor models.Actor, e *models.Enrollment, module *models.Module) (interface{}, error) {
		block, ok := module.FindBlock(blockID)
		if !ok {
			return nil, models.ErrNotFound("block not found in module")
		}
		payload := models.TaskPayload{Text: input.Text, Link: input.Link, FileURL: input.FileURL}
		if err := e.SubmitTask(block, payload, time.Now()); err != nil {
			return nil, err
		}
		return fiber.Map{
			"message":    "Task submitted for review",
			"submission": e.TaskSubmissions.Data()[block.ID],
		}, nil
	})
}

func (ec *EnrollmentsController) ReviewTask(c *fiber.Ctx) error {
	blockID := c.Params("blockId")

	var input struct {
		Status   string  `json:"status" validate:"required,oneof=approved rejected"`
		Score    float64 `json:"score" validate:"min=0,max=100"`
		Feedback string  `json:"feedback"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if err := ec.Validate.Struct(input); err != nil {
		return utils.ValidationFailed(c, err)
	}

	enrollmentID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid enrollment ID")
	}

	var studentID uint
	response, txErr := ec.runMutation(middleware.Actor(c), enrollmentID, tutorOnly, func(actor models.Actor, e *models.Enrollment, module *models.Module) (interface{}, error) {
		if err := e.ReviewTask(module, blockID, input.Status, input.Score, input.Feedback, time.Now()); err != nil {
			return nil, err
		}
		studentID = e.StudentID
		return fiber.Map{
			"message":          "Task reviewed",
			"submission":       e.TaskSubmissions.Data()[blockID],
			"progress_percent": e.ProgressPercent,
			"final_score":      e.FinalScore,
			"passed":           e.Passed,
		}, nil
	})
	if txErr != nil {
		var domainErr *models.DomainError
		if !errors.As(txErr, &domainErr) {
			ec.Logger.Printf("enrollment mutation failed: %v", txErr)
		}
		return utils.Fail(c, txErr)
	}

	// notify only once the review is committed
	ec.notify(studentID, utils.NotifyTaskReviewed, fiber.Map{
		"enrollment_id": uint(enrollmentID),
		"block_id":      blockID,
		"status":        input.Status,
	})
	return c.JSON(response)
}

// access policies for enrollment mutations
const (
	studentOnly = "student"
	tutorOnly   = "tutor"
)

func authorizeEnrollment(actor models.Actor, e *models.Enrollment, policy string) error {
	switch policy {
	case studentOnly:
		if e.StudentID != actor.ID {
			return models.ErrPermissionDenied("not your enrollment")
		}
	case tutorOnly:
		if e.TutorID != actor.ID && !actor.IsAdmin() {
			return models.ErrPermissionDenied("only the enrollment's tutor can do this")
		}
	}
	return nil
}

// mutate runs an enrollment operation as an atomic read-modify-write: the
// enrollment row is locked for the duration, and the module is re-read inside
// the same transaction so cross-entity checks see current data.
func (ec *EnrollmentsController) mutate(c *fiber.Ctx, policy string, op func(models.Actor, *models.Enrollment, *models.Module) (interface{}, error)) error {
	enrollmentID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid enrollment ID")
	}

	response, txErr := ec.runMutation(middleware.Actor(c), enrollmentID, policy, op)
	if txErr != nil {
		var domainErr *models.DomainError
		if !errors.As(txErr, &domainErr) {
			ec.Logger.Printf("enrollment mutation failed: %v", txErr)
		}
		return utils.Fail(c, txErr)
	}

	return c.JSON(response)
}

func (ec *EnrollmentsController) runMutation(actor models.Actor, enrollmentID int, policy string, op func(models.Actor, *models.Enrollment, *models.Module) (interface{}, error)) (interface{}, error) {
	var response interface{}
	txErr := ec.DB.Transaction(func(tx *gorm.DB) error {
		var enrollment models.Enrollment
		if err := utils.WithRowLock(tx).First(&enrollment, enrollmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrNotFound("enrollment not found")
			}
			return err
		}
		if err := authorizeEnrollment(actor, &enrollment, policy); err != nil {
			return err
		}

		var module models.Module
		if err := tx.First(&module, enrollment.ModuleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrNotFound("module not found")
			}
			return err
		}

		out, err := op(actor, &enrollment, &module)
		if err != nil {
			return err
		}
		response = out
		return tx.Save(&enrollment).Error
	})
	return response, txErr
}

func (ec *EnrollmentsController) notify(target uint, kind string, payload fiber.Map) {
	if err := ec.Notifier.Notify(target, kind, payload); err != nil {
		ec.Logger.Printf("notification failed: %v", err)
	}
}
