package controllers

import (
	"errors"
	"log"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"lms/backend/config"
	"lms/backend/middleware"
	"lms/backend/models"
	"lms/backend/utils"
)

type ModulesController struct {
	DB       *gorm.DB
	Cfg      *config.Config
	Validate *validator.Validate
	Notifier utils.Notifier
	Logger   *log.Logger
}

func NewModulesController(db *gorm.DB, cfg *config.Config, notifier utils.Notifier, logger *log.Logger) *ModulesController {
	return &ModulesController{DB: db, Cfg: cfg, Validate: validator.New(), Notifier: notifier, Logger: logger}
}

type createModuleInput struct {
	Title       string               `json:"title" validate:"required"`
	Description string               `json:"description"`
	Objectives  []string             `json:"objectives"`
	Tags        []string             `json:"tags"`
	Difficulty  string               `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	Category    string               `json:"category"`
	Lessons     []models.LessonInput `json:"lessons"`
}

func (mc *ModulesController) CreateModule(c *fiber.Ctx) error {
	actor := middleware.Actor(c)

	var input createModuleInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if err := mc.Validate.Struct(input); err != nil {
		return utils.ValidationFailed(c, err)
	}

	lessons, err := models.NormalizeLessons(input.Lessons)
	if err != nil {
		return utils.Fail(c, err)
	}

	tutorID := actor.ID
	module := models.Module{
		Title:       input.Title,
		Description: input.Description,
		Objectives:  datatypes.NewJSONSlice(input.Objectives),
		Tags:        datatypes.NewJSONSlice(input.Tags),
		Difficulty:  input.Difficulty,
		Category:    input.Category,
		TutorID:     &tutorID,
		Status:      models.StatusDraft,
		Lessons:     datatypes.NewJSONSlice(lessons),
		History: datatypes.NewJSONSlice([]models.HistoryEntry{
			{Action: "created", PerformedBy: actor.ID},
		}),
	}

	if err := mc.DB.Create(&module).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return utils.Fail(c, models.ErrConflict("a module with this title already exists"))
		}
		return utils.InternalServerError(c, "Could not create module")
	}

	return c.JSON(fiber.Map{
		"message": "Module created",
		"module":  module,
	})
}

func (mc *ModulesController) UpdateModule(c *fiber.Ctx) error {
	var patch models.ModulePatch
	if err := c.BodyParser(&patch); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if err := mc.Validate.Struct(patch); err != nil {
		return utils.ValidationFailed(c, err)
	}

	return mc.transition(c, func(actor models.Actor, module *models.Module) error {
		return module.Edit(actor, patch)
	}, "Module updated")
}

func (mc *ModulesController) RequestApproval(c *fiber.Ctx) error {
	return mc.transition(c, func(actor models.Actor, module *models.Module) error {
		return module.RequestApproval(actor)
	}, "Approval requested")
}

func (mc *ModulesController) ApproveModule(c *fiber.Ctx) error {
	return mc.transition(c, func(actor models.Actor, module *models.Module) error {
		if err := module.Approve(actor); err != nil {
			return err
		}
		mc.notifyTutor(module, utils.NotifyModuleApproved)
		return nil
	}, "Module published")
}

func (mc *ModulesController) RejectModule(c *fiber.Ctx) error {
	return mc.transition(c, func(actor models.Actor, module *models.Module) error {
		if err := module.Reject(actor); err != nil {
			return err
		}
		mc.notifyTutor(module, utils.NotifyModuleRejected)
		return nil
	}, "Module rejected")
}

func (mc *ModulesController) RequestEdit(c *fiber.Ctx) error {
	var patch models.ModulePatch
	if err := c.BodyParser(&patch); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if err := mc.Validate.Struct(patch); err != nil {
		return utils.ValidationFailed(c, err)
	}

	return mc.transition(c, func(actor models.Actor, module *models.Module) error {
		return module.RequestEdit(actor, patch)
	}, "Edit request staged")
}

func (mc *ModulesController) ApproveEditRequest(c *fiber.Ctx) error {
	return mc.transition(c, func(actor models.Actor, module *models.Module) error {
		return module.ApproveEdit(actor)
	}, "Edit request applied")
}

func (mc *ModulesController) RequestDelete(c *fiber.Ctx) error {
	return mc.transition(c, func(actor models.Actor, module *models.Module) error {
		return module.RequestDelete(actor)
	}, "Delete requested")
}

func (mc *ModulesController) ApproveDeleteRequest(c *fiber.Ctx) error {
	return mc.transition(c, func(actor models.Actor, module *models.Module) error {
		return module.ApproveDelete(actor)
	}, "Module archived")
}

// transition runs a lifecycle operation as an atomic read-modify-write on the
// locked module row.
func (mc *ModulesController) transition(c *fiber.Ctx, op func(models.Actor, *models.Module) error, message string) error {
	actor := middleware.Actor(c)

	moduleID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid module ID")
	}

	var module models.Module
	txErr := mc.DB.Transaction(func(tx *gorm.DB) error {
		if err := utils.WithRowLock(tx).First(&module, moduleID).Error; err != nil {
			return err
		}
		if err := op(actor, &module); err != nil {
			return err
		}
		return tx.Save(&module).Error
	})

	if txErr != nil {
		if errors.Is(txErr, gorm.ErrRecordNotFound) {
			return utils.Fail(c, models.ErrNotFound("module not found"))
		}
		if errors.Is(txErr, gorm.ErrDuplicatedKey) {
			return utils.Fail(c, models.ErrConflict("a module with this title already exists"))
		}
		var domainErr *models.DomainError
		if errors.As(txErr, &domainErr) {
			return utils.Fail(c, domainErr)
		}
		mc.Logger.Printf("module transition failed: %v", txErr)
		return utils.Fail(c, txErr)
	}

	return c.JSON(fiber.Map{
		"message": message,
		"module":  module,
	})
}

func (mc *ModulesController) notifyTutor(module *models.Module, kind string) {
	if module.TutorID == nil {
		return
	}
	if err := mc.Notifier.Notify(*module.TutorID, kind, map[string]interface{}{
		"module_id": module.ID,
		"title":     module.Title,
	}); err != nil {
		mc.Logger.Printf("notification failed: %v", err)
	}
}

func (mc *ModulesController) GetPublishedModules(c *fiber.Ctx) error {
	query := mc.DB.Where("status = ?", models.StatusPublished)

	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if difficulty := c.Query("difficulty"); difficulty != "" {
		query = query.Where("difficulty = ?", difficulty)
	}

	var modules []models.Module
	if err := query.Find(&modules).Error; err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	var result []fiber.Map
	for _, module := range modules {
		result = append(result, fiber.Map{
			"id":          module.ID,
			"title":       module.Title,
			"description": module.Description,
			"difficulty":  module.Difficulty,
			"category":    module.Category,
			"tags":        module.Tags,
			"tutor_id":    module.TutorID,
			"lessons":     len(module.Lessons),
			"blocks":      module.TotalBlocks(),
		})
	}

	return c.JSON(result)
}

func (mc *ModulesController) GetMyModules(c *fiber.Ctx) error {
	actor := middleware.Actor(c)

	var modules []models.Module
	if err := mc.DB.Where("tutor_id = ?", actor.ID).Find(&modules).Error; err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	return c.JSON(modules)
}

func (mc *ModulesController) GetPendingModules(c *fiber.Ctx) error {
	var modules []models.Module
	err := mc.DB.Where("status IN ?", []string{models.StatusPending, models.StatusPublished}).
		Find(&modules).Error
	if err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	// Edit requests live inside the module document, so published modules are
	// filtered here rather than in SQL
	var awaiting []models.Module
	for _, module := range modules {
		if module.Status == models.StatusPending || module.PendingEdit.Data().IsRequested {
			awaiting = append(awaiting, module)
		}
	}

	return c.JSON(awaiting)
}

func (mc *ModulesController) GetModuleDetails(c *fiber.Ctx) error {
	actor := middleware.Actor(c)

	moduleID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid module ID")
	}

	var module models.Module
	if err := mc.DB.First(&module, moduleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Fail(c, models.ErrNotFound("module not found"))
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	// Unpublished content is visible to its owner and to admins only
	if module.Status != models.StatusPublished && !module.IsOwnedBy(actor) && !actor.IsAdmin() {
		return utils.Fail(c, models.ErrPermissionDenied("module is not published"))
	}

	return c.JSON(fiber.Map{"module": module})
}
