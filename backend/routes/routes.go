package routes

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"lms/backend/config"
	"lms/backend/controllers"
	"lms/backend/middleware"
	"lms/backend/models"
	"lms/backend/utils"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, cfg *config.Config, logger *log.Logger) {
	notifier := utils.NewConsoleNotifier(logger)

	// Auth routes
	authController := controllers.NewAuthController(db, cfg)
	app.Post("/api/auth/register", authController.Register)
	app.Post("/api/auth/login", authController.Login)

	// Middleware
	authMiddleware := middleware.AuthMiddleware(cfg)
	tutorMiddleware := middleware.RequireRole(models.RoleTutor)
	adminMiddleware := middleware.RequireRole(models.RoleAdmin)
	studentMiddleware := middleware.RequireRole(models.RoleStudent)

	// User routes
	userController := controllers.NewUserController(db, cfg, logger)
	app.Get("/api/user/profile", authMiddleware, userController.GetProfile)
	app.Put("/api/user/profile", authMiddleware, userController.UpdateProfile)

	// Module routes
	modulesController := controllers.NewModulesController(db, cfg, notifier, logger)
	modules := app.Group("/api/modules", authMiddleware)
	modules.Get("/", modulesController.GetPublishedModules)
	modules.Get("/mine", tutorMiddleware, modulesController.GetMyModules)
	modules.Get("/:id", modulesController.GetModuleDetails)
	modules.Post("/", tutorMiddleware, modulesController.CreateModule)
	modules.Put("/:id", tutorMiddleware, modulesController.UpdateModule)
	modules.Post("/:id/request-approval", tutorMiddleware, modulesController.RequestApproval)
	modules.Post("/:id/request-edit", tutorMiddleware, modulesController.RequestEdit)
	modules.Post("/:id/request-delete", tutorMiddleware, modulesController.RequestDelete)

	// Admin moderation routes
	admin := app.Group("/api/admin", authMiddleware, adminMiddleware)
	admin.Get("/modules/pending", modulesController.GetPendingModules)
	admin.Post("/modules/:id/approve", modulesController.ApproveModule)
	admin.Post("/modules/:id/reject", modulesController.RejectModule)
	admin.Post("/modules/:id/approve-edit", modulesController.ApproveEditRequest)
	admin.Post("/modules/:id/approve-delete", modulesController.ApproveDeleteRequest)
	admin.Delete("/users/:id", userController.DeleteUser)

	// Enrollment routes
	enrollmentsController := controllers.NewEnrollmentsController(db, cfg, notifier, logger)
	enrollments := app.Group("/api/enrollments", authMiddleware)
	enrollments.Post("/", studentMiddleware, enrollmentsController.Enroll)
	enrollments.Get("/", studentMiddleware, enrollmentsController.GetMyEnrollments)
	enrollments.Get("/roster", tutorMiddleware, enrollmentsController.GetTutorRoster)
	enrollments.Post("/:id/blocks/:blockId/complete", enrollmentsController.RecordActivity)
	enrollments.Get("/:id/blocks/:blockId/quiz", enrollmentsController.FetchQuizState)
	enrollments.Post("/:id/blocks/:blockId/quiz", enrollmentsController.SubmitQuiz)
	enrollments.Post("/:id/blocks/:blockId/task", enrollmentsController.SubmitTask)
	enrollments.Post("/:id/blocks/:blockId/review", enrollmentsController.ReviewTask)
	app.Get("/api/modules/:id/enrollments", authMiddleware, enrollmentsController.GetModuleEnrollments)

	// Journal routes
	journalController := controllers.NewJournalController(db, cfg, logger)
	enrollments.Get("/:id/journal", journalController.GetJournal)
	enrollments.Post("/:id/journal", journalController.CreateDailyJournal)
	enrollments.Put("/:id/journal/:entryId", journalController.UpdateDailyJournal)
	enrollments.Delete("/:id/journal/:entryId", journalController.DeleteDailyJournal)
	enrollments.Post("/:id/journal/:entryId/feedback", journalController.AddJournalFeedback)
}
