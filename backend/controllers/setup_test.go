package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"lms/backend/config"
	"lms/backend/models"
	"lms/backend/routes"
	"lms/backend/utils"
)

type testEnv struct {
	app *fiber.App
	db  *gorm.DB
	cfg *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env, _ := newTestEnvWithLog(t)
	return env
}

// newTestEnvWithLog also exposes the service log, for tests that assert on
// emitted notifications.
func newTestEnvWithLog(t *testing.T) (*testEnv, *bytes.Buffer) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a single connection keeps every request on the same in-memory database
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Module{},
		&models.Enrollment{},
	))

	cfg := &config.Config{JWTSecret: "testsecret", ServerPort: "8080"}
	logBuf := &bytes.Buffer{}
	logger := log.New(logBuf, "", 0)

	app := fiber.New()
	routes.SetupRoutes(app, db, cfg, logger)

	return &testEnv{app: app, db: db, cfg: cfg}, logBuf
}

// createUser inserts a user directly and returns it with a valid token.
func (env *testEnv) createUser(t *testing.T, username, role string) (models.User, string) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	require.NoError(t, err)

	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		Role:         role,
	}
	require.NoError(t, env.db.Create(&user).Error)

	token, err := utils.GenerateJWTToken(user.ID, user.Role, env.cfg)
	require.NoError(t, err)
	return user, token
}

// request performs an HTTP call against the test app and decodes the JSON body.
func (env *testEnv) request(t *testing.T, method, path, token string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(jsonData)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	return resp, result
}

// sampleLessons is the three-block module used across tests: markdown, a
// two-question quiz, and a task.
func sampleLessons() []map[string]interface{} {
	return []map[string]interface{}{
		{
			"title": "Lesson one",
			"blocks": []map[string]interface{}{
				{"type": "markdown", "text": "read this first"},
				{"type": "mcq", "questions": []map[string]interface{}{
					{"question_text": "q1", "options": []string{"a", "b"}, "correct_option": 0, "max_score": 1},
					{"question_text": "q2", "options": []string{"a", "b"}, "correct_option": 1, "max_score": 1},
				}},
				{"type": "task", "instructions": "submit a summary"},
			},
		},
	}
}

// createPublishedModule drives a module through create → request approval →
// admin approve, and returns it reloaded from the database.
func (env *testEnv) createPublishedModule(t *testing.T, title, tutorToken, adminToken string) models.Module {
	t.Helper()

	resp, _ := env.request(t, "POST", "/api/modules", tutorToken, map[string]interface{}{
		"title":   title,
		"lessons": sampleLessons(),
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var module models.Module
	require.NoError(t, env.db.Where("title = ?", title).First(&module).Error)

	resp, _ = env.request(t, "POST", modulePath(module.ID, "request-approval"), tutorToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp, _ = env.request(t, "POST", adminModulePath(module.ID, "approve"), adminToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.NoError(t, env.db.First(&module, module.ID).Error)
	return module
}

func modulePath(id uint, action string) string {
	if action == "" {
		return fmt.Sprintf("/api/modules/%d", id)
	}
	return fmt.Sprintf("/api/modules/%d/%s", id, action)
}

func adminModulePath(id uint, action string) string {
	return fmt.Sprintf("/api/admin/modules/%d/%s", id, action)
}

func blockPath(enrollmentID uint, blockID, action string) string {
	return fmt.Sprintf("/api/enrollments/%d/blocks/%s/%s", enrollmentID, blockID, action)
}

func journalPath(enrollmentID uint, rest string) string {
	if rest == "" {
		return fmt.Sprintf("/api/enrollments/%d/journal", enrollmentID)
	}
	return fmt.Sprintf("/api/enrollments/%d/journal/%s", enrollmentID, rest)
}

func (env *testEnv) reloadEnrollment(t *testing.T, id uint) models.Enrollment {
	t.Helper()
	var e models.Enrollment
	require.NoError(t, env.db.First(&e, id).Error)
	return e
}
