package controllers_test

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	resp, result := env.request(t, "POST", "/api/auth/register", "", map[string]string{
		"username": "newtutor",
		"email":    "newtutor@example.com",
		"password": "password123",
		"role":     "tutor",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, result["token"])
	assert.Equal(t, "tutor", result["user"].(map[string]interface{})["role"])

	resp, result = env.request(t, "POST", "/api/auth/login", "", map[string]string{
		"username": "newtutor",
		"password": "password123",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, result["token"])
}

func TestRegisterDefaultsToStudent(t *testing.T) {
	env := newTestEnv(t)

	resp, result := env.request(t, "POST", "/api/auth/register", "", map[string]string{
		"username": "plainuser",
		"email":    "plainuser@example.com",
		"password": "password123",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "student", result["user"].(map[string]interface{})["role"])
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.request(t, "POST", "/api/auth/register", "", map[string]string{
		"username": "sneaky",
		"email":    "sneaky@example.com",
		"password": "password123",
		"role":     "admin",
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "taken", "student")

	resp, _ := env.request(t, "POST", "/api/auth/register", "", map[string]string{
		"username": "taken",
		"email":    "other@example.com",
		"password": "password123",
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "someone", "student")

	resp, _ := env.request(t, "POST", "/api/auth/login", "", map[string]string{
		"username": "someone",
		"password": "wrongpassword",
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestGetProfile(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.createUser(t, "profileuser", "student")

	resp, result := env.request(t, "GET", "/api/user/profile", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "profileuser", result["username"])
	assert.Equal(t, "student", result["role"])
}

func TestProfileRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.request(t, "GET", "/api/user/profile", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
