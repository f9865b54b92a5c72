package controllers_test

import (
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/backend/models"
)

func journalBody(suffix string) map[string]string {
	return map[string]string{
		"what_i_know":        "I understand interfaces " + suffix,
		"what_i_changed":     "I refactored my handlers " + suffix,
		"what_challenged_me": "Generics syntax threw me " + suffix,
	}
}

func (env *testEnv) journalFixture(t *testing.T) (models.Enrollment, string, string) {
	t.Helper()
	_, tutorToken := env.createUser(t, "tutor1", "tutor")
	_, adminToken := env.createUser(t, "admin1", "admin")
	_, studentToken := env.createUser(t, "student1", "student")

	module := env.createPublishedModule(t, "Journaled", tutorToken, adminToken)
	e := env.enrollStudent(t, studentToken, module.ID)
	return e, studentToken, tutorToken
}

func TestJournalCreateAndSameDayConflict(t *testing.T) {
	env := newTestEnv(t)
	e, studentToken, _ := env.journalFixture(t)

	resp, result := env.request(t, "POST", journalPath(e.ID, ""), studentToken, journalBody("today"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	entry := result["entry"].(map[string]interface{})
	assert.NotEmpty(t, entry["id"])

	// one entry per calendar day
	resp, result = env.request(t, "POST", journalPath(e.ID, ""), studentToken, journalBody("again"))
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, models.CodeConflict, result["code"])
}

func TestJournalShortFieldsRejected(t *testing.T) {
	env := newTestEnv(t)
	e, studentToken, _ := env.journalFixture(t)

	resp, _ := env.request(t, "POST", journalPath(e.ID, ""), studentToken, map[string]string{
		"what_i_know":        "abc",
		"what_i_changed":     "long enough text",
		"what_challenged_me": "long enough text",
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestJournalUpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	e, studentToken, _ := env.journalFixture(t)

	_, result := env.request(t, "POST", journalPath(e.ID, ""), studentToken, journalBody("v1"))
	entryID := result["entry"].(map[string]interface{})["id"].(string)

	resp, _ := env.request(t, "PUT", journalPath(e.ID, entryID), studentToken, journalBody("v2"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	reloaded := env.reloadEnrollment(t, e.ID)
	assert.Contains(t, reloaded.DailyJournals[0].WhatIKnow, "v2")

	resp, _ = env.request(t, "DELETE", journalPath(e.ID, entryID), studentToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, env.reloadEnrollment(t, e.ID).DailyJournals)
}

func TestJournalEditWindowExpires(t *testing.T) {
	env := newTestEnv(t)
	e, studentToken, _ := env.journalFixture(t)

	_, result := env.request(t, "POST", journalPath(e.ID, ""), studentToken, journalBody("old"))
	entryID := result["entry"].(map[string]interface{})["id"].(string)

	// age the entry past the 24h window directly in storage
	reloaded := env.reloadEnrollment(t, e.ID)
	reloaded.DailyJournals[0].Date = time.Now().Add(-25 * time.Hour)
	require.NoError(t, env.db.Save(&reloaded).Error)

	resp, body := env.request(t, "PUT", journalPath(e.ID, entryID), studentToken, journalBody("late"))
	assert.Equal(t, fiber.StatusGone, resp.StatusCode)
	assert.Equal(t, models.CodeExpired, body["code"])

	resp, body = env.request(t, "DELETE", journalPath(e.ID, entryID), studentToken, nil)
	assert.Equal(t, fiber.StatusGone, resp.StatusCode)
	assert.Equal(t, models.CodeExpired, body["code"])
}

func TestJournalClosedOnPassedEnrollment(t *testing.T) {
	env := newTestEnv(t)
	e, studentToken, _ := env.journalFixture(t)

	reloaded := env.reloadEnrollment(t, e.ID)
	reloaded.Passed = true
	require.NoError(t, env.db.Save(&reloaded).Error)

	resp, result := env.request(t, "POST", journalPath(e.ID, ""), studentToken, journalBody("late"))
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, models.CodePermissionDenied, result["code"])
}

func TestJournalTutorViewAndFeedback(t *testing.T) {
	env := newTestEnv(t)
	e, studentToken, tutorToken := env.journalFixture(t)

	_, result := env.request(t, "POST", journalPath(e.ID, ""), studentToken, journalBody("v1"))
	entryID := result["entry"].(map[string]interface{})["id"].(string)

	// tutor read-only view
	resp, result := env.request(t, "GET", journalPath(e.ID, ""), tutorToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, result["journals"], 1)

	// tutor cannot write entries
	resp, _ = env.request(t, "POST", journalPath(e.ID, ""), tutorToken, journalBody("tutor"))
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// but can leave feedback
	resp, _ = env.request(t, "POST", journalPath(e.ID, entryID+"/feedback"), tutorToken, map[string]string{
		"comment": "good reflection",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	reloaded := env.reloadEnrollment(t, e.ID)
	require.NotNil(t, reloaded.DailyJournals[0].TutorFeedback)
	assert.Equal(t, "good reflection", reloaded.DailyJournals[0].TutorFeedback.Comment)
}

func TestJournalOtherStudentBlocked(t *testing.T) {
	env := newTestEnv(t)
	e, studentToken, _ := env.journalFixture(t)
	_, intruderToken := env.createUser(t, "student2", "student")

	env.request(t, "POST", journalPath(e.ID, ""), studentToken, journalBody("mine"))

	resp, _ := env.request(t, "GET", journalPath(e.ID, ""), intruderToken, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, _ = env.request(t, "POST", journalPath(e.ID, ""), intruderToken, journalBody("theirs"))
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
