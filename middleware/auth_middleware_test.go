package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/anjiri1684/course_certificates/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newTestApp() *fiber.App {
	app := fiber.New()
	app.Get("/teacher", Protected(testSecret), TeacherRequired(), func(c *fiber.Ctx) error {
		id, role, err := CurrentUser(c)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"id": id.String(), "role": role})
	})
	app.Get("/admin", Protected(testSecret), AdminRequired(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/student", Protected(testSecret), StudentRequired(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func request(t *testing.T, app *fiber.App, path, token string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestRoleGuards(t *testing.T) {
	app := newTestApp()

	teacher, err := IssueToken(testSecret, uuid.New(), models.RoleTeacher)
	require.NoError(t, err)
	student, err := IssueToken(testSecret, uuid.New(), models.RoleStudent)
	require.NoError(t, err)
	admin, err := IssueToken(testSecret, uuid.New(), models.RoleAdmin)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, request(t, app, "/teacher", teacher))
	assert.Equal(t, fiber.StatusForbidden, request(t, app, "/teacher", student))
	assert.Equal(t, fiber.StatusNoContent, request(t, app, "/student", student))
	assert.Equal(t, fiber.StatusForbidden, request(t, app, "/student", admin))
	assert.Equal(t, fiber.StatusNoContent, request(t, app, "/admin", admin))
	assert.Equal(t, fiber.StatusForbidden, request(t, app, "/admin", teacher))
}

func TestProtectedRejectsBadTokens(t *testing.T) {
	app := newTestApp()

	missing := request(t, app, "/teacher", "")
	assert.Contains(t, []int{fiber.StatusBadRequest, fiber.StatusUnauthorized}, missing)

	forged, err := IssueToken("another-secret", uuid.New(), models.RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, request(t, app, "/teacher", forged))
}

func TestParseToken(t *testing.T) {
	id := uuid.New()
	token, err := IssueToken(testSecret, id, models.RoleStudent)
	require.NoError(t, err)

	gotID, role, err := ParseToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.Equal(t, models.RoleStudent, role)

	_, _, err = ParseToken("wrong", token)
	assert.Error(t, err)
	_, _, err = ParseToken(testSecret, "garbage")
	assert.Error(t, err)
}
