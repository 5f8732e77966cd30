package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anjiri1684/course_certificates/database/testdb"
	"github.com/anjiri1684/course_certificates/handlers"
	"github.com/anjiri1684/course_certificates/middleware"
	"github.com/anjiri1684/course_certificates/models"
	"github.com/anjiri1684/course_certificates/routes"
	"github.com/anjiri1684/course_certificates/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const testSecret = "handler-test-secret"

var credentialPattern = regexp.MustCompile(`^CERT-CS101-[A-F0-9]{6}$`)

type stubRenderer struct{}

func (stubRenderer) Render(_ context.Context, in services.RenderInput) (string, error) {
	return "https://cdn.example.com/certificates/" + in.CredentialID + ".pdf", nil
}

type countingNotifier struct {
	mu    sync.Mutex
	count int
}

func (n *countingNotifier) CertificateIssued(models.User, models.Course, models.IssuedCertificate) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.count++
}

type env struct {
	app      *fiber.App
	db       *gorm.DB
	notifier *countingNotifier

	teacher models.User
	student models.User
	admin   models.User
	course  models.Course

	teacherToken string
	studentToken string
	adminToken   string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testdb.New(t)
	e := &env{db: db, notifier: &countingNotifier{}}

	e.teacher = mustUser(t, db, "T1", models.RoleTeacher, "secret")
	e.student = mustUser(t, db, "S1", models.RoleStudent, "secret")
	e.admin = mustUser(t, db, "Admin", models.RoleAdmin, "admin-pass")

	e.course = models.Course{
		TeacherID:      e.teacher.ID,
		CourseName:     "Computer Science 101",
		CourseCode:     "CS101",
		InstructorName: "Alice",
	}
	require.NoError(t, db.Create(&e.course).Error)
	require.NoError(t, db.Create(&models.Enrollment{CourseID: e.course.ID, StudentID: e.student.ID, EnrolledAt: time.Now()}).Error)

	svc := services.NewCertificateService(db, stubRenderer{}, e.notifier, nil, "certificate_templates/default_template.html")
	e.app = fiber.New()
	routes.AuthRoutes(e.app, handlers.NewAuthHandler(db, testSecret, nil))
	routes.CertificateRoutes(e.app, handlers.NewCertificateHandler(svc, nil), testSecret)

	e.teacherToken = mustToken(t, e.teacher)
	e.studentToken = mustToken(t, e.student)
	e.adminToken = mustToken(t, e.admin)
	return e
}

func mustUser(t *testing.T, db *gorm.DB, name, role, password string) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := models.User{FullName: name, Email: strings.ToLower(name) + "-" + uuid.NewString()[:8] + "@example.com", Password: string(hash), Role: role}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func mustToken(t *testing.T, u models.User) string {
	t.Helper()
	token, err := middleware.IssueToken(testSecret, u.ID, u.Role)
	require.NoError(t, err)
	return token
}

func (e *env) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &out), string(data))
	}
	return resp.StatusCode, out
}

func (e *env) issuePath(courseID, studentID string) string {
	return "/api/v1/certificates/issue/" + courseID + "/" + studentID
}

func TestCertificateLifecycle(t *testing.T) {
	e := newEnv(t)

	status, body := e.do(t, fiber.MethodPost, "/api/v1/certificates/create", e.teacherToken, fiber.Map{
		"title":     "Completion",
		"course_id": e.course.ID.String(),
	})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "Certificate template created successfully", body["message"])
	tpl := body["certificate"].(map[string]interface{})
	assert.Equal(t, "Completion", tpl["title"])
	assert.Equal(t, e.course.ID.String(), tpl["course_id"])
	assert.NotEmpty(t, tpl["_id"])

	var course models.Course
	require.NoError(t, e.db.First(&course, "id = ?", e.course.ID).Error)
	assert.True(t, course.CertificateOffered)

	status, body = e.do(t, fiber.MethodPost, e.issuePath(e.course.ID.String(), e.student.ID.String()), e.teacherToken, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "Certificate issued successfully", body["message"])
	cert := body["certificate"].(map[string]interface{})
	assert.Equal(t, models.CertificateStatusAvailable, cert["status"])
	assert.Equal(t, tpl["_id"], cert["certificate_id"])
	assert.Regexp(t, credentialPattern, cert["credential_id"])
	assert.Equal(t, "https://cdn.example.com/certificates/"+cert["credential_id"].(string)+".pdf", cert["certificate_url"])
	assert.Equal(t, 1, e.notifier.count)

	var notifications int64
	require.NoError(t, e.db.Model(&models.Notification{}).Where("recipient_id = ?", e.student.ID).Count(&notifications).Error)
	assert.EqualValues(t, 1, notifications)

	status, body = e.do(t, fiber.MethodPost, e.issuePath(e.course.ID.String(), e.student.ID.String()), e.teacherToken, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Certificate already issued to this student", body["error"])

	status, body = e.do(t, fiber.MethodGet, "/api/v1/certificates/course/"+e.course.ID.String(), e.teacherToken, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	require.NotNil(t, body["certificate_template"])
	issued := body["issued_certificates"].([]interface{})
	require.Len(t, issued, 1)
	assert.Equal(t, "S1", issued[0].(map[string]interface{})["student_name"])

	status, body = e.do(t, fiber.MethodGet, "/api/v1/certificates/student", e.studentToken, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	mine := body["certificates"].([]interface{})
	require.Len(t, mine, 1)
	first := mine[0].(map[string]interface{})
	assert.Equal(t, "Completion", first["title"])
	assert.Equal(t, map[string]interface{}{"name": "Computer Science 101", "instructor": "Alice"}, first["course"])

	status, body = e.do(t, fiber.MethodGet, "/api/v1/certificates/admin", e.adminToken, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.EqualValues(t, 1, body["total"])
	assert.Len(t, body["certificates"], 1)
}

func TestCreateTemplateValidation(t *testing.T) {
	e := newEnv(t)

	status, body := e.do(t, fiber.MethodPost, "/api/v1/certificates/create", e.teacherToken, fiber.Map{
		"course_id": e.course.ID.String(),
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.NotEmpty(t, body["error"])

	status, _ = e.do(t, fiber.MethodPost, "/api/v1/certificates/create", e.teacherToken, fiber.Map{
		"title":     "Completion",
		"course_id": "not-an-id",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)

	other := mustUser(t, e.db, "T2", models.RoleTeacher, "secret")
	status, body = e.do(t, fiber.MethodPost, "/api/v1/certificates/create", mustToken(t, other), fiber.Map{
		"title":     "Completion",
		"course_id": e.course.ID.String(),
	})
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "Course not found or you don't have permission", body["error"])
}

func TestIssueCertificateErrors(t *testing.T) {
	e := newEnv(t)

	status, _ := e.do(t, fiber.MethodPost, e.issuePath("not-an-id", e.student.ID.String()), e.teacherToken, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body := e.do(t, fiber.MethodPost, e.issuePath(e.course.ID.String(), e.student.ID.String()), e.teacherToken, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "No certificate template found for this course", body["error"])

	status, _ = e.do(t, fiber.MethodPost, "/api/v1/certificates/create", e.teacherToken, fiber.Map{
		"title":     "Completion",
		"course_id": e.course.ID.String(),
	})
	require.Equal(t, fiber.StatusOK, status)

	status, body = e.do(t, fiber.MethodPost, e.issuePath(e.course.ID.String(), uuid.NewString()), e.teacherToken, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "Student not enrolled in this course", body["error"])

	status, _ = e.do(t, fiber.MethodPost, e.issuePath(e.course.ID.String(), e.student.ID.String()), e.studentToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestCourseCertificatesWithoutTemplate(t *testing.T) {
	e := newEnv(t)

	status, body := e.do(t, fiber.MethodGet, "/api/v1/certificates/course/"+e.course.ID.String(), e.teacherToken, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Nil(t, body["certificate_template"])
	assert.Empty(t, body["issued_certificates"])
}

func TestCertificateRoutesRequireAuth(t *testing.T) {
	e := newEnv(t)

	status, _ := e.do(t, fiber.MethodGet, "/api/v1/certificates/student", "", nil)
	assert.Contains(t, []int{fiber.StatusBadRequest, fiber.StatusUnauthorized}, status)

	status, _ = e.do(t, fiber.MethodGet, "/api/v1/certificates/student", "garbage", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = e.do(t, fiber.MethodGet, "/api/v1/certificates/admin", e.teacherToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestLogin(t *testing.T) {
	e := newEnv(t)

	status, body := e.do(t, fiber.MethodPost, "/api/v1/auth/login", "", fiber.Map{
		"email":    e.admin.Email,
		"password": "admin-pass",
	})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, models.RoleAdmin, body["role"])

	id, role, err := middleware.ParseToken(testSecret, body["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, e.admin.ID, id)
	assert.Equal(t, models.RoleAdmin, role)

	status, _ = e.do(t, fiber.MethodPost, "/api/v1/auth/login", "", fiber.Map{
		"email":    e.admin.Email,
		"password": "wrong",
	})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = e.do(t, fiber.MethodPost, "/api/v1/auth/login", "", fiber.Map{
		"email":    "nobody@example.com",
		"password": "whatever",
	})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = e.do(t, fiber.MethodPost, "/api/v1/auth/login", "", fiber.Map{"email": "not-an-email"})
	assert.Equal(t, fiber.StatusBadRequest, status)
}
