package handlers

import (
	"errors"
	"strings"

	"github.com/anjiri1684/course_certificates/logger"
	"github.com/anjiri1684/course_certificates/middleware"
	"github.com/anjiri1684/course_certificates/services"
	"github.com/anjiri1684/course_certificates/utils"
	"github.com/gofiber/fiber/v2"
)

type CertificateHandler struct {
	svc *services.CertificateService
	log *logger.Logger
}

func NewCertificateHandler(svc *services.CertificateService, log *logger.Logger) *CertificateHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &CertificateHandler{svc: svc, log: log.With("handler", "certificates")}
}

type CreateTemplateRequest struct {
	Title       string  `json:"title" form:"title" validate:"required,max=255"`
	CourseID    string  `json:"course_id" form:"course_id" validate:"required"`
	Description *string `json:"description" form:"description"`
}

func (h *CertificateHandler) fail(c *fiber.Ctx, err error) error {
	var status int
	var message string
	switch {
	case errors.Is(err, utils.ErrInvalidID):
		status, message = fiber.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrCourseNotFound):
		status, message = fiber.StatusNotFound, "Course not found or you don't have permission"
	case errors.Is(err, services.ErrTemplateNotFound):
		status, message = fiber.StatusNotFound, "No certificate template found for this course"
	case errors.Is(err, services.ErrNotEnrolled):
		status, message = fiber.StatusNotFound, "Student not enrolled in this course"
	case errors.Is(err, services.ErrStudentNotFound):
		status, message = fiber.StatusNotFound, "Student not found"
	case errors.Is(err, services.ErrAlreadyIssued):
		status, message = fiber.StatusBadRequest, "Certificate already issued to this student"
	default:
		h.log.Error("certificate request failed", "path", c.Path(), "method", c.Method(), "error", err)
		status, message = fiber.StatusInternalServerError, "Failed to process certificate request"
	}
	return c.Status(status).JSON(fiber.Map{"error": message})
}

// CreateTemplate handles POST /create.
func (h *CertificateHandler) CreateTemplate(c *fiber.Ctx) error {
	teacherID, _, err := middleware.CurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
	}

	var req CreateTemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	courseID, err := utils.ParseID(req.CourseID)
	if err != nil {
		return h.fail(c, err)
	}
	if req.Description != nil && strings.TrimSpace(*req.Description) == "" {
		req.Description = nil
	}

	tpl, err := h.svc.DefineTemplate(c.UserContext(), teacherID, courseID, req.Title, req.Description)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(fiber.Map{
		"message":     "Certificate template created successfully",
		"certificate": tpl,
	})
}

// IssueCertificate handles POST /issue/:course_id/:student_id.
func (h *CertificateHandler) IssueCertificate(c *fiber.Ctx) error {
	teacherID, _, err := middleware.CurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
	}
	courseID, err := utils.ParseID(c.Params("course_id"))
	if err != nil {
		return h.fail(c, err)
	}
	studentID, err := utils.ParseID(c.Params("student_id"))
	if err != nil {
		return h.fail(c, err)
	}

	cert, err := h.svc.IssueCertificate(c.UserContext(), teacherID, courseID, studentID)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(fiber.Map{
		"message":     "Certificate issued successfully",
		"certificate": cert,
	})
}

func (h *CertificateHandler) ListMyCertificates(c *fiber.Ctx) error {
	studentID, _, err := middleware.CurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
	}

	certs, err := h.svc.ListStudentCertificates(c.UserContext(), studentID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"certificates": certs})
}

func (h *CertificateHandler) ListCourseCertificates(c *fiber.Ctx) error {
	teacherID, _, err := middleware.CurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
	}
	courseID, err := utils.ParseID(c.Params("course_id"))
	if err != nil {
		return h.fail(c, err)
	}

	listing, err := h.svc.ListCourseCertificates(c.UserContext(), teacherID, courseID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(listing)
}

func (h *CertificateHandler) AdminListCertificates(c *fiber.Ctx) error {
	listing, err := h.svc.ListAllCertificates(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(listing)
}
