package routes

import (
	"github.com/anjiri1684/course_certificates/handlers"
	"github.com/anjiri1684/course_certificates/middleware"
	"github.com/gofiber/fiber/v2"
)

func CertificateRoutes(app *fiber.App, h *handlers.CertificateHandler, secret string) {
	api := app.Group("/api/v1")

	certificates := api.Group("/certificates", middleware.Protected(secret))

	certificates.Post("/create", middleware.TeacherRequired(), h.CreateTemplate)
	certificates.Post("/issue/:course_id/:student_id", middleware.TeacherRequired(), h.IssueCertificate)
	certificates.Get("/course/:course_id", middleware.TeacherRequired(), h.ListCourseCertificates)

	certificates.Get("/student", middleware.StudentRequired(), h.ListMyCertificates)

	certificates.Get("/admin", middleware.AdminRequired(), h.AdminListCertificates)
}
