package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/anjiri1684/course_certificates/logger"
	"github.com/anjiri1684/course_certificates/models"
	"github.com/anjiri1684/course_certificates/utils"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrCourseNotFound   = errors.New("course not found or not owned by caller")
	ErrTemplateNotFound = errors.New("no certificate template for course")
	ErrNotEnrolled      = errors.New("student not enrolled in course")
	ErrAlreadyIssued    = errors.New("certificate already issued to student")
	ErrStudentNotFound  = errors.New("student not found")
)

// IssuanceNotifier delivers out-of-band news of an issued certificate.
// Implementations must not block the caller.
type IssuanceNotifier interface {
	CertificateIssued(student models.User, course models.Course, cert models.IssuedCertificate)
}

type CertificateService struct {
	db           *gorm.DB
	renderer     Renderer
	notifier     IssuanceNotifier
	log          *logger.Logger
	templatePath string

	now             func() time.Time
	newCredentialID func(courseCode string) string
}

func NewCertificateService(db *gorm.DB, renderer Renderer, notifier IssuanceNotifier, log *logger.Logger, templatePath string) *CertificateService {
	if log == nil {
		log = logger.Nop()
	}
	return &CertificateService{
		db:              db,
		renderer:        renderer,
		notifier:        notifier,
		log:             log.With("service", "CertificateService"),
		templatePath:    templatePath,
		now:             func() time.Time { return time.Now().UTC() },
		newCredentialID: utils.NewCredentialID,
	}
}

type TemplateView struct {
	ID          string  `json:"_id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	CourseID    string  `json:"course_id"`
	Template    string  `json:"template"`
}

type IssuedCertificateView struct {
	ID             string    `json:"_id"`
	CertificateID  string    `json:"certificate_id"`
	StudentID      string    `json:"student_id"`
	CourseID       string    `json:"course_id"`
	IssueDate      time.Time `json:"issue_date"`
	CompletionDate time.Time `json:"completion_date"`
	CredentialID   string    `json:"credential_id"`
	CertificateURL string    `json:"certificate_url"`
	Status         string    `json:"status"`
}

type CourseSummary struct {
	Name       string `json:"name"`
	Instructor string `json:"instructor"`
}

type StudentCertificateView struct {
	IssuedCertificateView
	Course      CourseSummary `json:"course"`
	Title       string        `json:"title"`
	Description *string       `json:"description"`
}

type CourseCertificateView struct {
	IssuedCertificateView
	StudentName string `json:"student_name"`
}

type CourseCertificates struct {
	Template *TemplateView          `json:"certificate_template"`
	Issued   []CourseCertificateView `json:"issued_certificates"`
}

type CertificateListing struct {
	Total        int64                   `json:"total"`
	Certificates []IssuedCertificateView `json:"certificates"`
}

func newTemplateView(t models.CertificateTemplate) TemplateView {
	return TemplateView{
		ID:          t.ID.String(),
		Title:       t.Title,
		Description: t.Description,
		CourseID:    t.CourseID.String(),
		Template:    t.Template,
	}
}

func newIssuedCertificateView(c models.IssuedCertificate) IssuedCertificateView {
	return IssuedCertificateView{
		ID:             c.ID.String(),
		CertificateID:  c.CertificateID.String(),
		StudentID:      c.StudentID.String(),
		CourseID:       c.CourseID.String(),
		IssueDate:      c.IssueDate,
		CompletionDate: c.CompletionDate,
		CredentialID:   c.CredentialID,
		CertificateURL: c.CertificateURL,
		Status:         c.Status,
	}
}

func (s *CertificateService) ownedCourse(ctx context.Context, courseID, teacherID uuid.UUID) (models.Course, error) {
	var course models.Course
	err := s.db.WithContext(ctx).
		Where("id = ? AND teacher_id = ?", courseID, teacherID).
		First(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return course, ErrCourseNotFound
	}
	if err != nil {
		return course, fmt.Errorf("load course: %w", err)
	}
	return course, nil
}

func (s *CertificateService) courseTemplate(ctx context.Context, courseID uuid.UUID) (*models.CertificateTemplate, error) {
	var tpl models.CertificateTemplate
	err := s.db.WithContext(ctx).Where("course_id = ?", courseID).First(&tpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load certificate template: %w", err)
	}
	return &tpl, nil
}

// DefineTemplate creates the course's certificate template, or updates the
// title and description of the existing one. The asset path is only set on
// creation.
func (s *CertificateService) DefineTemplate(ctx context.Context, teacherID, courseID uuid.UUID, title string, description *string) (TemplateView, error) {
	if _, err := s.ownedCourse(ctx, courseID, teacherID); err != nil {
		return TemplateView{}, err
	}

	db := s.db.WithContext(ctx)
	now := s.now()

	tpl, err := s.courseTemplate(ctx, courseID)
	if err != nil {
		return TemplateView{}, err
	}

	created := false
	if tpl == nil {
		fresh := models.CertificateTemplate{
			CourseID:    courseID,
			Title:       title,
			Description: description,
			Template:    s.templatePath,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		err = db.Create(&fresh).Error
		switch {
		case err == nil:
			tpl, created = &fresh, true
		case errors.Is(err, gorm.ErrDuplicatedKey):
			// lost a race with a concurrent definition; update theirs
			tpl, err = s.courseTemplate(ctx, courseID)
			if err != nil {
				return TemplateView{}, err
			}
			if tpl == nil {
				return TemplateView{}, fmt.Errorf("certificate template for course %s vanished", courseID)
			}
		default:
			return TemplateView{}, fmt.Errorf("create certificate template: %w", err)
		}
	}

	if !created {
		err = db.Model(tpl).Updates(map[string]interface{}{
			"title":       title,
			"description": description,
			"updated_at":  now,
		}).Error
		if err != nil {
			return TemplateView{}, fmt.Errorf("update certificate template: %w", err)
		}
		tpl.Title = title
		tpl.Description = description
		tpl.UpdatedAt = now
	}

	err = db.Model(&models.Course{}).Where("id = ?", courseID).Updates(map[string]interface{}{
		"certificate_offered":     true,
		"certificate_title":       title,
		"certificate_description": description,
	}).Error
	if err != nil {
		return TemplateView{}, fmt.Errorf("flag course certificate: %w", err)
	}

	s.log.Info("certificate template defined", "course_id", courseID, "template_id", tpl.ID)
	return newTemplateView(*tpl), nil
}

// IssueCertificate awards the course certificate to an enrolled student.
// The artifact is rendered before anything is written, so a render failure
// leaves no record behind.
func (s *CertificateService) IssueCertificate(ctx context.Context, teacherID, courseID, studentID uuid.UUID) (IssuedCertificateView, error) {
	db := s.db.WithContext(ctx)

	course, err := s.ownedCourse(ctx, courseID, teacherID)
	if err != nil {
		return IssuedCertificateView{}, err
	}

	tpl, err := s.courseTemplate(ctx, courseID)
	if err != nil {
		return IssuedCertificateView{}, err
	}
	if tpl == nil {
		return IssuedCertificateView{}, ErrTemplateNotFound
	}

	var enrolled int64
	if err := db.Model(&models.Enrollment{}).
		Where("course_id = ? AND student_id = ?", courseID, studentID).
		Count(&enrolled).Error; err != nil {
		return IssuedCertificateView{}, fmt.Errorf("check enrollment: %w", err)
	}
	if enrolled == 0 {
		return IssuedCertificateView{}, ErrNotEnrolled
	}

	issued, err := s.alreadyIssued(ctx, tpl.ID, studentID)
	if err != nil {
		return IssuedCertificateView{}, err
	}
	if issued {
		return IssuedCertificateView{}, ErrAlreadyIssued
	}

	var student models.User
	if err := db.First(&student, "id = ?", studentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return IssuedCertificateView{}, ErrStudentNotFound
		}
		return IssuedCertificateView{}, fmt.Errorf("load student: %w", err)
	}

	credentialID := s.newCredentialID(course.CourseCode)
	issuedAt := s.now()

	certificateURL, err := s.renderer.Render(ctx, RenderInput{
		StudentName:      student.FullName,
		CourseName:       course.CourseName,
		CertificateTitle: tpl.Title,
		InstructorName:   course.InstructorName,
		IssueDate:        issuedAt,
		CredentialID:     credentialID,
		TemplatePath:     tpl.Template,
	})
	if err != nil {
		s.log.Error("certificate rendering failed", "course_id", courseID, "student_id", studentID, "error", err)
		return IssuedCertificateView{}, fmt.Errorf("generate certificate: %w", err)
	}

	record := models.IssuedCertificate{
		CertificateID:  tpl.ID,
		StudentID:      studentID,
		CourseID:       courseID,
		IssueDate:      issuedAt,
		CompletionDate: issuedAt,
		CredentialID:   credentialID,
		CertificateURL: certificateURL,
		Status:         models.CertificateStatusAvailable,
	}
	if err := db.Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if dup, checkErr := s.alreadyIssued(ctx, tpl.ID, studentID); checkErr == nil && dup {
				return IssuedCertificateView{}, ErrAlreadyIssued
			}
		}
		return IssuedCertificateView{}, fmt.Errorf("save issued certificate: %w", err)
	}

	s.recordNotification(ctx, teacherID, course, record)
	if s.notifier != nil {
		s.notifier.CertificateIssued(student, course, record)
	}

	s.log.Info("certificate issued",
		"certificate_id", record.ID,
		"course_id", courseID,
		"student_id", studentID,
		"credential_id", credentialID,
	)
	return newIssuedCertificateView(record), nil
}

func (s *CertificateService) alreadyIssued(ctx context.Context, templateID, studentID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.IssuedCertificate{}).
		Where("certificate_id = ? AND student_id = ?", templateID, studentID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check issued certificate: %w", err)
	}
	return count > 0, nil
}

// recordNotification stores the in-app notification. A failure here does not
// undo the issuance.
func (s *CertificateService) recordNotification(ctx context.Context, senderID uuid.UUID, course models.Course, cert models.IssuedCertificate) {
	payload, err := json.Marshal(map[string]string{
		"certificate_id":  cert.ID.String(),
		"credential_id":   cert.CredentialID,
		"certificate_url": cert.CertificateURL,
	})
	if err != nil {
		s.log.Warn("failed to encode notification payload", "certificate_id", cert.ID, "error", err)
		payload = []byte("{}")
	}

	courseID := course.ID
	notification := models.Notification{
		Title:       "Certificate Issued",
		Message:     fmt.Sprintf("You have been issued a certificate for completing '%s'", course.CourseName),
		Type:        models.NotificationTypeCertificate,
		RecipientID: cert.StudentID,
		SenderID:    senderID,
		CourseID:    &courseID,
		Read:        false,
		Data:        datatypes.JSON(payload),
		CreatedAt:   s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		s.log.Warn("failed to record certificate notification", "certificate_id", cert.ID, "student_id", cert.StudentID, "error", err)
	}
}

// ListStudentCertificates returns the caller's certificates. Certificates
// whose course or template has gone away are left out.
func (s *CertificateService) ListStudentCertificates(ctx context.Context, studentID uuid.UUID) ([]StudentCertificateView, error) {
	db := s.db.WithContext(ctx)

	var certs []models.IssuedCertificate
	if err := db.Where("student_id = ?", studentID).Order("issue_date asc").Find(&certs).Error; err != nil {
		return nil, fmt.Errorf("list student certificates: %w", err)
	}

	courseIDs := make([]uuid.UUID, 0, len(certs))
	templateIDs := make([]uuid.UUID, 0, len(certs))
	for _, c := range certs {
		courseIDs = append(courseIDs, c.CourseID)
		templateIDs = append(templateIDs, c.CertificateID)
	}

	courses := make(map[uuid.UUID]models.Course)
	templates := make(map[uuid.UUID]models.CertificateTemplate)
	if len(certs) > 0 {
		var courseRows []models.Course
		if err := db.Where("id IN ?", courseIDs).Find(&courseRows).Error; err != nil {
			return nil, fmt.Errorf("load courses: %w", err)
		}
		for _, c := range courseRows {
			courses[c.ID] = c
		}

		var templateRows []models.CertificateTemplate
		if err := db.Where("id IN ?", templateIDs).Find(&templateRows).Error; err != nil {
			return nil, fmt.Errorf("load certificate templates: %w", err)
		}
		for _, t := range templateRows {
			templates[t.ID] = t
		}
	}

	out := make([]StudentCertificateView, 0, len(certs))
	for _, c := range certs {
		course, okCourse := courses[c.CourseID]
		tpl, okTemplate := templates[c.CertificateID]
		if !okCourse || !okTemplate {
			continue
		}
		out = append(out, StudentCertificateView{
			IssuedCertificateView: newIssuedCertificateView(c),
			Course:                CourseSummary{Name: course.CourseName, Instructor: course.InstructorName},
			Title:                 tpl.Title,
			Description:           tpl.Description,
		})
	}
	return out, nil
}

// ListCourseCertificates returns the course template, or nil when none is
// defined, and every certificate issued for the course whose student still
// exists.
func (s *CertificateService) ListCourseCertificates(ctx context.Context, teacherID, courseID uuid.UUID) (CourseCertificates, error) {
	result := CourseCertificates{Issued: []CourseCertificateView{}}

	if _, err := s.ownedCourse(ctx, courseID, teacherID); err != nil {
		return result, err
	}

	tpl, err := s.courseTemplate(ctx, courseID)
	if err != nil {
		return result, err
	}
	if tpl == nil {
		return result, nil
	}
	view := newTemplateView(*tpl)
	result.Template = &view

	db := s.db.WithContext(ctx)

	var certs []models.IssuedCertificate
	if err := db.Where("course_id = ?", courseID).Order("issue_date asc").Find(&certs).Error; err != nil {
		return result, fmt.Errorf("list course certificates: %w", err)
	}
	if len(certs) == 0 {
		return result, nil
	}

	studentIDs := make([]uuid.UUID, 0, len(certs))
	for _, c := range certs {
		studentIDs = append(studentIDs, c.StudentID)
	}
	var studentRows []models.User
	if err := db.Where("id IN ?", studentIDs).Find(&studentRows).Error; err != nil {
		return result, fmt.Errorf("load students: %w", err)
	}
	students := make(map[uuid.UUID]models.User, len(studentRows))
	for _, u := range studentRows {
		students[u.ID] = u
	}

	for _, c := range certs {
		student, ok := students[c.StudentID]
		if !ok {
			continue
		}
		result.Issued = append(result.Issued, CourseCertificateView{
			IssuedCertificateView: newIssuedCertificateView(c),
			StudentName:           student.FullName,
		})
	}
	return result, nil
}

// ListAllCertificates is the unpaginated administrative view.
func (s *CertificateService) ListAllCertificates(ctx context.Context) (CertificateListing, error) {
	listing := CertificateListing{Certificates: []IssuedCertificateView{}}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.IssuedCertificate{}).Count(&listing.Total).Error; err != nil {
			return err
		}
		var certs []models.IssuedCertificate
		if err := tx.Order("issue_date asc").Find(&certs).Error; err != nil {
			return err
		}
		for _, c := range certs {
			listing.Certificates = append(listing.Certificates, newIssuedCertificateView(c))
		}
		return nil
	})
	if err != nil {
		return CertificateListing{}, fmt.Errorf("list all certificates: %w", err)
	}
	return listing, nil
}
