package notifications

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/anjiri1684/course_certificates/logger"
	"github.com/anjiri1684/course_certificates/models"
	"github.com/google/uuid"
)

const EventCertificateIssued = "certificate_issued"

// Publisher pushes an event to a connected user, if any.
type Publisher interface {
	Publish(userID uuid.UUID, event interface{})
}

type Mailer interface {
	Send(ctx context.Context, toEmail, toName, subject, htmlContent string) error
}

type CertificateEvent struct {
	Type           string    `json:"type"`
	CertificateID  string    `json:"certificate_id"`
	CourseID       string    `json:"course_id"`
	CourseName     string    `json:"course_name"`
	CredentialID   string    `json:"credential_id"`
	CertificateURL string    `json:"certificate_url"`
	IssuedAt       time.Time `json:"issued_at"`
}

// CertificateNotifier fans an issued certificate out to email and the
// realtime channel. Both are best effort.
type CertificateNotifier struct {
	mailer    Mailer
	publisher Publisher
	log       *logger.Logger
}

func NewCertificateNotifier(mailer Mailer, publisher Publisher, log *logger.Logger) *CertificateNotifier {
	if log == nil {
		log = logger.Nop()
	}
	return &CertificateNotifier{mailer: mailer, publisher: publisher, log: log.With("component", "CertificateNotifier")}
}

func (n *CertificateNotifier) CertificateIssued(student models.User, course models.Course, cert models.IssuedCertificate) {
	if n.publisher != nil {
		n.publisher.Publish(student.ID, CertificateEvent{
			Type:           EventCertificateIssued,
			CertificateID:  cert.ID.String(),
			CourseID:       course.ID.String(),
			CourseName:     course.CourseName,
			CredentialID:   cert.CredentialID,
			CertificateURL: cert.CertificateURL,
			IssuedAt:       cert.IssueDate,
		})
	}

	if n.mailer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		err := n.mailer.Send(ctx, student.Email, student.FullName, "Your certificate is ready", certificateEmailBody(course, cert))
		if err != nil {
			n.log.Warn("failed to email certificate", "student_id", student.ID, "certificate_id", cert.ID, "error", err)
			return
		}
		n.log.Info("certificate email sent", "student_id", student.ID, "certificate_id", cert.ID)
	}()
}

func certificateEmailBody(course models.Course, cert models.IssuedCertificate) string {
	return fmt.Sprintf(
		"<h1>Congratulations!</h1><p>You have been issued a certificate for completing <b>%s</b>.</p><p>Credential ID: %s</p><p><a href='%s'>Download your certificate</a></p>",
		html.EscapeString(course.CourseName),
		html.EscapeString(cert.CredentialID),
		html.EscapeString(cert.CertificateURL),
	)
}
