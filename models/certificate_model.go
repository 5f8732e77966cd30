package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const CertificateStatusAvailable = "Available"

// CertificateTemplate describes the certificate a course awards. One per course.
type CertificateTemplate struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	CourseID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	Title       string    `gorm:"size:255;not null"`
	Description *string   `gorm:"type:text"`
	Template    string    `gorm:"size:255;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (t *CertificateTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// IssuedCertificate is the per-student award. Never updated once written.
type IssuedCertificate struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	CertificateID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_issued_template_student"`
	StudentID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_issued_template_student;index"`
	CourseID       uuid.UUID `gorm:"type:uuid;not null;index"`
	IssueDate      time.Time `gorm:"not null"`
	CompletionDate time.Time `gorm:"not null"`
	CredentialID   string    `gorm:"size:64;not null;uniqueIndex"`
	CertificateURL string    `gorm:"type:text;not null"`
	Status         string    `gorm:"size:20;not null"`
}

func (c *IssuedCertificate) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
