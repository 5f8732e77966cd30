package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Course is owned by the course catalogue. Only the Certificate* fields are
// written by this service.
type Course struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TeacherID      uuid.UUID `gorm:"type:uuid;not null;index" json:"teacher_id"`
	CourseName     string    `gorm:"size:255;not null" json:"course_name"`
	CourseCode     string    `gorm:"size:50;not null" json:"course_code"`
	InstructorName string    `gorm:"size:255" json:"instructor_name"`

	CertificateOffered     bool    `gorm:"default:false" json:"certificate_offered"`
	CertificateTitle       *string `gorm:"size:255" json:"certificate_title"`
	CertificateDescription *string `gorm:"type:text" json:"certificate_description"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Course) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
