package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Enrollment struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	CourseID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_enrollment_course_student" json:"course_id"`
	StudentID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_enrollment_course_student" json:"student_id"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

func (e *Enrollment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
