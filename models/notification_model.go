package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const NotificationTypeCertificate = "certificate"

type Notification struct {
	ID          uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Message     string         `gorm:"type:text;not null" json:"message"`
	Type        string         `gorm:"size:50;not null" json:"type"`
	RecipientID uuid.UUID      `gorm:"type:uuid;not null;index" json:"recipient_id"`
	SenderID    uuid.UUID      `gorm:"type:uuid" json:"sender_id"`
	CourseID    *uuid.UUID     `gorm:"type:uuid" json:"course_id"`
	Read        bool           `gorm:"default:false" json:"read"`
	Data        datatypes.JSON `json:"data"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
