package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationTypeResultPublished is sent when marks become visible.
const NotificationTypeResultPublished = "result.published"

// Notification is an in-app message targeted to a specific user.
type Notification struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	UserID    uint              `gorm:"not null;index" json:"user_id"`
	Type      string            `gorm:"size:64" json:"type"`
	Message   string            `gorm:"type:text" json:"message"`
	Payload   datatypes.JSONMap `gorm:"type:json" json:"payload"`
	Read      bool              `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
