package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog is the audit trail of reviewer actions on attempts and marks.
type ActivityLog struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	ActorID   uint              `gorm:"not null;index" json:"actor_id"`
	ActorRole string            `gorm:"size:32;not null" json:"actor_role"`
	Action    string            `gorm:"size:64;not null;index" json:"action"`
	PaperID   *uint             `gorm:"index" json:"paper_id"`
	AttemptID *uint             `gorm:"index" json:"attempt_id"`
	Metadata  datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}
