package models

import "time"

// Marks holds the composite result of an attempt.
type Marks struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	AttemptID        uint       `gorm:"not null;uniqueIndex" json:"attempt_id"`
	PaperID          uint       `gorm:"not null;index" json:"paper_id"`
	UserID           uint       `gorm:"not null;index" json:"user_id"`
	ObjectiveScore   *float64   `json:"objective_score"`
	ObjectiveTotal   int        `gorm:"not null;default:0" json:"objective_total"`
	ShortAnswerScore *float64   `json:"short_answer_score"`
	LongAnswerScore  *float64   `json:"long_answer_score"`
	TotalScore       *float64   `json:"total_score"`
	Remarks          string     `gorm:"type:text" json:"remarks"`
	Version          int        `gorm:"not null;default:0" json:"version"`
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PublishedBy      *uint      `json:"published_by"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Attempt          Attempt    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// IsPublished reports whether the marks are visible to their owner.
func (m Marks) IsPublished() bool {
	return m.PublishedAt != nil
}

// SectionScore returns the stored score for a section.
func (m Marks) SectionScore(section Section) *float64 {
	switch section {
	case SectionObjective:
		return m.ObjectiveScore
	case SectionShort:
		return m.ShortAnswerScore
	case SectionLong:
		return m.LongAnswerScore
	default:
		return nil
	}
}
