package dto

import (
	"time"

	"github.com/noah-isme/rankpaper-api/internal/models"
)

// Marks lifecycle labels.
const (
	MarksStatusDraft     = "draft"
	MarksStatusPublished = "published"
)

// ObjectiveScoreResponse is the auto-graded objective result.
type ObjectiveScoreResponse struct {
	AttemptID      uint `json:"attempt_id"`
	Correct        int  `json:"correct"`
	TotalQuestions int  `json:"total_questions"`
	Answered       int  `json:"answered"`
}

// ManualScoreRequest records a reviewer score for a free-text section.
type ManualScoreRequest struct {
	Section string   `json:"section" validate:"required,oneof=short long"`
	Score   *float64 `json:"score" validate:"required,gte=0"`
	Remarks string   `json:"remarks" validate:"omitempty,max=2000"`
	Version *int     `json:"version" validate:"omitempty,gte=0"`
}

// PublishMarksRequest optionally pins the version the reviewer looked at.
type PublishMarksRequest struct {
	Version *int `json:"version" validate:"omitempty,gte=0"`
}

// MarksResponse describes composite marks.
type MarksResponse struct {
	AttemptID        uint       `json:"attempt_id"`
	PaperID          uint       `json:"paper_id"`
	UserID           uint       `json:"user_id"`
	Status           string     `json:"status"`
	ObjectiveScore   *float64   `json:"objective_score"`
	ObjectiveTotal   int        `json:"objective_total"`
	ShortAnswerScore *float64   `json:"short_answer_score"`
	LongAnswerScore  *float64   `json:"long_answer_score"`
	TotalScore       *float64   `json:"total_score"`
	Remarks          string     `json:"remarks,omitempty"`
	Version          int        `json:"version"`
	PublishedAt      *time.Time `json:"published_at"`
	PublishedBy      *uint      `json:"published_by,omitempty"`
}

// NewMarksResponse converts a marks model.
func NewMarksResponse(marks models.Marks) MarksResponse {
	status := MarksStatusDraft
	if marks.IsPublished() {
		status = MarksStatusPublished
	}

	return MarksResponse{
		AttemptID:        marks.AttemptID,
		PaperID:          marks.PaperID,
		UserID:           marks.UserID,
		Status:           status,
		ObjectiveScore:   marks.ObjectiveScore,
		ObjectiveTotal:   marks.ObjectiveTotal,
		ShortAnswerScore: marks.ShortAnswerScore,
		LongAnswerScore:  marks.LongAnswerScore,
		TotalScore:       marks.TotalScore,
		Remarks:          marks.Remarks,
		Version:          marks.Version,
		PublishedAt:      marks.PublishedAt,
		PublishedBy:      marks.PublishedBy,
	}
}
