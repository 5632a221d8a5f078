package dto

import (
	"time"

	"github.com/noah-isme/rankpaper-api/internal/models"
)

// AttemptResponse is the server-authoritative view of an attempt at a reference instant.
type AttemptResponse struct {
	ID               uint       `json:"id"`
	UserID           uint       `json:"user_id"`
	PaperID          uint       `json:"paper_id"`
	Status           string     `json:"status"`
	StartedAt        time.Time  `json:"started_at"`
	EndsAt           time.Time  `json:"ends_at"`
	SubmittedAt      *time.Time `json:"submitted_at"`
	AutoClosed       bool       `json:"auto_closed"`
	ClosedAt         *time.Time `json:"closed_at,omitempty"`
	IsExpired        bool       `json:"is_expired"`
	RemainingSeconds int64      `json:"remaining_seconds"`
	TabSwitchCount   int        `json:"tab_switch_count"`
	WindowCloseCount int        `json:"window_close_count"`
	ServerTime       time.Time  `json:"server_time"`
}

// AnswerUpsertRequest carries either a selected option or an upload reference.
type AnswerUpsertRequest struct {
	OptionID  *uint  `json:"option_id" validate:"omitempty,gt=0"`
	UploadRef string `json:"upload_ref" validate:"omitempty,max=512"`
}

// AnswerResponse describes a stored answer.
type AnswerResponse struct {
	ID         uint      `json:"id"`
	AttemptID  uint      `json:"attempt_id"`
	QuestionID uint      `json:"question_id"`
	Section    string    `json:"section"`
	OptionID   *uint     `json:"option_id,omitempty"`
	UploadRef  string    `json:"upload_ref,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ViolationRequest is a client-reported integrity event.
type ViolationRequest struct {
	Kind string `json:"kind" validate:"required,oneof=tab_switch window_close"`
}

// NewAttemptResponse derives status and remaining time from stored timestamps.
func NewAttemptResponse(attempt models.Attempt, reference time.Time) AttemptResponse {
	return AttemptResponse{
		ID:               attempt.ID,
		UserID:           attempt.UserID,
		PaperID:          attempt.PaperID,
		Status:           attempt.Status(reference),
		StartedAt:        attempt.StartedAt,
		EndsAt:           attempt.EndsAt,
		SubmittedAt:      attempt.SubmittedAt,
		AutoClosed:       attempt.AutoClosed,
		ClosedAt:         attempt.ClosedAt,
		IsExpired:        attempt.IsExpired(reference),
		RemainingSeconds: attempt.RemainingSeconds(reference),
		TabSwitchCount:   attempt.TabSwitchCount,
		WindowCloseCount: attempt.WindowCloseCount,
		ServerTime:       reference,
	}
}

// NewAnswerResponse converts an answer model.
func NewAnswerResponse(answer models.Answer) AnswerResponse {
	return AnswerResponse{
		ID:         answer.ID,
		AttemptID:  answer.AttemptID,
		QuestionID: answer.QuestionID,
		Section:    string(answer.Section),
		OptionID:   answer.OptionID,
		UploadRef:  answer.UploadRef,
		UpdatedAt:  answer.UpdatedAt,
	}
}

// NewAnswerResponseSlice converts a slice of answers.
func NewAnswerResponseSlice(answers []models.Answer) []AnswerResponse {
	out := make([]AnswerResponse, 0, len(answers))
	for _, answer := range answers {
		out = append(out, NewAnswerResponse(answer))
	}
	return out
}
