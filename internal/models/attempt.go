package models

import "time"

// Attempt status values derived from stored timestamps.
const (
	AttemptStatusInProgress = "in_progress"
	AttemptStatusExpired    = "expired"
	AttemptStatusSubmitted  = "submitted"
	AttemptStatusAutoClosed = "auto_closed"
)

// CloseReason identifies how an attempt reached its terminal state.
type CloseReason string

const (
	// CloseReasonExplicit is a user submission.
	CloseReasonExplicit CloseReason = "explicit"
	// CloseReasonExpiry is a deadline closure.
	CloseReasonExpiry CloseReason = "expiry"
)

// ViolationKind enumerates client-reported integrity events.
type ViolationKind string

const (
	ViolationTabSwitch   ViolationKind = "tab_switch"
	ViolationWindowClose ViolationKind = "window_close"
)

// Attempt is one user's timed session against one paper.
type Attempt struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UserID           uint       `gorm:"not null;uniqueIndex:idx_attempt_user_paper" json:"user_id"`
	PaperID          uint       `gorm:"not null;uniqueIndex:idx_attempt_user_paper;index" json:"paper_id"`
	StartedAt        time.Time  `gorm:"not null" json:"started_at"`
	EndsAt           time.Time  `gorm:"not null;index" json:"ends_at"`
	SubmittedAt      *time.Time `json:"submitted_at"`
	AutoClosed       bool       `gorm:"not null;default:false" json:"auto_closed"`
	ClosedAt         *time.Time `json:"closed_at"`
	LastActivityAt   *time.Time `json:"last_activity_at"`
	TabSwitchCount   int        `gorm:"not null;default:0" json:"tab_switch_count"`
	WindowCloseCount int        `gorm:"not null;default:0" json:"window_close_count"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Paper            Paper      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
}

// IsTerminal reports whether the attempt was submitted or auto-closed.
func (a Attempt) IsTerminal() bool {
	return a.SubmittedAt != nil || a.AutoClosed
}

// IsExpired reports whether the deadline passed while the attempt is still open.
func (a Attempt) IsExpired(reference time.Time) bool {
	return reference.After(a.EndsAt) && !a.IsTerminal()
}

// Status derives the lifecycle state at the reference time.
func (a Attempt) Status(reference time.Time) string {
	switch {
	case a.SubmittedAt != nil:
		return AttemptStatusSubmitted
	case a.AutoClosed:
		return AttemptStatusAutoClosed
	case a.IsExpired(reference):
		return AttemptStatusExpired
	default:
		return AttemptStatusInProgress
	}
}

// Remaining returns the time left before the deadline, zero once closed or expired.
func (a Attempt) Remaining(reference time.Time) time.Duration {
	if a.IsTerminal() || !reference.Before(a.EndsAt) {
		return 0
	}
	return a.EndsAt.Sub(reference)
}

// RemainingSeconds is Remaining rounded up to whole seconds, so a countdown only
// shows zero once the deadline has passed.
func (a Attempt) RemainingSeconds(reference time.Time) int64 {
	remaining := a.Remaining(reference)
	if remaining <= 0 {
		return 0
	}
	return int64((remaining + time.Second - 1) / time.Second)
}

// FinishedAt is the moment the attempt ended for ranking purposes.
// A submission recorded after the deadline counts as finishing at the deadline.
func (a Attempt) FinishedAt() *time.Time {
	if a.SubmittedAt != nil {
		if a.SubmittedAt.After(a.EndsAt) {
			endsAt := a.EndsAt
			return &endsAt
		}
		submitted := *a.SubmittedAt
		return &submitted
	}
	if a.AutoClosed {
		endsAt := a.EndsAt
		return &endsAt
	}
	return nil
}

// Answer stores the latest value for one question of an attempt.
type Answer struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	AttemptID  uint      `gorm:"not null;uniqueIndex:idx_answer_attempt_question" json:"attempt_id"`
	QuestionID uint      `gorm:"not null;uniqueIndex:idx_answer_attempt_question" json:"question_id"`
	Section    Section   `gorm:"size:16;not null" json:"section"`
	OptionID   *uint     `json:"option_id"`
	UploadRef  string    `gorm:"size:512" json:"upload_ref"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
