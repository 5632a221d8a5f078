package models

import "time"

const (
	// EnrollmentStatusPending marks a payment slip awaiting verification.
	EnrollmentStatusPending = "pending"
	// EnrollmentStatusApproved marks a verified enrollment.
	EnrollmentStatusApproved = "approved"
	// EnrollmentStatusRejected marks a refused enrollment.
	EnrollmentStatusRejected = "rejected"
)

// PaperEnrollment records whether a user has paid for or been enrolled into a paper.
type PaperEnrollment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_enrollment_user_paper" json:"user_id"`
	PaperID   uint      `gorm:"not null;uniqueIndex:idx_enrollment_user_paper" json:"paper_id"`
	Status    string    `gorm:"size:16;not null;default:pending" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsApproved reports whether the enrollment grants access.
func (e PaperEnrollment) IsApproved() bool {
	return e.Status == EnrollmentStatusApproved
}
