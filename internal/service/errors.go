package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrPaperNotFound indicates the paper does not exist.
	ErrPaperNotFound = errors.New("paper not found")
	// ErrInvalidTimeLimit indicates a paper without a positive duration.
	ErrInvalidTimeLimit = errors.New("paper time limit must be positive")
	// ErrNotEligible indicates the user may not start the paper.
	ErrNotEligible = errors.New("not eligible to start this paper")
	// ErrPaymentRequired indicates the paper needs an approved enrollment.
	ErrPaymentRequired = fmt.Errorf("payment required: %w", ErrNotEligible)
	// ErrPaperNotAvailable indicates the paper is outside its visibility window.
	ErrPaperNotAvailable = fmt.Errorf("paper is not available: %w", ErrNotEligible)

	// ErrAttemptNotFound indicates the attempt does not exist.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptForbidden indicates the attempt belongs to another user.
	ErrAttemptForbidden = errors.New("attempt belongs to another user")
	// ErrAttemptClosed indicates the attempt already reached a terminal state.
	ErrAttemptClosed = errors.New("attempt is closed")
	// ErrAttemptExpired indicates the attempt deadline has passed.
	ErrAttemptExpired = errors.New("attempt deadline has passed")
	// ErrDeadlineNotReached indicates an expiry close before the deadline.
	ErrDeadlineNotReached = errors.New("attempt deadline not reached")
	// ErrAttemptNotClosed indicates an operation that requires a terminal attempt.
	ErrAttemptNotClosed = errors.New("attempt is still open")
	// ErrInvalidCloseReason indicates an unknown close reason.
	ErrInvalidCloseReason = errors.New("invalid close reason")

	// ErrQuestionNotFound indicates the question is not part of the attempt's paper.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidOption indicates the option does not belong to the question.
	ErrInvalidOption = errors.New("option does not belong to question")
	// ErrSectionMismatch indicates an answer value of the wrong kind for the question.
	ErrSectionMismatch = errors.New("answer value does not match question section")
	// ErrSectionNotEnabled indicates a section that the paper does not carry.
	ErrSectionNotEnabled = errors.New("section not enabled for paper")
	// ErrInvalidViolation indicates an unknown violation kind.
	ErrInvalidViolation = errors.New("invalid violation kind")

	// ErrMarksNotFound indicates no marks exist yet for the attempt.
	ErrMarksNotFound = errors.New("marks not found")
	// ErrMarksAlreadyPublished indicates the marks are already visible and immutable.
	ErrMarksAlreadyPublished = errors.New("marks already published")
	// ErrMarksConflict indicates the marks changed since they were read.
	ErrMarksConflict = errors.New("marks were modified concurrently")
	// ErrMissingSectionScore indicates an enabled section without a score.
	ErrMissingSectionScore = errors.New("missing score for enabled section")
	// ErrInvalidScore indicates a negative or otherwise invalid score.
	ErrInvalidScore = errors.New("score must be zero or positive")
	// ErrResultNotPublished indicates the owner asked for unpublished marks.
	ErrResultNotPublished = errors.New("result not published")

	// ErrNotificationNotFound indicates the notification does not exist for the user.
	ErrNotificationNotFound = errors.New("notification not found")
)

// AnswerKeyIntegrityError reports objective questions without exactly one correct option.
type AnswerKeyIntegrityError struct {
	PaperID     uint
	QuestionIDs []uint
}

func (e *AnswerKeyIntegrityError) Error() string {
	ids := make([]uint, len(e.QuestionIDs))
	copy(ids, e.QuestionIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%d", id))
	}
	return fmt.Sprintf("answer key for paper %d is invalid for questions [%s]", e.PaperID, strings.Join(parts, ","))
}
