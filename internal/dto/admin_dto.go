package dto

import (
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/rankpaper-api/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// AdminActivityListRequest defines filters for retrieving activity logs.
type AdminActivityListRequest struct {
	Page      int
	PageSize  int
	ActorID   uint
	AttemptID uint
	PaperID   uint
	Action    string
}

// AdminActivityResponse serializes activity log entries.
type AdminActivityResponse struct {
	ID        uint                   `json:"id"`
	ActorID   uint                   `json:"actor_id"`
	ActorRole string                 `json:"actor_role"`
	Action    string                 `json:"action"`
	PaperID   *uint                  `json:"paper_id"`
	AttemptID *uint                  `json:"attempt_id"`
	Metadata  map[string]interface{} `json:"metadata"`
	CreatedAt time.Time              `json:"created_at"`
}

// AdminActivityListResponse wraps paginated activity logs.
type AdminActivityListResponse struct {
	Items      []AdminActivityResponse `json:"items"`
	Pagination PaginationMeta          `json:"pagination"`
}

// AttemptReviewResponse is the reviewer view of one attempt.
type AttemptReviewResponse struct {
	Attempt AttemptResponse  `json:"attempt"`
	Answers []AnswerResponse `json:"answers"`
	Marks   *MarksResponse   `json:"marks,omitempty"`
}

// SweepResponse reports the outcome of one expiry sweep pass.
type SweepResponse struct {
	Scanned int  `json:"scanned"`
	Closed  int  `json:"closed"`
	Skipped bool `json:"skipped"`
}

// NewAdminActivityResponse converts a model into an activity DTO.
func NewAdminActivityResponse(entry models.ActivityLog) AdminActivityResponse {
	return AdminActivityResponse{
		ID:        entry.ID,
		ActorID:   entry.ActorID,
		ActorRole: entry.ActorRole,
		Action:    entry.Action,
		PaperID:   entry.PaperID,
		AttemptID: entry.AttemptID,
		Metadata:  metadataFromJSON(entry.Metadata),
		CreatedAt: entry.CreatedAt,
	}
}

func metadataFromJSON(data datatypes.JSONMap) map[string]interface{} {
	if data == nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}(data)
}
