package dto

import "time"

// LeaderboardEntry is one ranked published result.
type LeaderboardEntry struct {
	Rank       int        `json:"rank"`
	AttemptID  uint       `json:"attempt_id"`
	UserID     uint       `json:"user_id"`
	TotalScore float64    `json:"total_score"`
	FinishedAt *time.Time `json:"finished_at"`
}

// LeaderboardResponse wraps the ranking of a paper.
type LeaderboardResponse struct {
	PaperID     uint               `json:"paper_id"`
	Entries     []LeaderboardEntry `json:"entries"`
	GeneratedAt time.Time          `json:"generated_at"`
}
