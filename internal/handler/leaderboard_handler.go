package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/rankpaper-api/internal/service"
	"github.com/noah-isme/rankpaper-api/internal/utils"
)

// LeaderboardHandler serves paper rankings.
type LeaderboardHandler struct {
	service service.LeaderboardService
	logger  zerolog.Logger
}

// NewLeaderboardHandler constructs the handler.
func NewLeaderboardHandler(service service.LeaderboardService, logger zerolog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		service: service,
		logger:  logger.With().Str("component", "leaderboard_handler").Logger(),
	}
}

// Register binds the leaderboard route under the papers group.
func (h *LeaderboardHandler) Register(router fiber.Router) {
	router.Get("/:paperId/leaderboard", h.rank)
}

func (h *LeaderboardHandler) rank(c *fiber.Ctx) error {
	paperID, err := parseUintParam(c, "paperId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid paper id")
	}

	board, err := h.service.Rank(withRequestContext(c), paperID)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "leaderboard", board)
}
