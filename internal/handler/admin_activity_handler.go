package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/rankpaper-api/internal/dto"
	"github.com/noah-isme/rankpaper-api/internal/service"
	"github.com/noah-isme/rankpaper-api/internal/utils"
)

// AdminActivityHandler exposes the marking audit log.
type AdminActivityHandler struct {
	service service.ActivityService
	logger  zerolog.Logger
}

// NewAdminActivityHandler constructs the handler.
func NewAdminActivityHandler(service service.ActivityService, logger zerolog.Logger) *AdminActivityHandler {
	return &AdminActivityHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_activity_handler").Logger(),
	}
}

// Register attaches activity log routes to the router group.
func (h *AdminActivityHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

func (h *AdminActivityHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	if page <= 0 {
		page = 1
	}

	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}
	if pageSize <= 0 {
		pageSize = 25
	} else if pageSize > 200 {
		pageSize = 200
	}

	req := dto.AdminActivityListRequest{
		Page:     page,
		PageSize: pageSize,
		Action:   c.Query("action"),
	}
	if req.ActorID, err = parseQueryUint(c, "actor_id"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if req.AttemptID, err = parseQueryUint(c, "attempt_id"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if req.PaperID, err = parseQueryUint(c, "paper_id"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.service.List(withRequestContext(c), req)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list activity logs")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list activity logs")
	}

	return utils.OK(c, response.Items, "activity logs", response.Pagination)
}
