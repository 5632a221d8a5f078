package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/rankpaper-api/internal/models"
	"github.com/noah-isme/rankpaper-api/internal/observability"
	"github.com/noah-isme/rankpaper-api/internal/service"
	"github.com/noah-isme/rankpaper-api/internal/utils"
)

// AttemptStreamHandler pushes the server-side attempt status over a websocket so clients
// can render a countdown without trusting their own clock.
type AttemptStreamHandler struct {
	attempts service.AttemptService
	interval time.Duration
	logger   zerolog.Logger
}

// NewAttemptStreamHandler constructs the handler. interval defaults to one second.
func NewAttemptStreamHandler(attempts service.AttemptService, interval time.Duration, logger zerolog.Logger) *AttemptStreamHandler {
	if interval <= 0 {
		interval = time.Second
	}
	return &AttemptStreamHandler{
		attempts: attempts,
		interval: interval,
		logger:   logger.With().Str("component", "attempt_stream_handler").Logger(),
	}
}

// Register binds the stream route under the attempts group.
func (h *AttemptStreamHandler) Register(router fiber.Router) {
	router.Get("/:id/stream", h.upgrade, websocket.New(h.handleConnection))
}

func (h *AttemptStreamHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return utils.SendError(c, fiber.StatusUpgradeRequired, "websocket upgrade required")
	}

	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}
	attemptID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid attempt id")
	}

	ctx := withRequestContext(c)
	if _, err := h.attempts.GetForOwner(ctx, attemptID, userID); err != nil {
		return handleError(c, h.logger, err)
	}

	c.Locals("attempt_id", attemptID)
	c.Locals("request_ctx", ctx)
	return c.Next()
}

func (h *AttemptStreamHandler) handleConnection(conn *websocket.Conn) {
	userID := websocketUserID(conn)
	attemptID, _ := conn.Locals("attempt_id").(uint)
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	observability.StreamClients().WithLabelValues("attempt_status").Inc()
	defer observability.StreamClients().WithLabelValues("attempt_status").Dec()
	defer func() { _ = conn.Close() }()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		attempt, err := h.attempts.GetForOwner(ctx, attemptID, userID)
		if err != nil {
			h.logger.Warn().Err(err).Uint("attempt_id", attemptID).Msg("attempt stream lookup failed")
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "lookup failed"))
			return
		}
		if err := conn.WriteJSON(attempt); err != nil {
			return
		}
		if attempt.Status == models.AttemptStatusSubmitted || attempt.Status == models.AttemptStatusAutoClosed {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, attempt.Status))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
