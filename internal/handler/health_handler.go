package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/noah-isme/rankpaper-api/internal/config"
	"github.com/noah-isme/rankpaper-api/internal/utils"
)

const healthProbeTimeout = 2 * time.Second

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Service     string            `json:"service"`
	Environment string            `json:"environment"`
	Checks      map[string]string `json:"checks"`
}

// HealthCheck returns a handler that reports application health. db and redisClient may be nil.
func HealthCheck(cfg config.Config, db *gorm.DB, redisClient *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(withRequestContext(c), healthProbeTimeout)
		defer cancel()

		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Checks:      map[string]string{},
		}

		if db != nil {
			payload.Checks["database"] = "ok"
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(ctx)
			}
			if err != nil {
				payload.Status = "degraded"
				payload.Checks["database"] = err.Error()
			}
		}
		if redisClient != nil {
			payload.Checks["redis"] = "ok"
			if err := redisClient.Ping(ctx).Err(); err != nil {
				payload.Status = "degraded"
				payload.Checks["redis"] = err.Error()
			}
		}

		if payload.Status != "ok" {
			return utils.SendSuccessWithStatus(c, fiber.StatusServiceUnavailable, "service degraded", payload)
		}
		return utils.SendSuccess(c, "service healthy", payload)
	}
}
