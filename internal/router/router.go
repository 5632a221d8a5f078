package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/noah-isme/rankpaper-api/internal/config"
	"github.com/noah-isme/rankpaper-api/internal/handler"
	"github.com/noah-isme/rankpaper-api/internal/middleware"
	"github.com/noah-isme/rankpaper-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AttemptHandler       *handler.AttemptHandler
	AttemptStreamHandler *handler.AttemptStreamHandler
	LeaderboardHandler   *handler.LeaderboardHandler
	NotificationHandler  *handler.NotificationHandler
	AdminReviewHandler   *handler.AdminReviewHandler
	AdminActivityHandler *handler.AdminActivityHandler
	JWTMiddleware        fiber.Handler
	DB                   *gorm.DB
	Redis                *redis.Client
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.DB, deps.Redis))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	papers := api.Group("/papers", jwtMiddleware)
	attempts := api.Group("/attempts", jwtMiddleware)

	if deps.AttemptHandler != nil {
		deps.AttemptHandler.RegisterPaperRoutes(papers)
		writeLimiter := middleware.RateLimit("attempt-writes", cfg.AnswersPerMinute, time.Minute)
		deps.AttemptHandler.Register(attempts, writeLimiter)
	}
	if deps.AttemptStreamHandler != nil {
		deps.AttemptStreamHandler.Register(attempts)
	}
	if deps.LeaderboardHandler != nil {
		deps.LeaderboardHandler.Register(papers)
	}
	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(api.Group("/notifications", jwtMiddleware))
	}

	admin := api.Group("/admin", jwtMiddleware, middleware.RequireRole(middleware.RoleAdmin, middleware.RoleTeacher))
	if deps.AdminReviewHandler != nil {
		deps.AdminReviewHandler.Register(admin)
	}
	if deps.AdminActivityHandler != nil {
		deps.AdminActivityHandler.Register(admin.Group("/activities"))
	}
}
