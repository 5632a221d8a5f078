package middleware

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
)

// Config customises the middleware registration pipeline. AllowOrigins lists the exam
// client origins and defaults to any origin.
type Config struct {
	Logger       *zerolog.Logger
	AllowOrigins string
}

// Register attaches the middlewares shared by every route. Correlation ids are assigned before
// Observability so each attempt request log line carries one, and Retry-After is exposed so
// exam clients can back off when the answer write limiter trips.
func Register(app *fiber.App, cfg Config) {
	requestLogger := zerolog.New(io.Discard)
	if cfg.Logger != nil {
		requestLogger = *cfg.Logger
	}

	app.Use(recover.New())
	app.Use(CorrelationID())
	app.Use(Observability(requestLogger))
	app.Use(logger.New())
	origins := cfg.AllowOrigins
	if origins == "" {
		origins = "*"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Correlation-ID, X-Request-ID",
		AllowMethods:  "GET,POST,PUT,OPTIONS",
		ExposeHeaders: "X-Correlation-ID, Retry-After",
	}))
}
