package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/rankpaper-api/internal/config"
	"github.com/noah-isme/rankpaper-api/internal/database"
	"github.com/noah-isme/rankpaper-api/internal/handler"
	"github.com/noah-isme/rankpaper-api/internal/middleware"
	"github.com/noah-isme/rankpaper-api/internal/observability"
	"github.com/noah-isme/rankpaper-api/internal/repository"
	"github.com/noah-isme/rankpaper-api/internal/router"
	"github.com/noah-isme/rankpaper-api/internal/service"
	cloud "github.com/noah-isme/rankpaper-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	observability.RegisterMetrics()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not configured, sweep lease and notification fan-out disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	var sheetStorage service.FileStorage
	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("cloudinary unavailable, answer sheet uploads disabled")
	} else {
		sheetStorage = uploader
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	paperRepo := repository.NewPaperRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	answerRepo := repository.NewAnswerRepository(db)
	marksRepo := repository.NewMarksRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	activityService := service.NewActivityService(activityRepo, logger)
	notificationService := service.NewNotificationService(notificationRepo, redisClient, cfg.NotificationsChannel, natsConn, logger)
	scoringService := service.NewScoringService(attemptRepo, answerRepo, paperRepo)
	marksService := service.NewMarksService(attemptRepo, paperRepo, marksRepo, scoringService, activityService, notificationService, validate, logger)
	leaderboardService := service.NewLeaderboardService(paperRepo, marksRepo, logger)
	eligibility := service.NewEligibilityChecker(enrollmentRepo, logger)
	attemptService := service.NewAttemptService(attemptRepo, paperRepo, eligibility, marksService, logger)
	answerService := service.NewAnswerService(attemptRepo, answerRepo, paperRepo, attemptService, validate, logger)
	integrityService := service.NewIntegrityService(attemptRepo, logger)
	sweeper := service.NewExpirySweeper(attemptRepo, attemptService, redisClient, service.SweeperConfig{
		Interval:  cfg.SweepInterval,
		BatchSize: cfg.SweepBatchSize,
		LeaseTTL:  cfg.SweepLeaseTTL,
	}, logger)

	var sheetService service.AnswerSheetService
	if sheetStorage != nil {
		sheetService = service.NewAnswerSheetService(sheetStorage, answerService, cfg.UploadMaxSizeMB, logger)
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxSizeMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		AttemptHandler: handler.NewAttemptHandler(handler.AttemptHandlerDeps{
			Attempts:  attemptService,
			Answers:   answerService,
			Sheets:    sheetService,
			Integrity: integrityService,
			Marks:     marksService,
		}, validate, logger),
		AttemptStreamHandler: handler.NewAttemptStreamHandler(attemptService, time.Second, logger),
		LeaderboardHandler:   handler.NewLeaderboardHandler(leaderboardService, logger),
		NotificationHandler:  handler.NewNotificationHandler(notificationService, logger, cfg.StreamKeepAlive),
		AdminReviewHandler: handler.NewAdminReviewHandler(handler.AdminReviewDeps{
			Attempts: attemptService,
			Answers:  answerService,
			Scorer:   scoringService,
			Marks:    marksService,
			Sweeper:  sweeper,
			Activity: activityService,
		}, logger),
		AdminActivityHandler: handler.NewAdminActivityHandler(activityService, logger),
		JWTMiddleware:        middleware.JWTProtected(cfg.JWTSecret),
		DB:                   db,
		Redis:                redisClient,
	})

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	notificationService.Start(workerCtx)
	go sweeper.Run(workerCtx)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, stopWorkers)
}

func waitForShutdown(app *fiber.App, stopWorkers context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
