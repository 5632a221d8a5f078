package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/rankpaper-api/internal/config"
	"github.com/noah-isme/rankpaper-api/internal/database"
	"github.com/noah-isme/rankpaper-api/internal/handler"
	"github.com/noah-isme/rankpaper-api/internal/models"
	"github.com/noah-isme/rankpaper-api/internal/repository"
	"github.com/noah-isme/rankpaper-api/internal/router"
	"github.com/noah-isme/rankpaper-api/internal/service"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Details json.RawMessage `json:"details"`
}

type testApp struct {
	app *fiber.App
	db  *gorm.DB
}

// fakeAuth stands in for JWT parsing: identity comes from X-User-ID and X-User-Role.
func fakeAuth(c *fiber.Ctx) error {
	if raw := c.Get("X-User-ID"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fiber.ErrUnauthorized
		}
		c.Locals("user_id", uint(id))
	}
	if role := c.Get("X-User-Role"); role != "" {
		c.Locals("user_role", role)
	}
	return c.Next()
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	dsn := fmt.Sprintf("file:handler_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	log := zerolog.New(io.Discard)
	validate := validator.New(validator.WithRequiredStructEnabled())

	paperRepo := repository.NewPaperRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	answerRepo := repository.NewAnswerRepository(db)
	marksRepo := repository.NewMarksRepository(db)

	activity := service.NewActivityService(repository.NewActivityLogRepository(db), log)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), nil, "", nil, log)
	scorer := service.NewScoringService(attemptRepo, answerRepo, paperRepo)
	marks := service.NewMarksService(attemptRepo, paperRepo, marksRepo, scorer, activity, notifications, validate, log)
	attempts := service.NewAttemptService(attemptRepo, paperRepo, service.NewEligibilityChecker(repository.NewEnrollmentRepository(db), log), marks, log)
	answers := service.NewAnswerService(attemptRepo, answerRepo, paperRepo, attempts, validate, log)
	sweeper := service.NewExpirySweeper(attemptRepo, attempts, nil, service.SweeperConfig{}, log)

	cfg := config.Config{AppName: "Rank Paper API", AppEnv: "test", AnswersPerMinute: 1000}
	app := fiber.New()
	router.Register(app, cfg, router.Dependencies{
		AttemptHandler: handler.NewAttemptHandler(handler.AttemptHandlerDeps{
			Attempts:  attempts,
			Answers:   answers,
			Integrity: service.NewIntegrityService(attemptRepo, log),
			Marks:     marks,
		}, validate, log),
		AttemptStreamHandler: handler.NewAttemptStreamHandler(attempts, 50*time.Millisecond, log),
		LeaderboardHandler:   handler.NewLeaderboardHandler(service.NewLeaderboardService(paperRepo, marksRepo, log), log),
		NotificationHandler:  handler.NewNotificationHandler(notifications, log, time.Second),
		AdminReviewHandler: handler.NewAdminReviewHandler(handler.AdminReviewDeps{
			Attempts: attempts,
			Answers:  answers,
			Scorer:   scorer,
			Marks:    marks,
			Sweeper:  sweeper,
			Activity: activity,
		}, log),
		AdminActivityHandler: handler.NewAdminActivityHandler(activity, log),
		JWTMiddleware:        fakeAuth,
		DB:                   db,
	})

	return &testApp{app: app, db: db}
}

func (a *testApp) seedPaper(t *testing.T, objective int, short, payment bool) models.Paper {
	t.Helper()

	paper := models.Paper{
		Title:            "Physics Rank Paper",
		TimeLimitMinutes: 60,
		HasObjective:     true,
		HasShortAnswer:   short,
		RequiresPayment:  payment,
	}
	for i := 0; i < objective; i++ {
		question := models.Question{Section: models.SectionObjective, Position: i + 1, Prompt: fmt.Sprintf("Q%d", i+1)}
		for j := 0; j < 4; j++ {
			question.Options = append(question.Options, models.Option{Label: fmt.Sprintf("option %d", j+1), IsCorrect: j == 0})
		}
		paper.Questions = append(paper.Questions, question)
	}
	if short {
		paper.Questions = append(paper.Questions, models.Question{Section: models.SectionShort, Position: 100, Prompt: "Explain"})
	}
	require.NoError(t, a.db.Create(&paper).Error)
	return paper
}

type identity struct {
	userID uint
	role   string
}

var (
	student = identity{userID: 1, role: "student"}
	rival   = identity{userID: 2, role: "student"}
	teacher = identity{userID: 50, role: "teacher"}
)

func (a *testApp) do(t *testing.T, method, path string, who identity, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if who.userID != 0 {
		req.Header.Set("X-User-ID", strconv.FormatUint(uint64(who.userID), 10))
	}
	if who.role != "" {
		req.Header.Set("X-User-Role", who.role)
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)

	var out envelope
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	if len(data) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &out))
	}
	return resp.StatusCode, out
}

func decodeData(t *testing.T, env envelope, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, target))
}
