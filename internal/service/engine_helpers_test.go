package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/rankpaper-api/internal/dto"
	"github.com/noah-isme/rankpaper-api/internal/models"
	"github.com/noah-isme/rankpaper-api/internal/repository"
)

var t0 = time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

type stubActivityRecorder struct {
	mu      sync.Mutex
	entries []ActivityEntry
}

func (s *stubActivityRecorder) Record(_ context.Context, entry ActivityEntry) (dto.AdminActivityResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return dto.AdminActivityResponse{Action: entry.Action, PaperID: entry.PaperID, AttemptID: entry.AttemptID}, nil
}

func (s *stubActivityRecorder) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	actions := make([]string, 0, len(s.entries))
	for _, entry := range s.entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

type stubNotifier struct {
	mu     sync.Mutex
	events []ResultPublishedEvent
}

func (s *stubNotifier) NotifyResultPublished(_ context.Context, event ResultPublishedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *stubNotifier) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type engine struct {
	db          *gorm.DB
	clock       *testClock
	attempts    AttemptService
	answers     AnswerService
	integrity   IntegrityService
	scorer      ScoringService
	marks       MarksService
	leaderboard LeaderboardService
	sweeper     ExpirySweeper
	activity    *stubActivityRecorder
	notifier    *stubNotifier
}

func setupEngineDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:engine_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Paper{}, &models.Question{}, &models.Option{}, &models.PaperEnrollment{},
		&models.Attempt{}, &models.Answer{}, &models.Marks{},
		&models.ActivityLog{}, &models.Notification{},
	))
	return db
}

func newEngine(t *testing.T) *engine {
	t.Helper()

	db := setupEngineDB(t)
	clock := &testClock{now: t0}
	validate := validator.New(validator.WithRequiredStructEnabled())
	log := testLogger()

	attemptRepo := repository.NewAttemptRepository(db)
	answerRepo := repository.NewAnswerRepository(db)
	paperRepo := repository.NewPaperRepository(db)
	marksRepo := repository.NewMarksRepository(db)

	activity := &stubActivityRecorder{}
	notifier := &stubNotifier{}

	scorer := NewScoringService(attemptRepo, answerRepo, paperRepo)
	marks := NewMarksService(attemptRepo, paperRepo, marksRepo, scorer, activity, notifier, validate, log)
	marks.(*marksService).now = clock.Now

	eligibility := NewEligibilityChecker(repository.NewEnrollmentRepository(db), log)
	eligibility.(*enrollmentEligibility).now = clock.Now

	attempts := NewAttemptService(attemptRepo, paperRepo, eligibility, marks, log)
	attempts.(*attemptService).now = clock.Now

	answers := NewAnswerService(attemptRepo, answerRepo, paperRepo, attempts, validate, log)
	answers.(*answerService).now = clock.Now

	sweeper := NewExpirySweeper(attemptRepo, attempts, nil, SweeperConfig{BatchSize: 50}, log)
	sweeper.(*expirySweeper).now = clock.Now

	leaderboard := NewLeaderboardService(paperRepo, marksRepo, log)
	leaderboard.(*leaderboardService).now = clock.Now

	return &engine{
		db:          db,
		clock:       clock,
		attempts:    attempts,
		answers:     answers,
		integrity:   NewIntegrityService(attemptRepo, log),
		scorer:      scorer,
		marks:       marks,
		leaderboard: leaderboard,
		sweeper:     sweeper,
		activity:    activity,
		notifier:    notifier,
	}
}

type paperShape struct {
	objective int
	short     bool
	long      bool
	payment   bool
	unlockAt  *time.Time
	lockAt    *time.Time
}

// seedPaper creates a 60 minute paper whose objective questions have four options with the first correct.
func seedPaper(t *testing.T, db *gorm.DB, shape paperShape) models.Paper {
	t.Helper()

	paper := models.Paper{
		Title:            "Chemistry Rank Paper",
		TimeLimitMinutes: 60,
		HasObjective:     shape.objective > 0,
		HasShortAnswer:   shape.short,
		HasLongAnswer:    shape.long,
		RequiresPayment:  shape.payment,
		UnlockAt:         shape.unlockAt,
		LockAt:           shape.lockAt,
	}
	for i := 0; i < shape.objective; i++ {
		question := models.Question{Section: models.SectionObjective, Position: i + 1, Prompt: fmt.Sprintf("Q%d", i+1)}
		for j := 0; j < 4; j++ {
			question.Options = append(question.Options, models.Option{Label: fmt.Sprintf("option %d", j+1), IsCorrect: j == 0})
		}
		paper.Questions = append(paper.Questions, question)
	}
	if shape.short {
		paper.Questions = append(paper.Questions, models.Question{Section: models.SectionShort, Position: 100, Prompt: "Explain"})
	}
	if shape.long {
		paper.Questions = append(paper.Questions, models.Question{Section: models.SectionLong, Position: 200, Prompt: "Essay"})
	}
	if !paper.HasObjective {
		// gorm treats false as zero and would apply the column default.
		require.NoError(t, db.Create(&paper).Error)
		require.NoError(t, db.Model(&paper).Update("has_objective", false).Error)
		return paper
	}

	require.NoError(t, db.Create(&paper).Error)
	return paper
}

func objectiveQuestions(paper models.Paper) []models.Question {
	var out []models.Question
	for _, q := range paper.Questions {
		if q.Section == models.SectionObjective {
			out = append(out, q)
		}
	}
	return out
}

func questionInSection(t *testing.T, paper models.Paper, section models.Section) models.Question {
	t.Helper()
	for _, q := range paper.Questions {
		if q.Section == section {
			return q
		}
	}
	t.Fatalf("paper has no %s question", section)
	return models.Question{}
}

func correctOption(q models.Question) uint {
	return q.Options[0].ID
}

func wrongOption(q models.Question) uint {
	return q.Options[1].ID
}

func (e *engine) answer(t *testing.T, userID, attemptID uint, q models.Question, optionID uint) {
	t.Helper()
	_, err := e.answers.Upsert(context.Background(), userID, attemptID, q.ID, dto.AnswerUpsertRequest{OptionID: &optionID})
	require.NoError(t, err)
}

func floatPtr(v float64) *float64 {
	return &v
}

func ptrUint(v uint) *uint {
	return &v
}
