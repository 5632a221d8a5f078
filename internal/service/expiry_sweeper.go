package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/rankpaper-api/internal/dto"
	"github.com/noah-isme/rankpaper-api/internal/models"
	"github.com/noah-isme/rankpaper-api/internal/observability"
	"github.com/noah-isme/rankpaper-api/internal/repository"
)

const defaultSweepLeaseKey = "rankpaper:sweeper:lease"

// SweeperConfig tunes the periodic expiry sweep.
type SweeperConfig struct {
	Interval  time.Duration
	BatchSize int
	LeaseTTL  time.Duration
	LeaseKey  string
}

// ExpirySweeper closes attempts whose deadline passed without a submission.
type ExpirySweeper interface {
	Run(ctx context.Context)
	SweepOnce(ctx context.Context) (dto.SweepResponse, error)
}

type expirySweeper struct {
	attempts repository.AttemptRepository
	closer   TransitionCloser
	redis    *redis.Client
	cfg      SweeperConfig
	nodeID   string
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewExpirySweeper constructs the sweeper. With a nil redis client every replica sweeps.
func NewExpirySweeper(attempts repository.AttemptRepository, closer TransitionCloser, redisClient *redis.Client, cfg SweeperConfig, logger zerolog.Logger) ExpirySweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = cfg.Interval
	}
	if cfg.LeaseKey == "" {
		cfg.LeaseKey = defaultSweepLeaseKey
	}

	return &expirySweeper{
		attempts: attempts,
		closer:   closer,
		redis:    redisClient,
		cfg:      cfg,
		nodeID:   uuid.NewString(),
		logger:   logger.With().Str("component", "expiry_sweeper").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/rankpaper-api/internal/service/sweeper"),
		now:      time.Now,
	}
}

// Run sweeps on every tick until the context is cancelled.
func (s *expirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.cfg.Interval).Msg("expiry sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("expiry sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.sweep(ctx, true); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error().Err(err).Msg("expiry sweep failed")
			}
		}
	}
}

// SweepOnce runs a single pass without taking the lease.
func (s *expirySweeper) SweepOnce(ctx context.Context) (dto.SweepResponse, error) {
	return s.sweep(ctx, false)
}

func (s *expirySweeper) sweep(ctx context.Context, useLease bool) (dto.SweepResponse, error) {
	ctx, span := s.tracer.Start(ctx, "attempts.sweep_expired")
	defer span.End()

	if useLease && !s.acquireLease(ctx) {
		observability.SweepRuns().WithLabelValues("skipped").Inc()
		span.SetAttributes(attribute.Bool("sweep.skipped", true))
		return dto.SweepResponse{Skipped: true}, nil
	}

	expired, err := s.attempts.ListExpiredOpen(ctx, s.now().UTC(), s.cfg.BatchSize)
	if err != nil {
		observability.SweepRuns().WithLabelValues("failed").Inc()
		span.RecordError(err)
		return dto.SweepResponse{}, err
	}

	result := dto.SweepResponse{Scanned: len(expired)}
	for _, attempt := range expired {
		_, transitioned, err := s.closer.CloseTransition(ctx, attempt.ID, models.CloseReasonExpiry)
		if err != nil {
			if errors.Is(err, ErrDeadlineNotReached) {
				continue
			}
			s.logger.Warn().Err(err).Uint("attempt_id", attempt.ID).Msg("failed to auto-close attempt")
			continue
		}
		if transitioned {
			result.Closed++
		}
	}

	observability.SweepRuns().WithLabelValues("ran").Inc()
	observability.SweepClosed().Add(float64(result.Closed))
	span.SetAttributes(
		attribute.Int("sweep.scanned", result.Scanned),
		attribute.Int("sweep.closed", result.Closed),
	)
	if result.Scanned > 0 {
		s.logger.Info().Int("scanned", result.Scanned).Int("closed", result.Closed).Msg("expiry sweep completed")
	}

	return result, nil
}

// acquireLease reports whether this replica owns the current sweep window.
// Redis errors fail open because the close itself is a compare-and-set.
func (s *expirySweeper) acquireLease(ctx context.Context) bool {
	if s.redis == nil {
		return true
	}

	acquired, err := s.redis.SetNX(ctx, s.cfg.LeaseKey, s.nodeID, s.cfg.LeaseTTL).Result()
	if err != nil {
		s.logger.Warn().Err(err).Msg("sweep lease unavailable, sweeping without it")
		return true
	}
	if acquired {
		return true
	}

	owner, err := s.redis.Get(ctx, s.cfg.LeaseKey).Result()
	return err == nil && owner == s.nodeID
}
