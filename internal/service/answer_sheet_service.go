package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/rankpaper-api/internal/dto"
	"github.com/noah-isme/rankpaper-api/internal/models"
	"github.com/noah-isme/rankpaper-api/internal/observability"
)

var (
	// ErrUploadRequired indicates a missing file part.
	ErrUploadRequired = errors.New("file is required")
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the MIME type is not permitted.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
)

var allowedSheetTypes = map[string]struct{}{
	"application/pdf": {},
	"image/png":       {},
	"image/jpeg":      {},
}

// FileStorage abstracts upload destinations. Names passed to Upload are unique per upload,
// and Delete removes the asset stored under such a name.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
	Delete(ctx context.Context, name string) error
}

// AnswerSheetService stores scanned free-text answers and records them as answers.
type AnswerSheetService interface {
	Upload(ctx context.Context, userID, attemptID, questionID uint, file *multipart.FileHeader) (dto.AnswerResponse, error)
}

type answerSheetService struct {
	storage FileStorage
	answers AnswerService
	logger  zerolog.Logger
	maxSize int64
	tracer  trace.Tracer
}

// NewAnswerSheetService constructs the answer sheet upload service.
func NewAnswerSheetService(storage FileStorage, answers AnswerService, maxSizeMB int, logger zerolog.Logger) AnswerSheetService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &answerSheetService{
		storage: storage,
		answers: answers,
		logger:  logger.With().Str("component", "answer_sheet_service").Logger(),
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		tracer:  otel.Tracer("github.com/noah-isme/rankpaper-api/internal/service/answer_sheet"),
	}
}

func (s *answerSheetService) Upload(ctx context.Context, userID, attemptID, questionID uint, file *multipart.FileHeader) (dto.AnswerResponse, error) {
	ctx, span := s.tracer.Start(ctx, "answer_sheet.upload", trace.WithAttributes(
		attribute.Int64("upload.attempt_id", int64(attemptID)),
		attribute.Int64("upload.question_id", int64(questionID)),
		attribute.Int64("upload.max_bytes", s.maxSize),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		observability.AnswerSheetLatency().Observe(time.Since(start).Seconds())
	}()

	if file == nil {
		span.SetStatus(codes.Error, "file_missing")
		return dto.AnswerResponse{}, ErrUploadRequired
	}
	if file.Size > s.maxSize {
		observability.AnswerSheetRejected().WithLabelValues("size").Inc()
		span.SetStatus(codes.Error, "payload too large")
		return dto.AnswerResponse{}, ErrUploadTooLarge
	}

	question, err := s.answers.EnsureWritable(ctx, userID, attemptID, questionID)
	if err != nil {
		span.RecordError(err)
		return dto.AnswerResponse{}, err
	}
	if question.Section == models.SectionObjective {
		observability.AnswerSheetRejected().WithLabelValues("section").Inc()
		return dto.AnswerResponse{}, ErrSectionMismatch
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		return dto.AnswerResponse{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		return dto.AnswerResponse{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		observability.AnswerSheetRejected().WithLabelValues("size").Inc()
		return dto.AnswerResponse{}, ErrUploadTooLarge
	}

	detected := mimetype.Detect(buf.Bytes())
	mime := strings.ToLower(detected.String())
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	span.SetAttributes(attribute.String("upload.detected_mime", mime))
	if _, ok := allowedSheetTypes[mime]; !ok {
		observability.AnswerSheetRejected().WithLabelValues("type").Inc()
		span.SetStatus(codes.Error, "type not allowed")
		return dto.AnswerResponse{}, ErrUploadTypeNotAllowed
	}

	name := fmt.Sprintf("attempt-%d-question-%d-%s%s", attemptID, questionID, uuid.NewString(), detected.Extension())
	ref, err := s.storage.Upload(ctx, name, bytes.NewReader(buf.Bytes()))
	if err != nil {
		observability.AnswerSheetRejected().WithLabelValues("storage").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.AnswerResponse{}, err
	}

	answer, err := s.answers.Upsert(ctx, userID, attemptID, questionID, dto.AnswerUpsertRequest{UploadRef: ref})
	if err != nil {
		span.RecordError(err)
		s.discard(ctx, attemptID, name, ref, file.Filename)
		return dto.AnswerResponse{}, err
	}

	span.SetStatus(codes.Ok, "stored")
	return answer, nil
}

// discard removes a stored sheet whose answer write was rejected, typically because the
// attempt closed while the upload was in flight.
func (s *answerSheetService) discard(ctx context.Context, attemptID uint, name, ref, original string) {
	event := s.logger.Warn().
		Uint("attempt_id", attemptID).
		Str("upload_ref", ref).
		Str("original_name", filepath.Base(original))

	if err := s.storage.Delete(ctx, name); err != nil {
		observability.AnswerSheetRejected().WithLabelValues("orphaned").Inc()
		event.Err(err).Msg("answer sheet rejected and left in storage for cleanup")
		return
	}
	event.Msg("answer sheet rejected and removed from storage")
}
