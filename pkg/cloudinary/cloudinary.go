package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

const defaultFolder = "rankpaper/answer-sheets"

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Service stores answer sheets in Cloudinary.
type Service struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	folder := strings.Trim(cfg.Folder, "/")
	if folder == "" {
		folder = defaultFolder
	}

	return &Service{
		client: cld,
		folder: folder,
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Upload stores the sheet under a public id derived from name and returns its secure URL.
// Existing assets are never replaced.
func (s *Service) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	params := uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     PublicID(name),
		ResourceType: "auto",
		Overwrite:    api.Bool(false),
		Tags:         []string{"answer-sheet"},
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload answer sheet: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected answer sheet: %s", result.Error.Message)
	}

	s.logger.Info().Str("public_id", result.PublicID).Msg("answer sheet uploaded")

	return result.SecureURL, nil
}

// Delete destroys the sheet previously uploaded under name.
func (s *Service) Delete(ctx context.Context, name string) error {
	result, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     s.folder + "/" + PublicID(name),
		ResourceType: "image",
		Invalidate:   api.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to delete answer sheet: %w", err)
	}
	if result.Error.Message != "" {
		return fmt.Errorf("cloudinary rejected delete: %s", result.Error.Message)
	}

	s.logger.Info().Str("public_id", PublicID(name)).Str("result", result.Result).Msg("answer sheet deleted")

	return nil
}

// PublicID normalises a file name into a stable Cloudinary public id.
func PublicID(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, strings.ToLower(base))

	base = strings.Trim(base, "-")
	if base == "" {
		return "answer-sheet"
	}
	return base
}
