package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

const defaultResourceType = "video"

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName    string
	APIKey       string
	APISecret    string
	Folder       string
	ResourceType string
}

// Service stores submission media on Cloudinary.
type Service struct {
	client       *cloudinary.Cloudinary
	folder       string
	resourceType string
	logger       zerolog.Logger
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

	resourceType := strings.TrimSpace(cfg.ResourceType)
	if resourceType == "" {
		resourceType = defaultResourceType
	}

	return &Service{
		client:       cld,
		folder:       cfg.Folder,
		resourceType: resourceType,
		logger:       logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Upload sends the file to Cloudinary and returns its secure URL.
func (s *Service) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	params := uploader.UploadParams{
		Folder:       strings.Trim(s.folder, "/"),
		PublicID:     BuildPublicID(name, time.Now()),
		ResourceType: s.resourceType,
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload asset: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected upload: %s", result.Error.Message)
	}

	s.logger.Info().
		Str("public_id", result.PublicID).
		Str("resource_type", result.ResourceType).
		Int("bytes", result.Bytes).
		Msg("file uploaded to cloudinary")

	return result.SecureURL, nil
}

// BuildPublicID derives a unique, URL-safe public id from a file name.
func BuildPublicID(name string, at time.Time) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "video"
	}

	return fmt.Sprintf("%s-%d", base, at.UnixNano())
}
