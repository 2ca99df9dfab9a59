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
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/creatorhub-api/internal/dto"
	"github.com/noah-isme/creatorhub-api/internal/observability"
	"github.com/noah-isme/creatorhub-api/internal/repository"
)

var (
	// ErrVideoRequired indicates the request carried no file.
	ErrVideoRequired = errors.New("video file is required")
	// ErrVideoTooLarge indicates the payload exceeded the configured limit.
	ErrVideoTooLarge = errors.New("video exceeds maximum allowed size")
	// ErrVideoTypeNotAllowed indicates the sniffed content is not a video.
	ErrVideoTypeNotAllowed = errors.New("file is not a supported video")
)

// sniffLength matches the mimetype default read limit.
const sniffLength = 3072

// FileStorage abstracts durable upload destinations.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// VideoService stores submission videos and records their durable URLs.
type VideoService interface {
	Upload(ctx context.Context, submissionID string, file *multipart.FileHeader) (dto.VideoUploadResponse, error)
}

type videoService struct {
	storage     FileStorage
	submissions repository.SubmissionRepository
	logger      zerolog.Logger
	maxSize     int64
	tracer      trace.Tracer
}

// NewVideoService constructs a video service. maxSizeMB defaults to 200.
func NewVideoService(storage FileStorage, submissions repository.SubmissionRepository, maxSizeMB int, logger zerolog.Logger) VideoService {
	if maxSizeMB <= 0 {
		maxSizeMB = 200
	}
	return &videoService{
		storage:     storage,
		submissions: submissions,
		logger:      logger.With().Str("component", "video_service").Logger(),
		maxSize:     int64(maxSizeMB) * 1024 * 1024,
		tracer:      otel.Tracer("github.com/noah-isme/creatorhub-api/internal/service/video"),
	}
}

func (s *videoService) Upload(ctx context.Context, submissionID string, file *multipart.FileHeader) (dto.VideoUploadResponse, error) {
	ctx, span := s.tracer.Start(ctx, "video.store", trace.WithAttributes(
		attribute.String("submission.id", submissionID),
		attribute.Int64("video.max_bytes", s.maxSize),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		observability.VideoUploadLatency().Observe(time.Since(start).Seconds())
	}()

	reject := func(err error, outcome string) (dto.VideoUploadResponse, error) {
		observability.VideoUploads().WithLabelValues(outcome).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return dto.VideoUploadResponse{}, err
	}

	if file == nil {
		return reject(ErrVideoRequired, "invalid")
	}
	span.SetAttributes(
		attribute.String("video.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("video.request_size", file.Size),
	)

	if _, err := s.submissions.GetByID(ctx, submissionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return reject(ErrSubmissionNotFound, "not_found")
		}
		return reject(err, "error")
	}

	if file.Size > s.maxSize {
		return reject(ErrVideoTooLarge, "size")
	}

	handle, err := file.Open()
	if err != nil {
		return reject(err, "error")
	}
	defer handle.Close()

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(handle, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return reject(err, "error")
	}
	head = head[:n]

	detected := mimetype.Detect(head)
	if !strings.HasPrefix(detected.String(), "video/") {
		return reject(ErrVideoTypeNotAllowed, "type")
	}
	span.SetAttributes(attribute.String("video.detected_mime", detected.String()))

	name := sanitizeVideoName(file.Filename, detected.Extension())
	counter := &countingReader{reader: io.MultiReader(bytes.NewReader(head), io.LimitReader(handle, s.maxSize-int64(n)+1))}

	url, err := s.storage.Upload(ctx, name, counter)
	if err != nil {
		return reject(err, "storage")
	}
	if counter.read > s.maxSize {
		s.logger.Warn().Str("submission_id", submissionID).Str("url", url).Msg("stored video exceeded limit after upload")
		return reject(ErrVideoTooLarge, "size")
	}

	submission, err := s.submissions.AppendVideo(ctx, submissionID, url)
	if err != nil {
		return reject(err, "persistence")
	}

	observability.VideoUploads().WithLabelValues("stored").Inc()
	span.SetStatus(codes.Ok, "stored")

	s.logger.Info().
		Str("submission_id", submissionID).
		Str("mime", detected.String()).
		Int64("size_bytes", counter.read).
		Msg("submission video stored")

	return dto.VideoUploadResponse{
		URL:        url,
		MimeType:   detected.String(),
		SizeBytes:  counter.read,
		Submission: dto.NewSubmissionResponse(submission),
	}, nil
}

type countingReader struct {
	reader io.Reader
	read   int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.reader.Read(p)
	c.read += int64(n)
	return n, err
}

func sanitizeVideoName(name, detectedExt string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("video-%d", time.Now().Unix())
	}

	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := videoExtensions[strings.TrimPrefix(ext, ".")]; !ok {
		ext = detectedExt
	}
	if ext == "" {
		ext = ".mp4"
	}
	return base + ext
}
