package upload

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/shenikar/civic_reporting_system/internal/config"
	"github.com/shenikar/civic_reporting_system/internal/service"
)

var allowedContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// S3Store сохраняет изображения в S3-совместимом хранилище и возвращает публичный URL
type S3Store struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
	now           func() time.Time
}

var _ service.ImageStore = (*S3Store)(nil)

func NewS3Store(cfg *config.Config) *S3Store {
	opts := s3.Options{
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		),
		Region: cfg.S3Region,
	}
	if cfg.S3Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.S3Endpoint)
		opts.UsePathStyle = true
	}

	base := cfg.S3PublicBaseURL
	if base == "" {
		base = publicURLFor(cfg)
	}

	return &S3Store{
		client:        s3.New(opts),
		bucket:        cfg.S3Bucket,
		publicBaseURL: strings.TrimRight(base, "/"),
		now:           time.Now,
	}
}

// Upload кладет объект под уникальным ключом и возвращает его URL.
// Содержимое изображения не проверяется.
func (s *S3Store) Upload(ctx context.Context, userID uuid.UUID, fileName, contentType string, body io.Reader, size int64) (string, error) {
	ext, ok := allowedContentTypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: unsupported content type %q", service.ErrValidation, contentType)
	}
	if e := strings.ToLower(filepath.Ext(fileName)); e != "" {
		ext = e
	}

	key := fmt.Sprintf("issues/%s/%d_%s%s", userID, s.now().Unix(), uuid.New().String(), ext)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return s.publicBaseURL + "/" + key, nil
}

func publicURLFor(cfg *config.Config) string {
	if cfg.S3Endpoint != "" {
		return strings.TrimRight(cfg.S3Endpoint, "/") + "/" + cfg.S3Bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3Bucket, cfg.S3Region)
}
