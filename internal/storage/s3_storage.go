package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"tvicl/server/internal/config"
	"tvicl/server/internal/utils"
)

// PresignExpiry is how long an upload URL stays valid.
const PresignExpiry = 15 * time.Minute

var (
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrObjectNotFound         = errors.New("object not found")
)

// AllowedContentTypes maps accepted upload types to the extension stored in the key.
var AllowedContentTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"video/mp4":       ".mp4",
	"application/pdf": ".pdf",
}

// PresignedUpload tells the client where to PUT a file and where it will be served from.
type PresignedUpload struct {
	UploadURL string    `json:"uploadUrl"`
	Key       string    `json:"key"`
	PublicURL string    `json:"publicUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// IS3Storage is the media store behind property photos, videos and documents.
type IS3Storage interface {
	GeneratePresignedPutURL(ctx context.Context, userID utils.SixID, filename, contentType string) (*PresignedUpload, error)
	GetObject(ctx context.Context, key string) ([]byte, string, error)
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	PublicURL(key string) string
}

type s3Storage struct {
	cfg           *config.Config
	s3Client      *s3.Client
	presignClient *s3.PresignClient
}

// NewS3Storage builds an S3 client from the static credentials in cfg.
func NewS3Storage(ctx context.Context, cfg *config.Config) (IS3Storage, error) {
	awsCfg, err := aws_config.LoadDefaultConfig(ctx,
		aws_config.WithRegion(cfg.AwsRegion),
		aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg)
	return &s3Storage{
		cfg:           cfg,
		s3Client:      s3Client,
		presignClient: s3.NewPresignClient(s3Client),
	}, nil
}

// ObjectKey builds the key for a new upload: uploads/<user>/<uuid>_<slugified name><ext>.
func ObjectKey(userID utils.SixID, filename, contentType string) (string, error) {
	ext, ok := AllowedContentTypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}
	base := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	name := utils.Slugify(base)
	if name == "" {
		name = "file"
	}
	return fmt.Sprintf("uploads/%s/%s_%s%s", userID, uuid.NewString(), name, ext), nil
}

func (s *s3Storage) GeneratePresignedPutURL(ctx context.Context, userID utils.SixID, filename, contentType string) (*PresignedUpload, error) {
	key, err := ObjectKey(userID, filename, contentType)
	if err != nil {
		return nil, err
	}

	req, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AwsS3Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(PresignExpiry))
	if err != nil {
		return nil, fmt.Errorf("failed to generate presigned PUT URL for key %s: %w", key, err)
	}

	log.Printf("Generated presigned upload for key %s", key)
	return &PresignedUpload{
		UploadURL: req.URL,
		Key:       key,
		PublicURL: s.PublicURL(key),
		ExpiresAt: time.Now().Add(PresignExpiry),
	}, nil
}

// PublicURL is where a stored object is served from.
func (s *s3Storage) PublicURL(key string) string {
	if s.cfg.ImageBaseS3URL != "" {
		return s.cfg.ImageBaseS3URL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.AwsS3Bucket, s.cfg.AwsRegion, key)
}

func (s *s3Storage) GetObject(ctx context.Context, key string) ([]byte, string, error) {
	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.AwsS3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, "", fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, "", fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, aws.ToString(out.ContentType), nil
}

func (s *s3Storage) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AwsS3Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s: %w", key, err)
	}
	return nil
}
