package videohost

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/romariotrain/reelwork/internal/config"
	"github.com/romariotrain/reelwork/internal/video/models"
)

// FolderUploads is the S3 prefix for candidate videos.
const FolderUploads = "uploads"

type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	Bucket               string
	PresignExpireMinutes int
	Endpoint             string // S3-compatible endpoint, e.g. MinIO; empty for AWS
}

// S3 hands out presigned PUT URLs into the uploads bucket. The object key is the asset id.
type S3 struct {
	presign *s3.PresignClient
	cfg     S3Config
	newKey  func() string
}

func NewS3(ctx context.Context, cfg S3Config, logger zerolog.Logger) (*S3, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
		logger.Info().Str("region", cfg.Region).Str("bucket", cfg.Bucket).Msg("s3 client using static credentials")
	} else {
		logger.Warn().Msg("s3 client using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3{
		presign: s3.NewPresignClient(client),
		cfg:     cfg,
		newKey:  func() string { return UploadKey(uuid.NewString()) },
	}, nil
}

func (s *S3) Name() string { return config.HostS3 }

// UploadKey returns the object key uploads/{id}.mp4.
func UploadKey(id string) string {
	return path.Join(FolderUploads, id+".mp4")
}

// PresignExpire returns the configured presign duration.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}

// CreateUpload presigns a PUT without a content type so the client may send either container.
func (s *S3) CreateUpload(ctx context.Context) (models.UploadTarget, error) {
	if s.cfg.Bucket == "" {
		return models.UploadTarget{}, &ConfigError{
			Provider: s.Name(),
			Message:  "S3 upload bucket is missing. Set AWS_S3_UPLOADS_BUCKET (and AWS_REGION, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY).",
		}
	}

	key := s.newKey()
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.PresignExpire()
	})
	if err != nil {
		return models.UploadTarget{}, &ProviderError{
			Provider: s.Name(),
			Message:  "Failed to presign S3 upload URL.",
			Err:      err,
		}
	}

	return models.UploadTarget{
		AssetID:   key,
		UploadURL: req.URL,
		Provider:  s.Name(),
	}, nil
}
