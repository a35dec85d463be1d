package aws

import (
	"context"
	"fmt"
	"io"

	"statshub/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// FileService stores exported summaries in object storage
type FileService interface {
	UploadFile(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	TestConnection(ctx context.Context) error
}

type fileService struct {
	s3       *s3.Client
	uploader *manager.Uploader
	bucket   string
	region   string
}

func NewFileService(ctx context.Context, cfg config.AWSConfig) (FileService, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	// Static keys are optional; the default chain covers instance roles
	if cfg.AccessKey != "" {
		credProvider := aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     cfg.AccessKey,
				SecretAccessKey: cfg.SecretKey,
			}, nil
		})
		opts = append(opts, awsconfig.WithCredentialsProvider(credProvider))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)

	log.Info().
		Str("bucket", cfg.Bucket).
		Str("region", cfg.Region).
		Msg("S3 file service initialized")

	return &fileService{
		s3:       client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		region:   cfg.Region,
	}, nil
}

func (s *fileService) UploadFile(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to upload file")
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}

func (s *fileService) TestConnection(ctx context.Context) error {
	// One key is enough to prove credentials and bucket
	_, err := s.s3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		log.Error().Err(err).Str("bucket", s.bucket).Msg("AWS S3 connection test failed")
	}

	return err
}
