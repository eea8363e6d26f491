package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/newscheck/newscheck/internal/config"
)

type s3Fetcher struct {
	downloader *manager.Downloader
	bucket     string
}

func newS3Fetcher(ctx context.Context, bucket string, cfg config.ArtifactsConfig) (*s3Fetcher, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if r := strings.TrimSpace(cfg.S3Region); r != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(r))
	}
	if cfg.S3AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}
	sdkConfig, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.S3Endpoint)
	client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if endpoint != "" {
			// minio and other S3-compatible stores
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &s3Fetcher{
		downloader: manager.NewDownloader(client),
		bucket:     bucket,
	}, nil
}

func (f *s3Fetcher) Fetch(ctx context.Context, key string, w io.WriterAt) error {
	_, err := f.downloader.Download(ctx, w, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &noKey) || errors.As(err, &notFound) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("get object: %w", err)
	}
	return nil
}

func (f *s3Fetcher) Close() error { return nil }
