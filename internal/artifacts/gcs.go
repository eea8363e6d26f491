package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/newscheck/newscheck/internal/config"
)

type gcsFetcher struct {
	client *storage.Client
	bucket string
}

func newGCSFetcher(ctx context.Context, bucket string, cfg config.ArtifactsConfig) (*gcsFetcher, error) {
	var opts []option.ClientOption
	if f := strings.TrimSpace(cfg.GCSCredentialsFile); f != "" {
		opts = append(opts, option.WithCredentialsFile(f))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &gcsFetcher{client: client, bucket: bucket}, nil
}

func (g *gcsFetcher) Fetch(ctx context.Context, key string, w io.WriterAt) error {
	reader, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("opening object reader: %w", err)
	}
	defer reader.Close()

	if _, err := io.Copy(io.NewOffsetWriter(w, 0), reader); err != nil {
		return fmt.Errorf("reading object data: %w", err)
	}
	return nil
}

func (g *gcsFetcher) Close() error {
	return g.client.Close()
}
