package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/newscheck/newscheck/internal/config"
	"github.com/newscheck/newscheck/internal/redact"
)

var (
	// ErrUnsupportedSource is returned for artifact sources other than gs:// and s3://.
	ErrUnsupportedSource = errors.New("unsupported artifact source")
	// ErrObjectNotFound is returned by a Fetcher when the remote object does not exist.
	ErrObjectNotFound = errors.New("artifact object not found")
)

// Source is a parsed remote artifact location such as gs://bucket/models/v3.
type Source struct {
	Scheme string
	Bucket string
	Prefix string
}

// ParseSource parses gs://bucket/prefix and s3://bucket/prefix locations.
func ParseSource(raw string) (Source, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Source{}, fmt.Errorf("parse artifact source: %w", err)
	}
	switch u.Scheme {
	case "gs", "s3":
	default:
		return Source{}, fmt.Errorf("%w: %q", ErrUnsupportedSource, raw)
	}
	if u.Host == "" {
		return Source{}, fmt.Errorf("artifact source %q has no bucket", raw)
	}
	return Source{
		Scheme: u.Scheme,
		Bucket: u.Host,
		Prefix: strings.Trim(u.Path, "/"),
	}, nil
}

// Key returns the object key for an artifact file name.
func (s Source) Key(name string) string {
	if s.Prefix == "" {
		return name
	}
	return path.Join(s.Prefix, name)
}

func (s Source) String() string {
	return s.Scheme + "://" + s.Bucket + "/" + s.Prefix
}

// Fetcher downloads objects from a bucket.
type Fetcher interface {
	// Fetch writes the object at key into w, or returns ErrObjectNotFound.
	Fetch(ctx context.Context, key string, w io.WriterAt) error
	Close() error
}

// NewFetcher builds the bucket client for the source scheme.
func NewFetcher(ctx context.Context, src Source, cfg config.ArtifactsConfig) (Fetcher, error) {
	switch src.Scheme {
	case "gs":
		return newGCSFetcher(ctx, src.Bucket, cfg)
	case "s3":
		return newS3Fetcher(ctx, src.Bucket, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, src.Scheme)
	}
}

// fetchAttempts bounds retries of transient download errors.
const fetchAttempts = 3

// Sync downloads the required and optional files into dir. A required file missing
// remotely is an error; a missing optional file is skipped. Each file is written to a
// temp file and renamed into place.
func Sync(ctx context.Context, f Fetcher, src Source, dir string, required, optional []string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	for _, name := range required {
		if err := fetchFile(ctx, f, src, dir, name); err != nil {
			if errors.Is(err, ErrObjectNotFound) {
				return fmt.Errorf("required artifact %s: %w", src.Key(name), err)
			}
			return err
		}
	}
	for _, name := range optional {
		if err := fetchFile(ctx, f, src, dir, name); err != nil {
			if errors.Is(err, ErrObjectNotFound) {
				redact.Logf("artifacts: optional %s not present in %s, skipping", name, src)
				continue
			}
			return err
		}
	}
	return nil
}

func fetchFile(ctx context.Context, f Fetcher, src Source, dir, name string) error {
	local, err := resolvePath(dir, name)
	if err != nil {
		return err
	}
	key := src.Key(name)
	start := time.Now()

	b := retry.WithMaxRetries(fetchAttempts-1, retry.NewFibonacci(200*time.Millisecond))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		err := downloadAtomic(ctx, f, key, local)
		if err == nil || errors.Is(err, ErrObjectNotFound) || errors.Is(err, context.Canceled) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return err
		}
		return fmt.Errorf("download %s: %w", key, err)
	}

	info, statErr := os.Stat(local)
	if statErr == nil {
		redact.Logf("artifacts: fetched %s (%d bytes) in %s", key, info.Size(), time.Since(start).Round(time.Millisecond))
	}
	return nil
}

func downloadAtomic(ctx context.Context, f Fetcher, key, local string) error {
	tmp, err := os.CreateTemp(filepath.Dir(local), filepath.Base(local)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := f.Fetch(ctx, key, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), local); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(local), err)
	}
	return nil
}
