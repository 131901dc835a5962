package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// PhotoStore keeps listing photos in an S3-compatible bucket and returns the
// public URL the catalog serves them from.
type PhotoStore interface {
	StorePhoto(ctx context.Context, key string, photo io.Reader, contentType string) (publicURL string, err error)
}

// BucketConfig points the store at a MinIO or S3 endpoint. PublicBaseURL is
// what gets embedded in listing photo URLs; it defaults to the endpoint,
// which only works when buyers can reach the storage host directly.
type BucketConfig struct {
	Endpoint      string
	UseSSL        bool
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
}

// Bucket is the MinIO-backed photo store. The bucket is created lazily on
// first upload and opened for public reads, since photo URLs are served to
// buyers without auth.
type Bucket struct {
	bucket        string
	publicBaseURL string
	client        *minio.Client
	logger        *slog.Logger
	initOnce      sync.Once
	initErr       error
}

func NewBucket(cfg BucketConfig, logger *slog.Logger) (*Bucket, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	name := strings.TrimSpace(cfg.Bucket)
	if name == "" {
		return nil, errors.New("s3: bucket is required")
	}

	client, err := minio.New(hostOf(endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey), ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}

	base := strings.TrimSpace(cfg.PublicBaseURL)
	if base == "" {
		base = endpoint
	}
	return &Bucket{
		bucket:        name,
		publicBaseURL: strings.TrimRight(base, "/"),
		client:        client,
		logger:        logger,
	}, nil
}

// StorePhoto uploads one listing photo. Only image payloads are accepted;
// listing handlers pass the multipart part's content type through unchanged.
func (b *Bucket) StorePhoto(ctx context.Context, key string, photo io.Reader, contentType string) (string, error) {
	if photo == nil {
		return "", errors.New("s3: photo reader is required")
	}
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("s3: photo key is required")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("s3: listing photos must be images, got %q", contentType)
	}
	if err := b.ensureBucket(ctx); err != nil {
		return "", err
	}

	_, err := b.client.PutObject(ctx, b.bucket, key, photo, -1, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("s3: put photo: %w", err)
	}

	publicURL := b.photoURL(key)
	if b.logger != nil {
		b.logger.Info("listing photo stored", "bucket", b.bucket, "key", key, "url", publicURL)
	}
	return publicURL, nil
}

// Disabled is the photo store used when no storage endpoint is configured.
// Photo uploads fail; the rest of the marketplace keeps working.
type Disabled struct{}

func (Disabled) StorePhoto(_ context.Context, _ string, _ io.Reader, _ string) (string, error) {
	return "", errors.New("s3: photo storage is not configured")
}

func (b *Bucket) ensureBucket(ctx context.Context) error {
	b.initOnce.Do(func() {
		exists, err := b.client.BucketExists(ctx, b.bucket)
		if err != nil {
			b.initErr = fmt.Errorf("s3: check bucket: %w", err)
			return
		}
		if exists {
			return
		}
		if err := b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{}); err != nil {
			b.initErr = fmt.Errorf("s3: create bucket: %w", err)
			return
		}
		if err := b.allowPublicRead(ctx); err != nil {
			b.initErr = err
		}
	})
	return b.initErr
}

func (b *Bucket) allowPublicRead(ctx context.Context) error {
	policy := fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, b.bucket)
	if err := b.client.SetBucketPolicy(ctx, b.bucket, policy); err != nil {
		return fmt.Errorf("s3: set bucket policy: %w", err)
	}
	return nil
}

func (b *Bucket) photoURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", b.publicBaseURL, b.bucket, strings.TrimLeft(key, "/"))
}

func hostOf(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

var _ PhotoStore = (*Bucket)(nil)
var _ PhotoStore = Disabled{}
