// Package assets stores uploaded binaries (note images, avatars) in an
// S3-compatible object store and hands back durable URLs. The rest of the
// application only ever sees the URL string.
package assets

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"inkwell/api/internal/util"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL overrides the URL base in returned links, for deployments
	// where the store sits behind a CDN or reverse proxy.
	PublicURL string
}

type Service struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// New connects to the object store and ensures the bucket exists.
func New(ctx context.Context, cfg Config) (*Service, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("make bucket %s: %w", cfg.Bucket, err)
		}
	}

	baseURL := strings.TrimRight(cfg.PublicURL, "/")
	if baseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		baseURL = scheme + "://" + cfg.Endpoint
	}

	return &Service{client: client, bucket: cfg.Bucket, baseURL: baseURL}, nil
}

// Upload writes the payload under a random name in the given folder and
// returns the public URL. The binary is never inspected.
func (s *Service) Upload(ctx context.Context, folder, filename, contentType string, reader io.Reader, size int64) (string, error) {
	ext := path.Ext(filename)
	if contentType == "" {
		contentType = mime.TypeByExtension(ext)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectName := util.NewID("") + ext
	if folder != "" {
		objectName = strings.Trim(folder, "/") + "/" + objectName
	}

	if _, err := s.client.PutObject(ctx, s.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return "", fmt.Errorf("put object %s: %w", objectName, err)
	}

	return s.baseURL + "/" + s.bucket + "/" + objectName, nil
}
