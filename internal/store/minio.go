package store

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore wraps a MinIO client for lecture PDFs.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// NewMinioStore connects, ensures the bucket exists and returns a store whose
// object URLs are rooted at publicURL (or the endpoint when empty).
func NewMinioStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool, publicURL string) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	// Ensure bucket exists
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio make bucket: %w", err)
		}
	}

	if publicURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		publicURL = scheme + "://" + endpoint
	}
	return &MinioStore{client: client, bucket: bucket, baseURL: strings.TrimRight(publicURL, "/")}, nil
}

// Upload stores bytes under the given object key.
func (s *MinioStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	reader := bytes.NewReader(data)
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("minio put %s: %w", key, err)
	}
	return nil
}

// ObjectURL returns the canonical URL of key: <base>/<bucket>/<key>.
func (s *MinioStore) ObjectURL(key string) string {
	return s.baseURL + "/" + s.bucket + "/" + key
}

// ObjectKey is the inverse of ObjectURL. URLs on another host or outside
// the bucket are rejected with ErrForeignObject.
func (s *MinioStore) ObjectKey(objectURL string) (string, error) {
	return objectKey(s.baseURL, s.bucket, objectURL)
}

func objectKey(baseURL, bucket, objectURL string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("minio public url: %w", err)
	}
	u, err := url.Parse(objectURL)
	if err != nil {
		return "", ErrForeignObject.Wrap(err)
	}
	if !strings.EqualFold(u.Host, base.Host) {
		return "", ErrForeignObject
	}
	prefix := strings.TrimRight(base.Path, "/") + "/" + bucket + "/"
	key, ok := strings.CutPrefix(u.Path, prefix)
	if !ok || key == "" {
		return "", ErrForeignObject
	}
	return key, nil
}

// PresignGet returns a time-limited download URL for key.
func (s *MinioStore) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("minio presign %s: %w", key, err)
	}
	return u.String(), nil
}
