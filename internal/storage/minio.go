package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"vidqueue/internal/services"
)

// MinIOOptions configures the bucket backend.
type MinIOOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// MinIO stores artifacts in an S3-compatible bucket.
type MinIO struct {
	client *minio.Client
	bucket string
}

// NewMinIO connects to the endpoint and creates the bucket when missing.
func NewMinIO(ctx context.Context, opts MinIOOptions) (*MinIO, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, errors.New("minio storage: endpoint required")
	}
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, errors.New("minio storage: bucket required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio storage: client: %w", err)
	}
	m := &MinIO{client: client, bucket: opts.Bucket}
	if err := m.ensureBucket(ctx, opts.Region); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MinIO) ensureBucket(ctx context.Context, region string) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return services.Wrap(services.ErrTransient, "storage", "check bucket",
			fmt.Sprintf("Failed to reach bucket %s", m.bucket), err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return services.Wrap(services.ErrTransient, "storage", "create bucket",
			fmt.Sprintf("Failed to create bucket %s", m.bucket), err)
	}
	return nil
}

// Bucket returns the bucket name.
func (m *MinIO) Bucket() string {
	return m.bucket
}

// Put uploads localPath to key.
func (m *MinIO) Put(ctx context.Context, localPath, key, contentType string) error {
	cleaned, err := CleanKey(key)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = ContentType(cleaned)
	}
	if _, err := m.client.FPutObject(ctx, m.bucket, cleaned, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return services.Wrap(services.ErrTransient, "storage", "put",
			fmt.Sprintf("Failed to upload %s", cleaned), err)
	}
	return nil
}

// URL presigns a GET for key valid for expiry.
func (m *MinIO) URL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	if expiry <= 0 {
		expiry = time.Hour
	}
	u, err := m.client.PresignedGetObject(ctx, m.bucket, cleaned, expiry, url.Values{})
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "storage", "presign",
			fmt.Sprintf("Failed to presign %s", cleaned), err)
	}
	return u.String(), nil
}
