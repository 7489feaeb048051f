// Package storage provides object storage for listing photos.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// PhotoStore persists listing photos and hands out read URLs.
type PhotoStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// MinioPhotoStore implements PhotoStore for MinIO/S3 compatible storage.
type MinioPhotoStore struct {
	client *minio.Client
	bucket string
}

// NewMinioPhotoStore connects to MinIO and ensures the bucket exists.
func NewMinioPhotoStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioPhotoStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return &MinioPhotoStore{client: client, bucket: bucket}, nil
}

// Put uploads a photo.
func (m *MinioPhotoStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put photo: %w", err)
	}
	return nil
}

// PresignGet generates a pre-signed GET URL.
func (m *MinioPhotoStore) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	url, err := m.client.PresignedGetObject(ctx, m.bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign photo: %w", err)
	}
	return url.String(), nil
}
