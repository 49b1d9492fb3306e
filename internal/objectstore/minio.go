// Package objectstore handles dataset file uploads to an S3-compatible store.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/africaresearchbase/arb/internal/conf"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store wraps a MinIO client for dataset file storage.
type Store struct {
	client         *minio.Client
	bucketName     string
	publicEndpoint string
	useSSL         bool
	logger         *slog.Logger
}

// New creates a Store from the object store settings and ensures the
// bucket exists.
func New(settings *conf.ObjectStoreSettings, logger *slog.Logger) (*Store, error) {
	client, err := minio.New(settings.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(settings.AccessKey, settings.SecretKey, ""),
		Secure: settings.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	publicEndpoint := strings.TrimSuffix(strings.TrimSpace(settings.PublicEndpoint), "/")
	if publicEndpoint == "" {
		publicEndpoint = settings.Endpoint
	}

	store := &Store{
		client:         client,
		bucketName:     settings.Bucket,
		publicEndpoint: publicEndpoint,
		useSSL:         settings.UseSSL,
		logger:         logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, settings.Bucket)
	if err != nil {
		// Endpoint may be unreachable at startup; uploads will surface the error
		logger.Warn("failed to check bucket existence, continuing", "bucket", settings.Bucket, "error", err)
	} else if !exists {
		if err := client.MakeBucket(ctx, settings.Bucket, minio.MakeBucketOptions{}); err != nil {
			logger.Error("failed to create bucket", "bucket", settings.Bucket, "error", err)
		} else {
			logger.Info("bucket created", "bucket", settings.Bucket)
		}
	}

	logger.Info("object store initialized",
		"endpoint", settings.Endpoint,
		"public_endpoint", publicEndpoint,
		"bucket", settings.Bucket)

	return store, nil
}

// Upload stores a dataset file under a date-partitioned unique key and
// returns the object key and public URL.
func (s *Store) Upload(ctx context.Context, reader io.Reader, filename, contentType string, size int64) (key, url string, err error) {
	ext := filepath.Ext(filename)
	key = fmt.Sprintf("datasets/%s/%s%s", time.Now().Format("2006-01-02"), uuid.New().String(), ext)

	_, err = s.client.PutObject(ctx, s.bucketName, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to upload dataset file: %w", err)
	}

	url = s.ObjectURL(key)

	s.logger.Info("dataset file uploaded",
		"filename", filename,
		"key", key,
		"size", size)

	return key, url, nil
}

// Delete removes an object by key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// ObjectURL returns the public URL for an object key.
func (s *Store) ObjectURL(key string) string {
	if strings.Contains(s.publicEndpoint, "://") {
		return fmt.Sprintf("%s/%s/%s", s.publicEndpoint, s.bucketName, key)
	}
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.publicEndpoint, s.bucketName, key)
}

// HealthCheck verifies the object store connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("object store health check failed: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", s.bucketName)
	}
	return nil
}
