// minio.go - blob storage backed by a MinIO/S3 bucket
package server

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BlobStore stores and retrieves raw file bytes by object key. The Postgres
// registry is the source of truth; the blob store holds only opaque content.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		secure = (u.Scheme == "https")
		return u.Host, secure, nil
	}

	// No scheme provided, treat as host:port (insecure by default for local MinIO).
	return raw, false, nil
}

func newMinioClient() (*minio.Client, string, error) {
	rawEndpoint := os.Getenv("FG_S3_ENDPOINT")
	accessKey := os.Getenv("FG_S3_ACCESS_KEY")
	secretKey := os.Getenv("FG_S3_SECRET_KEY")
	bucket := os.Getenv("FG_BUCKET")
	if bucket == "" {
		bucket = "filegate"
	}

	if rawEndpoint == "" || accessKey == "" || secretKey == "" {
		return nil, "", fmt.Errorf("object storage configuration incomplete")
	}

	endpoint, secure, err := normaliseEndpoint(rawEndpoint)
	if err != nil {
		return nil, "", err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, "", err
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, "", fmt.Errorf("creating bucket %s: %w", bucket, err)
		}
		Info("bucket_created", map[string]any{"bucket": bucket})
	}

	return client, bucket, nil
}

// MinioStore is the production BlobStore. All calls run through a circuit
// breaker so a dead object store fails requests fast instead of piling up
// blocked uploads.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	breaker *CircuitBreaker
}

// NewMinioStore builds the store from FG_S3_* environment configuration.
func NewMinioStore() (*MinioStore, error) {
	client, bucket, err := newMinioClient()
	if err != nil {
		return nil, err
	}
	return &MinioStore{
		client:  client,
		bucket:  bucket,
		breaker: NewCircuitBreaker("object-storage", 5, 30*time.Second),
	}, nil
}

// Put streams r into the bucket under key and returns the stored size.
func (m *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error) {
	var written int64
	err := m.breaker.Execute(func() error {
		info, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
			ContentType: contentType,
		})
		if err != nil {
			return err
		}
		written = info.Size
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// Get opens a read stream for the object. The object is stat'ed before the
// stream is handed back so a missing key fails here, not mid-copy.
func (m *MinioStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	var rc io.ReadCloser
	err := m.breaker.Execute(func() error {
		obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return err
		}
		if _, err := obj.Stat(); err != nil {
			_ = obj.Close()
			return err
		}
		rc = obj
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rc, nil
}

// Delete removes the object.
func (m *MinioStore) Delete(ctx context.Context, key string) error {
	return m.breaker.Execute(func() error {
		return m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
	})
}

// Check probes the bucket; used by the health endpoints.
func (m *MinioStore) Check(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket does not exist: %s", m.bucket)
	}
	return nil
}

// Client exposes the underlying MinIO client for the cleanup job.
func (m *MinioStore) Client() *minio.Client {
	return m.client
}

// Bucket returns the configured bucket name.
func (m *MinioStore) Bucket() string {
	return m.bucket
}
