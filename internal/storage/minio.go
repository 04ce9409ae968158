package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"photostore/internal/config"
)

// deleteAttempts bounds the retry loop on the idempotent delete path.
const deleteAttempts = 3

// minioBackend implements Backend on an S3-compatible object store
// (MinIO, AWS S3, etc.). A single-key PutObject is atomic for readers,
// which satisfies the replace-in-place contract without a rename step.
// It is safe for concurrent use by multiple goroutines.
type minioBackend struct {
	client *minio.Client
	bucket string
}

// NewMinIO creates a new S3-compatible storage backend.
// It validates connectivity and ensures the bucket exists (creates it if missing).
func NewMinIO(cfg config.MinIOConfig) (Backend, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	mb := &minioBackend{client: cli, bucket: cfg.Bucket}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return mb, nil
}

func (m *minioBackend) mapErr(key string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return fmt.Errorf("%w: %s: %v", ErrIO, key, err)
}

func (m *minioBackend) Store(ctx context.Context, key string, r io.Reader) (int64, error) {
	info, err := m.client.PutObject(ctx, m.bucket, key, r, -1, minio.PutObjectOptions{})
	if err != nil {
		return 0, fmt.Errorf("%w: put %s: %v", ErrIO, key, err)
	}
	return info.Size, nil
}

func (m *minioBackend) ReadFull(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, m.mapErr(key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, m.mapErr(key, err)
	}
	return data, nil
}

func (m *minioBackend) ReadRange(ctx context.Context, key string, start, end int64) (*RangeResult, error) {
	st, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, m.mapErr(key, err)
	}
	size := st.Size

	if start < 0 || start >= size {
		return nil, fmt.Errorf("%w: start=%d size=%d", ErrRangeInvalid, start, size)
	}
	if end < 0 || end >= size {
		end = size - 1
	} else if end < start {
		return nil, fmt.Errorf("%w: start=%d end=%d", ErrRangeInvalid, start, end)
	}

	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(start, end); err != nil {
		return nil, fmt.Errorf("%w: set range: %v", ErrIO, err)
	}
	obj, err := m.client.GetObject(ctx, m.bucket, key, opts)
	if err != nil {
		return nil, m.mapErr(key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, m.mapErr(key, err)
	}

	return &RangeResult{Data: data, Start: start, End: end, TotalSize: size}, nil
}

func (m *minioBackend) ReplaceInPlace(ctx context.Context, key string, newData []byte) error {
	if _, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{}); err != nil {
		return m.mapErr(key, err)
	}
	_, err := m.client.PutObject(ctx, m.bucket, key,
		bytes.NewReader(newData), int64(len(newData)), minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("%w: replace %s: %v", ErrIO, key, err)
	}
	return nil
}

func (m *minioBackend) Exists(ctx context.Context, key string) bool {
	_, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	return err == nil
}

func (m *minioBackend) Size(ctx context.Context, key string) (int64, error) {
	st, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return 0, m.mapErr(key, err)
	}
	return st.Size, nil
}

// Delete removes the object. RemoveObject is idempotent on the S3 side, so
// transient network failures are retried with a short linear backoff.
func (m *minioBackend) Delete(ctx context.Context, key string) error {
	var err error
	for attempt := 1; attempt <= deleteAttempts; attempt++ {
		err = m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	return fmt.Errorf("%w: delete %s: %v", ErrIO, key, err)
}
