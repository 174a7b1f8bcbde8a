// Package mirror copies downloaded files into an S3 compatible bucket.
package mirror

import (
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"cms-downloader/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Mirror interface {
	Put(ctx context.Context, localPath, key string) error
}

// Key is the object key of `localPath`: its path relative to `root` with
// forward slashes, under `prefix`.
func Key(root, localPath, prefix string) (string, error) {
	rel, err := filepath.Rel(root, localPath)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("'%s' is not under '%s'", localPath, root)
	}
	return path.Join(strings.Trim(prefix, "/"), filepath.ToSlash(rel)), nil
}

type MinioMirror struct {
	client *minio.Client
	bucket string
}

// NewMinioMirror connects to the configured endpoint and creates the bucket
// if it does not exist yet.
func NewMinioMirror(ctx context.Context, cfg config.Mirror) (*MinioMirror, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: "us-east-1",
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("error checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		err = client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: "us-east-1"})
		if err != nil {
			return nil, fmt.Errorf("error creating bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &MinioMirror{client: client, bucket: cfg.Bucket}, nil
}

func (m *MinioMirror) Put(ctx context.Context, localPath, key string) error {
	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := m.client.FPutObject(
		ctx,
		m.bucket,
		key,
		localPath,
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}
