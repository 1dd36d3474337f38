package export

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const publishExpiry = 24 * time.Hour

// Uploader publishes rendered exports and hands back a download URL.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// MinioUploader stores exports in an S3-compatible bucket.
type MinioUploader struct {
	client *minio.Client
	bucket string
}

// NewMinioUploader connects to endpoint and creates bucket when missing.
func NewMinioUploader(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioUploader, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return &MinioUploader{client: client, bucket: bucket}, nil
}

func (u *MinioUploader) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := u.client.PutObject(ctx, u.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", path.Base(key)))
	link, err := u.client.PresignedGetObject(ctx, u.bucket, key, publishExpiry, params)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return link.String(), nil
}

func objectKey(doc Document, filename string) string {
	return fmt.Sprintf("exports/%s/%d/%s", doc.ID, doc.Version, filename)
}
