package document

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
)

// MinIOStore persists institution documents in a MinIO bucket under
// institution-documents/<owner-id>/. Object keys get a random suffix so
// re-submissions never overwrite an earlier document.
type MinIOStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// MinIOConfig carries the connection settings for the document bucket.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// NewMinIO connects to MinIO and ensures the document bucket exists.
func NewMinIO(ctx context.Context, cfg MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &MinIOStore{client: client, bucket: cfg.Bucket, publicURL: cfg.PublicURL}, nil
}

func (s *MinIOStore) Upload(ctx context.Context, doc Upload, ownerID id.UserID) (string, error) {
	key := fmt.Sprintf("institution-documents/%s/%s-%s",
		ownerID, uuid.NewString(), path.Base(doc.Filename))

	_, err := s.client.PutObject(ctx, s.bucket, key,
		bytes.NewReader(doc.Content), int64(len(doc.Content)),
		minio.PutObjectOptions{ContentType: doc.ContentType},
	)
	if err != nil {
		return "", fmt.Errorf("upload document: %w: %w", sentinel.ErrUnavailable, err)
	}

	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, key), nil
}
