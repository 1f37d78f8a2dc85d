package minio

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"docrequests-backend/internal/shared/storage/object"
	"docrequests-backend/internal/shared/util"
)

// Store implements ObjectStore on any S3-compatible MinIO deployment.
type Store struct {
	client *minio.Client
	bucket string
}

// New connects to endpoint and ensures bucket exists.
func New(ctx context.Context, endpoint, accessKey, secretKey string, useSSL bool, bucket string) (*Store, error) {
	if endpoint == "" || bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket exists %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio make bucket %s: %w", bucket, err)
		}
	}

	return &Store{client: client, bucket: bucket}, nil
}

// Save streams the reader into the bucket under namespace.
func (s *Store) Save(ctx context.Context, namespace string, fileName string, r io.Reader) (string, int64, string, error) {
	sanitizedName, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", 0, "", fmt.Errorf("sanitize file name: %w", err)
	}
	ns, err := object.CleanKey(namespace)
	if err != nil {
		return "", 0, "", fmt.Errorf("namespace %q: %w", namespace, err)
	}

	storageKey := path.Join(ns, object.RandomID()+"_"+sanitizedName)

	mimeType, body, err := object.Sniff(r)
	if err != nil {
		return "", 0, "", err
	}

	// Size -1 lets the client switch to a multipart upload for unknown lengths.
	info, err := s.client.PutObject(ctx, s.bucket, storageKey, body, -1, minio.PutObjectOptions{
		ContentType:  mimeType,
		UserMetadata: map[string]string{"filename": sanitizedName},
	})
	if err != nil {
		return "", 0, "", fmt.Errorf("minio put object bucket=%s key=%s: %w", s.bucket, storageKey, err)
	}
	return storageKey, info.Size, mimeType, nil
}

// Open returns a reader over a stored object.
func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	clean, err := object.CleanKey(storageKey)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, clean, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get object bucket=%s key=%s: %w", s.bucket, clean, err)
	}
	// GetObject is lazy; Stat surfaces missing keys before the caller starts streaming.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("minio stat object bucket=%s key=%s: %w", s.bucket, clean, err)
	}
	return obj, nil
}

// Delete removes a stored object.
func (s *Store) Delete(ctx context.Context, storageKey string) error {
	clean, err := object.CleanKey(storageKey)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, clean, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio remove object bucket=%s key=%s: %w", s.bucket, clean, err)
	}
	return nil
}

var _ object.ObjectStore = (*Store)(nil)
