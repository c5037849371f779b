package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore keeps snapshots as objects in an S3-compatible bucket.
type MinioStore struct {
	cli    *minio.Client
	bucket string
	prefix string
}

// NewMinioStore connects to endpoint with static credentials.
func NewMinioStore(endpoint, ak, sk, bucket, prefix string, useSSL bool) (*MinioStore, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(ak, sk, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStore{cli: cli, bucket: bucket, prefix: prefix}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.cli.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return s.cli.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	}
	return nil
}

// ObjectKey returns the object holding name.
func (s *MinioStore) ObjectKey(name string) string {
	return path.Join(s.prefix, name+".bloom")
}

func putOptions(meta Meta) minio.PutObjectOptions {
	ts := meta.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return minio.PutObjectOptions{
		ContentType: "application/octet-stream",
		UserMetadata: map[string]string{
			"run-id": meta.RunID,
			"ts":     ts.UTC().Format(time.RFC3339),
		},
		// tags for quick filtering
		UserTags: map[string]string{
			"k":          strconv.Itoa(meta.HashFunctionCount),
			"bits":       strconv.Itoa(meta.BitCount),
			"truthiness": strconv.FormatFloat(meta.Truthiness, 'f', 6, 64),
		},
	}
}

// Save uploads blob, replacing any previous snapshot.
func (s *MinioStore) Save(ctx context.Context, name string, blob []byte, meta Meta) error {
	_, err := s.cli.PutObject(ctx, s.bucket, s.ObjectKey(name), bytes.NewReader(blob), int64(len(blob)), putOptions(meta))
	return err
}

// Load downloads the snapshot for name.
func (s *MinioStore) Load(ctx context.Context, name string) ([]byte, error) {
	key := s.ObjectKey(name)
	obj, err := s.cli.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapMinioErr(err, key)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapMinioErr(err, key)
	}
	return data, nil
}

func (s *MinioStore) Close() error { return nil }

func mapMinioErr(err error, key string) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound", "NoSuchBucket":
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return err
}
