// Package minio archives raw document text in object storage. Postgres
// keeps metadata and extracted fields only; the archive is the durable
// home of full text, and reprocessing reads it back from here.
package minio

import (
	"context"
	"io"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/opentenancy/caseintel/internal/config"
	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	"github.com/opentenancy/caseintel/pkg/errors"
)

var (
	// ErrObjectNotFound reports a key with no object behind it.
	ErrObjectNotFound = errors.New(errors.ErrCodeStorageObjectNotFound, "object not found")
)

// ObjectStoreAPI abstracts the object-store operations the archive uses,
// so tests can substitute a fake.
type ObjectStoreAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket, region string) error
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	StatObject(ctx context.Context, bucket, key string) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucket, key string) error
}

// Client wraps the minio SDK with the single caseintel bucket, created on
// startup when absent.
type Client struct {
	store  ObjectStoreAPI
	bucket string
	logger logging.Logger
}

// NewClient connects to the object store and ensures the archive bucket
// exists.
func NewClient(cfg config.MinIOConfig, log logging.Logger) (*Client, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if cfg.Endpoint == "" {
		return nil, errors.New(errors.ErrCodeValidation, "minio endpoint required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New(errors.ErrCodeValidation, "minio bucket required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create minio client")
	}

	c := &Client{
		store:  &sdkStore{client: mc},
		bucket: cfg.Bucket,
		logger: log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.ensureBucket(ctx, cfg.Region); err != nil {
		return nil, err
	}

	log.Info("MinIO client connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
		logging.Bool("ssl", cfg.UseSSL),
	)
	return c, nil
}

func (c *Client) ensureBucket(ctx context.Context, region string) error {
	exists, err := c.store.BucketExists(ctx, c.bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageUnavailable, "minio connection failed")
	}
	if exists {
		return nil
	}

	if err := c.store.MakeBucket(ctx, c.bucket, region); err != nil {
		// Another instance may have created it between the check and here.
		if exists, checkErr := c.store.BucketExists(ctx, c.bucket); checkErr == nil && exists {
			return nil
		}
		return errors.Wrapf(err, errors.ErrCodeStorageUnavailable, "failed to create bucket %s", c.bucket)
	}
	c.logger.Info("Bucket created", logging.String("bucket", c.bucket))
	return nil
}

// Bucket returns the archive bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// Ping verifies the store is reachable and the bucket still exists.
func (c *Client) Ping(ctx context.Context) error {
	exists, err := c.store.BucketExists(ctx, c.bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageUnavailable, "minio ping failed")
	}
	if !exists {
		return errors.Newf(errors.ErrCodeStorageUnavailable, "bucket %s missing", c.bucket)
	}
	return nil
}

// sdkStore adapts *minio.Client to ObjectStoreAPI. The SDK reports a
// missing key lazily on the first read, so GetObject stats up front to
// surface ErrObjectNotFound at call time.
type sdkStore struct {
	client *minio.Client
}

func (s *sdkStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return s.client.BucketExists(ctx, bucket)
}

func (s *sdkStore) MakeBucket(ctx context.Context, bucket, region string) error {
	return s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region})
}

func (s *sdkStore) PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) (minio.UploadInfo, error) {
	return s.client.PutObject(ctx, bucket, key, reader, size, minio.PutObjectOptions{ContentType: contentType})
}

func (s *sdkStore) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, mapNoSuchKey(err)
	}
	return obj, nil
}

func (s *sdkStore) StatObject(ctx context.Context, bucket, key string) (minio.ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return minio.ObjectInfo{}, mapNoSuchKey(err)
	}
	return info, nil
}

func (s *sdkStore) RemoveObject(ctx context.Context, bucket, key string) error {
	return s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
}

func mapNoSuchKey(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrObjectNotFound
	}
	return err
}
