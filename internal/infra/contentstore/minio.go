package contentstore

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/totegamma/healthvault/internal/domain"
)

// MinioStore keeps blobs in an S3-compatible bucket, named by their CID.
type MinioStore struct {
	client *minio.Client
	bucket string
}

type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func NewMinioStore(ctx context.Context, opts MinioOptions) (*MinioStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "NewMinioStore: minio.New failed")
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, "NewMinioStore: BucketExists failed")
	}
	if !exists {
		err = client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{})
		if err != nil {
			return nil, errors.Wrap(err, "NewMinioStore: MakeBucket failed")
		}
	}

	return &MinioStore{client: client, bucket: opts.Bucket}, nil
}

func (s *MinioStore) Put(ctx context.Context, data []byte) (string, error) {
	locator, err := Locator(data)
	if err != nil {
		return "", errors.Wrap(domain.ErrStorageFailure, err.Error())
	}

	_, err = s.client.PutObject(ctx, s.bucket, locator, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", errors.Wrapf(domain.ErrStorageFailure, "minio put: %v", err)
	}
	return locator, nil
}

func (s *MinioStore) Get(ctx context.Context, locator string) ([]byte, error) {
	c, err := parseLocator(locator)
	if err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, c.String(), minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapError("minio get", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.mapError("minio read", err)
	}
	if err := verify(c, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *MinioStore) mapError(op string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return domain.ErrBlobNotFound
	}
	return errors.Wrapf(domain.ErrStorageFailure, "%s: %v", op, err)
}
