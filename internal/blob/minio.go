package blob

import (
	"context"
	"io"
	"mime"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig describes how to reach an S3-compatible bucket.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// MinioStore keeps blobs as objects in a MinIO or S3-compatible bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioStore creates a store over an existing client.
// prefix is prepended to every object key (e.g. "library/").
func NewMinioStore(client *minio.Client, bucket, prefix string) *MinioStore {
	return &MinioStore{client: client, bucket: bucket, prefix: prefix}
}

// NewMinioClient builds a client from static credentials.
func NewMinioClient(cfg MinioConfig) (*minio.Client, error) {
	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
}

func (s *MinioStore) key(name string) string {
	return path.Join(s.prefix, name)
}

// Put uploads the blob. Object uploads are atomic: a failed upload leaves no object.
func (s *MinioStore) Put(ctx context.Context, name string, r io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key(name), r, size, s.putOptions(name))
	return err
}

func (s *MinioStore) putOptions(name string) minio.PutObjectOptions {
	opts := minio.PutObjectOptions{ContentType: mime.TypeByExtension(path.Ext(name))}
	if opts.ContentType == "" {
		opts.ContentType = "application/octet-stream"
	}
	return opts
}

// PutFile uploads the file at path; the file is left in place.
func (s *MinioStore) PutFile(ctx context.Context, name, path string) error {
	_, err := s.client.FPutObject(ctx, s.bucket, s.key(name), path, s.putOptions(name))
	return err
}

// Open stats the object first because GetObject does not report missing keys
// until the first read.
func (s *MinioStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key := s.key(name)
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// Exists reports whether the object is present.
func (s *MinioStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, s.key(name), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNoSuchKey(err) {
		return false, nil
	}
	return false, err
}

// Locate returns the s3:// URL of the object.
func (s *MinioStore) Locate(name string) string {
	return "s3://" + path.Join(s.bucket, s.key(name))
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}
