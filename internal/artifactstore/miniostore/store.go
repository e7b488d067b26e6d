package miniostore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/dvloznov/fraud-reports/internal/reports"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/s3utils"
)

// objectAPI is the part of *minio.Client the store uses.
type objectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	SetBucketPolicy(ctx context.Context, bucketName, policy string) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// openFunc opens an object for reading and surfaces lookup errors eagerly.
type openFunc func(ctx context.Context, bucket, name string) (io.ReadCloser, error)

// Config holds the connection settings of an S3 compatible endpoint.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
	Region    string
	Bucket    string
}

// Store implements reports.ArtifactStore on MinIO or any S3 compatible service.
type Store struct {
	api    objectAPI
	open   openFunc
	bucket string
	region string
}

// NewStore connects to the endpoint described by cfg. The client is created
// once and shared by all requests.
func NewStore(cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating minio client for %s: %w", cfg.Endpoint, err)
	}
	return newStore(client, openWith(client), cfg.Bucket, cfg.Region), nil
}

func newStore(api objectAPI, open openFunc, bucket, region string) *Store {
	return &Store{
		api:    api,
		open:   open,
		bucket: bucket,
		region: region,
	}
}

// openWith reads through client. GetObject is lazy, so the object is
// stat'ed before returning to report a missing key at open time.
func openWith(client *minio.Client) openFunc {
	return func(ctx context.Context, bucket, name string) (io.ReadCloser, error) {
		obj, err := client.GetObject(ctx, bucket, name, minio.GetObjectOptions{})
		if err != nil {
			return nil, err
		}
		if _, err := obj.Stat(); err != nil {
			obj.Close()
			return nil, err
		}
		return obj, nil
	}
}

// BucketExists implements reports.ArtifactStore.
func (s *Store) BucketExists(ctx context.Context) (bool, error) {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return false, classify("BucketExists", s.bucket, err)
	}
	return exists, nil
}

// CreateBucket implements reports.ArtifactStore.
func (s *Store) CreateBucket(ctx context.Context) error {
	err := s.api.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	if err == nil || bucketAlreadyExists(err) {
		return nil
	}
	return classify("CreateBucket", s.bucket, err)
}

// SetPolicy implements reports.ArtifactStore. S3 replaces the bucket policy
// wholesale, so applying the same policy twice is harmless.
func (s *Store) SetPolicy(ctx context.Context, policy reports.AccessPolicy) error {
	doc, err := RenderPolicy(s.bucket, policy)
	if err != nil {
		return fmt.Errorf("SetPolicy: %w", err)
	}
	if err := s.api.SetBucketPolicy(ctx, s.bucket, doc); err != nil {
		return classify("SetPolicy", s.bucket, err)
	}
	return nil
}

// Put implements reports.ArtifactStore.
func (s *Store) Put(ctx context.Context, name string, data []byte, contentType string) error {
	if err := checkName(name); err != nil {
		return fmt.Errorf("Put: %w", err)
	}

	_, err := s.api.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return classify("Put", name, err)
	}
	return nil
}

// Get implements reports.ArtifactStore.
func (s *Store) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := checkName(name); err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	rc, err := s.open(ctx, s.bucket, name)
	if err != nil {
		return nil, classify("Get", name, err)
	}
	return rc, nil
}

func checkName(name string) error {
	if err := reports.CheckObjectName(name); err != nil {
		return err
	}
	if err := s3utils.CheckValidObjectName(name); err != nil {
		return fmt.Errorf("%w: %v", reports.ErrInvalidObjectName, err)
	}
	return nil
}

func bucketAlreadyExists(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
		return true
	}
	return false
}

// classify maps S3 error responses onto the report error taxonomy. Anything
// unrecognised is treated as the store being unavailable.
func classify(op, target string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket":
		return fmt.Errorf("%s %s: %w", op, target, reports.ErrObjectNotFound)
	case resp.Code == "XMinioInvalidObjectName" || resp.Code == "InvalidObjectName" || resp.Code == "KeyTooLongError":
		return fmt.Errorf("%s %s: %w", op, target, reports.ErrInvalidObjectName)
	case resp.Code == "" && resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", op, target, reports.ErrObjectNotFound)
	}
	return fmt.Errorf("%s %s: %w: %v", op, target, reports.ErrStoreUnavailable, err)
}

// Ensure Store implements reports.ArtifactStore.
var _ reports.ArtifactStore = (*Store)(nil)
