package gcsstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/iam"
	"cloud.google.com/go/storage"
	"github.com/dvloznov/fraud-reports/internal/reports"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Config describes the GCS bucket holding report artifacts.
type Config struct {
	// Project is the GCP project the bucket is created in.
	Project string
	// Bucket is the bucket name.
	Bucket string
	// Location is the bucket location used on creation, e.g. "EU".
	Location string
	// Endpoint overrides the storage endpoint, for emulators. Requests to a
	// custom endpoint are sent unauthenticated.
	Endpoint string
}

// Store implements reports.ArtifactStore on Google Cloud Storage.
// It assumes Application Default Credentials are configured
// (gcloud auth application-default login) unless an endpoint is set.
type Store struct {
	client *storage.Client
	bucket *storage.BucketHandle
	cfg    Config
}

// NewStore creates the shared storage client.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewStore: create storage client: %w", err)
	}

	return &Store{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		cfg:    cfg,
	}, nil
}

// Close releases the storage client.
func (s *Store) Close() error {
	return s.client.Close()
}

// BucketExists implements reports.ArtifactStore.
func (s *Store) BucketExists(ctx context.Context) (bool, error) {
	_, err := s.bucket.Attrs(ctx)
	if errors.Is(err, storage.ErrBucketNotExist) {
		return false, nil
	}
	if err != nil {
		return false, classify("BucketExists", s.cfg.Bucket, err)
	}
	return true, nil
}

// CreateBucket implements reports.ArtifactStore. A 409 from GCS means the
// bucket already exists, which counts as success.
func (s *Store) CreateBucket(ctx context.Context) error {
	attrs := &storage.BucketAttrs{
		Location: s.cfg.Location,
		UniformBucketLevelAccess: storage.UniformBucketLevelAccess{
			Enabled: true,
		},
	}

	err := s.bucket.Create(ctx, s.cfg.Project, attrs)
	if err == nil || isConflict(err) {
		return nil
	}
	return classify("CreateBucket", s.cfg.Bucket, err)
}

// SetPolicy implements reports.ArtifactStore by adding IAM bindings for the
// policy principal. Bindings that already exist are left as they are.
func (s *Store) SetPolicy(ctx context.Context, policy reports.AccessPolicy) error {
	handle := s.bucket.IAM()

	current, err := handle.Policy(ctx)
	if err != nil {
		return classify("SetPolicy", s.cfg.Bucket, err)
	}

	member := Member(policy.Principal)
	changed := false
	for _, role := range Roles(policy) {
		if current.HasRole(member, role) {
			continue
		}
		current.Add(member, role)
		changed = true
	}
	if !changed {
		return nil
	}

	if err := handle.SetPolicy(ctx, current); err != nil {
		return classify("SetPolicy", s.cfg.Bucket, err)
	}
	return nil
}

// Put implements reports.ArtifactStore.
func (s *Store) Put(ctx context.Context, name string, data []byte, contentType string) error {
	if err := reports.CheckObjectName(name); err != nil {
		return fmt.Errorf("Put: %w", err)
	}

	w := s.bucket.Object(name).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return classify("Put", name, err)
	}

	// Close to finalize the upload
	if err := w.Close(); err != nil {
		return classify("Put", name, err)
	}
	return nil
}

// Get implements reports.ArtifactStore.
func (s *Store) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := reports.CheckObjectName(name); err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	r, err := s.bucket.Object(name).NewReader(ctx)
	if err != nil {
		return nil, classify("Get", name, err)
	}
	return r, nil
}

func isConflict(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}

// classify maps GCS errors onto the report error taxonomy. A 400 only names
// a bad object for the object operations; on bucket operations it is a store
// failure like any other.
func classify(op, target string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("%s %s: %w", op, target, reports.ErrObjectNotFound)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusNotFound:
			return fmt.Errorf("%s %s: %w", op, target, reports.ErrObjectNotFound)
		case http.StatusBadRequest:
			if op == "Get" || op == "Put" {
				return fmt.Errorf("%s %s: %w: %v", op, target, reports.ErrInvalidObjectName, apiErr.Message)
			}
		}
	}

	return fmt.Errorf("%s %s: %w: %v", op, target, reports.ErrStoreUnavailable, err)
}

// Member maps a policy principal to an IAM member. "*" is allUsers.
func Member(principal string) string {
	if principal == "*" || principal == "" {
		return iam.AllUsers
	}
	return principal
}

// Roles maps S3 style actions onto the narrowest predefined GCS roles that
// cover them.
func Roles(policy reports.AccessPolicy) []iam.RoleName {
	var roles []iam.RoleName
	if len(policy.BucketActions) > 0 {
		roles = append(roles, "roles/storage.legacyBucketReader")
	}

	write, read := false, false
	for _, action := range policy.ObjectActions {
		switch action {
		case "s3:PutObject", "s3:DeleteObject", "s3:AbortMultipartUpload", "s3:ListMultipartUploadParts":
			write = true
		case "s3:GetObject":
			read = true
		}
	}
	switch {
	case write:
		roles = append(roles, "roles/storage.objectAdmin")
	case read:
		roles = append(roles, "roles/storage.objectViewer")
	}
	return roles
}

// Ensure Store implements reports.ArtifactStore.
var _ reports.ArtifactStore = (*Store)(nil)
