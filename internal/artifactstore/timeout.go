// Package artifactstore holds helpers shared by the artifact store backends.
package artifactstore

import (
	"context"
	"io"
	"time"

	"github.com/dvloznov/fraud-reports/internal/reports"
)

// TimeoutStore bounds every bucket and write call of the wrapped store.
// Get is not bounded because the returned reader outlives the call.
type TimeoutStore struct {
	reports.ArtifactStore
	timeout time.Duration
}

// WithTimeout wraps store. A non-positive timeout returns store unchanged.
func WithTimeout(store reports.ArtifactStore, timeout time.Duration) reports.ArtifactStore {
	if timeout <= 0 {
		return store
	}
	return &TimeoutStore{ArtifactStore: store, timeout: timeout}
}

func (s *TimeoutStore) BucketExists(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.ArtifactStore.BucketExists(ctx)
}

func (s *TimeoutStore) CreateBucket(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.ArtifactStore.CreateBucket(ctx)
}

func (s *TimeoutStore) SetPolicy(ctx context.Context, policy reports.AccessPolicy) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.ArtifactStore.SetPolicy(ctx, policy)
}

func (s *TimeoutStore) Put(ctx context.Context, name string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.ArtifactStore.Put(ctx, name, data, contentType)
}

func (s *TimeoutStore) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	return s.ArtifactStore.Get(ctx, name)
}
