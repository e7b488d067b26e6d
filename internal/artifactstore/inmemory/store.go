package inmemory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dvloznov/fraud-reports/internal/reports"
)

// Object is a stored artifact together with its content type.
type Object struct {
	Data        []byte
	ContentType string
}

// Store is an in-memory implementation of reports.ArtifactStore holding a
// single bucket. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	exists  bool
	policy  *reports.AccessPolicy
	objects map[string]Object

	// Counters used by tests to check how the store was driven.
	BucketChecks   int
	CreateAttempts int
}

// NewStore creates a store whose bucket does not exist yet.
func NewStore() *Store {
	return &Store{
		objects: make(map[string]Object),
	}
}

// BucketExists implements reports.ArtifactStore.
func (s *Store) BucketExists(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.BucketChecks++
	return s.exists, nil
}

// CreateBucket implements reports.ArtifactStore. Creating an existing bucket
// succeeds.
func (s *Store) CreateBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CreateAttempts++
	s.exists = true
	return nil
}

// SetPolicy implements reports.ArtifactStore.
func (s *Store) SetPolicy(ctx context.Context, policy reports.AccessPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.exists {
		return fmt.Errorf("SetPolicy: %w: bucket does not exist", reports.ErrStoreUnavailable)
	}
	s.policy = &policy
	return nil
}

// Policy returns the policy last applied to the bucket, if any.
func (s *Store) Policy() (reports.AccessPolicy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.policy == nil {
		return reports.AccessPolicy{}, false
	}
	return *s.policy, true
}

// Put implements reports.ArtifactStore.
func (s *Store) Put(ctx context.Context, name string, data []byte, contentType string) error {
	if err := reports.CheckObjectName(name); err != nil {
		return fmt.Errorf("Put: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.exists {
		return fmt.Errorf("Put: %w: bucket does not exist", reports.ErrStoreUnavailable)
	}
	s.objects[name] = Object{
		Data:        append([]byte(nil), data...),
		ContentType: contentType,
	}
	return nil
}

// Get implements reports.ArtifactStore.
func (s *Store) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := reports.CheckObjectName(name); err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[name]
	if !ok {
		return nil, fmt.Errorf("Get: %w: %s", reports.ErrObjectNotFound, name)
	}
	return io.NopCloser(bytes.NewReader(obj.Data)), nil
}

// Objects returns a snapshot of all stored objects keyed by name.
func (s *Store) Objects() map[string]Object {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Object, len(s.objects))
	for name, obj := range s.objects {
		out[name] = obj
	}
	return out
}

// Ensure Store implements reports.ArtifactStore.
var _ reports.ArtifactStore = (*Store)(nil)
