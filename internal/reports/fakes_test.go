package reports_test

import (
	"context"
	"io"

	"github.com/dvloznov/fraud-reports/internal/reports"
)

// MockArtifactStore wraps another store and lets tests override single calls.
type MockArtifactStore struct {
	reports.ArtifactStore

	BucketExistsFunc func(ctx context.Context) (bool, error)
	CreateBucketFunc func(ctx context.Context) error
	SetPolicyFunc    func(ctx context.Context, policy reports.AccessPolicy) error
	PutFunc          func(ctx context.Context, name string, data []byte, contentType string) error
	GetFunc          func(ctx context.Context, name string) (io.ReadCloser, error)

	calls int
}

func (m *MockArtifactStore) BucketExists(ctx context.Context) (bool, error) {
	m.calls++
	if m.BucketExistsFunc != nil {
		return m.BucketExistsFunc(ctx)
	}
	return m.ArtifactStore.BucketExists(ctx)
}

func (m *MockArtifactStore) CreateBucket(ctx context.Context) error {
	m.calls++
	if m.CreateBucketFunc != nil {
		return m.CreateBucketFunc(ctx)
	}
	return m.ArtifactStore.CreateBucket(ctx)
}

func (m *MockArtifactStore) SetPolicy(ctx context.Context, policy reports.AccessPolicy) error {
	m.calls++
	if m.SetPolicyFunc != nil {
		return m.SetPolicyFunc(ctx, policy)
	}
	return m.ArtifactStore.SetPolicy(ctx, policy)
}

func (m *MockArtifactStore) Put(ctx context.Context, name string, data []byte, contentType string) error {
	m.calls++
	if m.PutFunc != nil {
		return m.PutFunc(ctx, name, data, contentType)
	}
	return m.ArtifactStore.Put(ctx, name, data, contentType)
}

func (m *MockArtifactStore) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	m.calls++
	if m.GetFunc != nil {
		return m.GetFunc(ctx, name)
	}
	return m.ArtifactStore.Get(ctx, name)
}

// MockRecordStore wraps another record store and lets tests override single calls.
type MockRecordStore struct {
	reports.RecordStore

	DrainAllFunc   func(ctx context.Context, account reports.Account) (reports.Batch, error)
	RecordLinkFunc func(ctx context.Context, account reports.Account, link string) error
	RequeueFunc    func(ctx context.Context, account reports.Account, batchID string) error
	AckFunc        func(ctx context.Context, account reports.Account, batchID string) error
}

func (m *MockRecordStore) DrainAll(ctx context.Context, account reports.Account) (reports.Batch, error) {
	if m.DrainAllFunc != nil {
		return m.DrainAllFunc(ctx, account)
	}
	return m.RecordStore.DrainAll(ctx, account)
}

func (m *MockRecordStore) RecordLink(ctx context.Context, account reports.Account, link string) error {
	if m.RecordLinkFunc != nil {
		return m.RecordLinkFunc(ctx, account, link)
	}
	return m.RecordStore.RecordLink(ctx, account, link)
}

func (m *MockRecordStore) Requeue(ctx context.Context, account reports.Account, batchID string) error {
	if m.RequeueFunc != nil {
		return m.RequeueFunc(ctx, account, batchID)
	}
	return m.RecordStore.Requeue(ctx, account, batchID)
}

func (m *MockRecordStore) Ack(ctx context.Context, account reports.Account, batchID string) error {
	if m.AckFunc != nil {
		return m.AckFunc(ctx, account, batchID)
	}
	return m.RecordStore.Ack(ctx, account, batchID)
}

// MockLedger collects reports passed to RecordReport.
type MockLedger struct {
	RecordReportFunc func(ctx context.Context, report reports.GeneratedReport) error
	Reports          []reports.GeneratedReport
}

func (m *MockLedger) RecordReport(ctx context.Context, report reports.GeneratedReport) error {
	m.Reports = append(m.Reports, report)
	if m.RecordReportFunc != nil {
		return m.RecordReportFunc(ctx, report)
	}
	return nil
}
