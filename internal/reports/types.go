package reports

import (
	"context"
	"io"
	"time"
)

// Account is an account identifier in the form 0000.00000000. It namespaces
// all per-account state in the fast store.
type Account string

// PendingRecord is a flagged transaction as appended by the producer. The
// payload is an already valid JSON value and is never parsed here.
type PendingRecord []byte

// ContentType is the content type every report artifact is written with.
const ContentType = "application/octet-stream"

// Batch is a set of records taken off an account's pending list by one
// drain. The records stay staged in the fast store until the batch is
// acknowledged or requeued, so losing the drain's reply never loses them.
type Batch struct {
	// ID identifies the staged batch. It is empty when nothing was drained.
	ID      string
	Records []PendingRecord
}

// RecordStore is the fast store holding pending records and report links.
type RecordStore interface {
	// DrainAll atomically moves the pending list for account into a new
	// staged batch and returns it. Batches whose lease expired without an
	// Ack or Requeue are folded into the new batch ahead of the pending
	// records. An empty list yields a batch with no ID, an empty slice and
	// a nil error.
	DrainAll(ctx context.Context, account Account) (Batch, error)

	// Ack drops a staged batch whose records are in a durable artifact.
	Ack(ctx context.Context, account Account, batchID string) error

	// Requeue puts a staged batch back at the head of the pending list, in
	// order. Requeueing a batch that is already gone is a no-op.
	Requeue(ctx context.Context, account Account, batchID string) error

	// RecordLink adds link to the account's link set. Duplicates are no-ops.
	RecordLink(ctx context.Context, account Account, link string) error

	// ListLinks returns the account's link set, possibly empty.
	ListLinks(ctx context.Context, account Account) ([]string, error)
}

// AccountScanner lists accounts that currently have pending records or
// staged batches whose lease expired.
type AccountScanner interface {
	PendingAccounts(ctx context.Context) ([]Account, error)
}

// ArtifactStore is the durable object store holding report artifacts in a
// single bucket.
type ArtifactStore interface {
	BucketExists(ctx context.Context) (bool, error)

	// CreateBucket creates the bucket. An already existing bucket is not an error.
	CreateBucket(ctx context.Context) error

	// SetPolicy applies policy to the bucket. Re-applying is not an error.
	SetPolicy(ctx context.Context, policy AccessPolicy) error

	// Put writes data under name, replacing any existing object.
	Put(ctx context.Context, name string, data []byte, contentType string) error

	// Get opens the named object. It fails with ErrObjectNotFound or
	// ErrInvalidObjectName. The caller must close the reader.
	Get(ctx context.Context, name string) (io.ReadCloser, error)
}

// GeneratedReport describes an artifact written by the generator.
type GeneratedReport struct {
	ReportID    string
	Account     Account
	ObjectName  string
	Link        string
	RecordCount int
	SizeBytes   int
	CreatedAt   time.Time
}

// Ledger keeps an audit trail of generated reports.
type Ledger interface {
	RecordReport(ctx context.Context, report GeneratedReport) error
}

// Recorder receives generator events for metrics.
type Recorder interface {
	ReportGenerated(records, bytes int)
	NothingPending()
	GenerateFailed(stage string)
	RecordsRequeued(records int)
}

// encodeRecords renders records as a JSON array in their original order.
// Each record is copied verbatim.
func encodeRecords(records []PendingRecord) []byte {
	size := 2
	for _, r := range records {
		size += len(r) + 1
	}
	buf := make([]byte, 0, size)
	buf = append(buf, '[')
	for i, r := range records {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, r...)
	}
	return append(buf, ']')
}
