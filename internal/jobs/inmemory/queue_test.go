package inmemory

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/fraud-reports/internal/jobs"
)

func newTestQueue(t *testing.T, store *Store, maxRetries int) *Queue {
	t.Helper()
	q := NewQueue(store, QueueOptions{Workers: 2, MaxRetries: maxRetries, Backoff: time.Millisecond})
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.GenerateReportJob {
	t.Helper()
	var got *jobs.GenerateReportJob
	require.Eventually(t, func() bool {
		j, err := store.GetJob(context.Background(), jobID)
		if err != nil {
			return false
		}
		got = j
		return j.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func TestQueue_PublishSetsDefaults(t *testing.T) {
	store := NewStore()
	q := newTestQueue(t, store, 0)

	job := &jobs.GenerateReportJob{Account: "1234.12345678"}
	require.NoError(t, q.PublishGenerateReport(context.Background(), job))

	require.NotEmpty(t, job.JobID)
	require.Equal(t, jobs.JobTypeGenerateReport, job.Type)
	require.Equal(t, jobs.JobStatusPending, job.Status)
	require.Equal(t, DefaultMaxRetries, job.MaxRetries)
	require.False(t, job.CreatedAt.IsZero())

	saved, err := store.GetJob(context.Background(), job.JobID)
	require.NoError(t, err)
	require.Equal(t, job.Account, saved.Account)
}

func TestQueue_ProcessesJob(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := newTestQueue(t, store, 0)

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.GenerateReportJob) error {
		job.Link = "http://example/" + string(job.Account)
		return nil
	}))

	job := &jobs.GenerateReportJob{Account: "1234.12345678"}
	require.NoError(t, q.PublishGenerateReport(ctx, job))

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	require.Equal(t, "http://example/1234.12345678", done.Link)
	require.NotNil(t, done.StartedAt)
	require.NotNil(t, done.CompletedAt)
	require.Zero(t, done.RetryCount)
}

func TestQueue_RetriesUntilSuccess(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := newTestQueue(t, store, 3)

	var attempts atomic.Int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.GenerateReportJob) error {
		if attempts.Add(1) < 3 {
			return errors.New("store unavailable")
		}
		return nil
	}))

	job := &jobs.GenerateReportJob{Account: "1234.12345678"}
	require.NoError(t, q.PublishGenerateReport(ctx, job))

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	require.Equal(t, 2, done.RetryCount)
	require.Empty(t, done.Error)
	require.EqualValues(t, 3, attempts.Load())
}

func TestQueue_FailsAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := newTestQueue(t, store, 1)

	var attempts atomic.Int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.GenerateReportJob) error {
		attempts.Add(1)
		return errors.New("bucket policy rejected")
	}))

	job := &jobs.GenerateReportJob{Account: "1234.12345678"}
	require.NoError(t, q.PublishGenerateReport(ctx, job))

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	require.Equal(t, 1, failed.RetryCount)
	require.Equal(t, "bucket policy rejected", failed.Error)
	require.EqualValues(t, 2, attempts.Load())
}

func TestQueue_NoRetriesRunsOnce(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := newTestQueue(t, store, NoRetries)

	var attempts atomic.Int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.GenerateReportJob) error {
		attempts.Add(1)
		return errors.New("store unavailable")
	}))

	job := &jobs.GenerateReportJob{Account: "1234.12345678"}
	require.NoError(t, q.PublishGenerateReport(ctx, job))

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	require.Zero(t, failed.RetryCount)
	require.Zero(t, failed.MaxRetries)
	require.EqualValues(t, 1, attempts.Load())
}

func TestQueue_RetryAfterStopMarksJobFailed(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	var logs bytes.Buffer
	q := NewQueue(store, QueueOptions{
		Workers:    1,
		MaxRetries: 2,
		Backoff:    200 * time.Millisecond,
		Log:        zerolog.New(&logs),
	})
	t.Cleanup(func() { _ = q.Close() })

	var attempts atomic.Int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.GenerateReportJob) error {
		attempts.Add(1)
		return errors.New("store unavailable")
	}))

	job := &jobs.GenerateReportJob{Account: "1234.12345678"}
	require.NoError(t, q.PublishGenerateReport(ctx, job))
	waitForStatus(t, store, job.JobID, jobs.JobStatusRetrying)

	// The retry timer fires after the queue has stopped.
	require.NoError(t, q.Close())

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	require.Equal(t, 1, failed.RetryCount)
	require.Contains(t, failed.Error, "store unavailable")
	require.Contains(t, failed.Error, jobs.ErrQueueClosed.Error())
	require.NotNil(t, failed.CompletedAt)
	require.EqualValues(t, 1, attempts.Load())

	// The log line is written before the failed status is saved.
	require.Contains(t, logs.String(), "Failed to re-enqueue job")
	require.Contains(t, logs.String(), job.JobID)
}

func TestQueue_ClosedQueueRejects(t *testing.T) {
	q := NewQueue(nil, QueueOptions{})
	require.NoError(t, q.Close())
	require.NoError(t, q.Close(), "second close is a no-op")

	err := q.PublishGenerateReport(context.Background(), &jobs.GenerateReportJob{Account: "1234.12345678"})
	require.ErrorIs(t, err, jobs.ErrQueueClosed)

	err = q.Start(context.Background(), func(context.Context, *jobs.GenerateReportJob) error { return nil })
	require.ErrorIs(t, err, jobs.ErrQueueClosed)
}

func TestQueueOptions_Defaults(t *testing.T) {
	o := QueueOptions{}.withDefaults()
	require.Equal(t, DefaultBufferSize, o.BufferSize)
	require.Equal(t, DefaultWorkers, o.Workers)
	require.Equal(t, DefaultMaxRetries, o.MaxRetries)
	require.Equal(t, DefaultBackoff, o.Backoff)

	require.Zero(t, QueueOptions{MaxRetries: NoRetries}.withDefaults().MaxRetries)
}
