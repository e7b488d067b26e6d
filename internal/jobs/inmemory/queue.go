package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/fraud-reports/internal/jobs"
)

// Default queue settings.
const (
	DefaultBufferSize = 100
	DefaultWorkers    = 5
	DefaultMaxRetries = 3
	DefaultBackoff    = time.Second
)

// NoRetries as QueueOptions.MaxRetries runs every job exactly once.
const NoRetries = -1

// QueueOptions configures a Queue. Zero values select the defaults; use
// NoRetries to disable retries.
type QueueOptions struct {
	BufferSize int
	Workers    int
	MaxRetries int
	// Backoff is multiplied by the retry count before a failed job is re-enqueued.
	Backoff time.Duration
	Log     zerolog.Logger
}

func (o QueueOptions) withDefaults() QueueOptions {
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.Backoff <= 0 {
		o.Backoff = DefaultBackoff
	}
	return o
}

// Queue is an in-memory job publisher and consumer backed by a channel.
// It is safe for concurrent use and suits single-instance deployments.
type Queue struct {
	jobChan   chan *jobs.GenerateReportJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	opts      QueueOptions
	closed    bool
}

// NewQueue creates a new in-memory job queue. store may be nil.
func NewQueue(store jobs.JobStore, opts QueueOptions) *Queue {
	opts = opts.withDefaults()
	return &Queue{
		jobChan:   make(chan *jobs.GenerateReportJob, opts.BufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		opts:      opts,
	}
}

// PublishGenerateReport enqueues a report generation job. It blocks while
// the buffer is full.
func (q *Queue) PublishGenerateReport(ctx context.Context, job *jobs.GenerateReportJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return jobs.ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	job.Type = jobs.JobTypeGenerateReport
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	// A job without its own limit takes the queue's.
	if job.MaxRetries == 0 {
		job.MaxRetries = q.opts.MaxRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("PublishGenerateReport: saving job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return jobs.ErrQueueClosed
	}
}

// Start starts the configured number of workers, each calling handler for
// the jobs it receives.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return jobs.ErrQueueClosed
	}
	q.mu.RUnlock()

	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob runs a single attempt and schedules a retry on failure.
func (q *Queue) processJob(ctx context.Context, job *jobs.GenerateReportJob, handler jobs.JobHandler) {
	job.Status = jobs.JobStatusRunning
	now := time.Now().UTC()
	job.StartedAt = &now
	q.save(ctx, job)

	err := handler(ctx, job)

	completedAt := time.Now().UTC()
	job.CompletedAt = &completedAt

	if err == nil {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		q.save(ctx, job)
		return
	}

	job.Error = err.Error()
	if job.RetryCount >= job.MaxRetries {
		job.Status = jobs.JobStatusFailed
		q.save(ctx, job)
		return
	}

	job.RetryCount++
	job.Status = jobs.JobStatusRetrying
	q.save(ctx, job)

	retry := *job
	retry.Status = jobs.JobStatusPending
	retry.StartedAt = nil
	retry.CompletedAt = nil
	time.AfterFunc(time.Duration(job.RetryCount)*q.opts.Backoff, func() {
		if err := q.PublishGenerateReport(ctx, &retry); err != nil {
			q.abandonRetry(ctx, &retry, err)
		}
	})
}

// abandonRetry marks a job failed when its retry could not be enqueued, so it
// does not sit in retrying forever.
func (q *Queue) abandonRetry(ctx context.Context, job *jobs.GenerateReportJob, err error) {
	q.opts.Log.Error().
		Err(err).
		Str("job_id", job.JobID).
		Str("account", string(job.Account)).
		Int("retry_count", job.RetryCount).
		Msg("Failed to re-enqueue job, marking it failed")

	completedAt := time.Now().UTC()
	job.Status = jobs.JobStatusFailed
	job.CompletedAt = &completedAt
	job.Error = fmt.Sprintf("%s; retry not enqueued: %v", job.Error, err)
	q.save(context.WithoutCancel(ctx), job)
}

func (q *Queue) save(ctx context.Context, job *jobs.GenerateReportJob) {
	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}
}

// Stop stops the queue and waits for in-flight jobs, bounded by ctx.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the queue without a deadline.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
