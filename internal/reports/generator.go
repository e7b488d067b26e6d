package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// GenerateStatus tells the two successful outcomes of Generate apart.
type GenerateStatus string

const (
	// GenerateNoPendingRecords means the account had nothing to report.
	GenerateNoPendingRecords GenerateStatus = "no_pending_records"
	// GenerateCreated means a new artifact was written and its link recorded.
	GenerateCreated GenerateStatus = "created"
)

// GenerateOutcome is the result of a successful Generate call.
type GenerateOutcome struct {
	Status GenerateStatus
	Report GeneratedReport
}

// Link returns the download link of the generated report, if any.
func (o GenerateOutcome) Link() string {
	return o.Report.Link
}

// BucketProvisioner is satisfied by *Provisioner.
type BucketProvisioner interface {
	EnsureProvisioned(ctx context.Context) error
}

// Generator turns an account's pending records into a report artifact.
type Generator struct {
	records     RecordStore
	artifacts   ArtifactStore
	provisioner BucketProvisioner
	links       LinkBuilder
	log         zerolog.Logger

	ledger   Ledger
	recorder Recorder
	now      func() time.Time
}

// GeneratorOption customises a Generator.
type GeneratorOption func(*Generator)

// WithLedger records every generated report in ledger.
func WithLedger(ledger Ledger) GeneratorOption {
	return func(g *Generator) { g.ledger = ledger }
}

// WithRecorder reports generator events to recorder.
func WithRecorder(recorder Recorder) GeneratorOption {
	return func(g *Generator) { g.recorder = recorder }
}

// WithClock overrides the time source used for object names.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) { g.now = now }
}

// NewGenerator creates a Generator.
func NewGenerator(records RecordStore, artifacts ArtifactStore, provisioner BucketProvisioner, links LinkBuilder, log zerolog.Logger, opts ...GeneratorOption) *Generator {
	g := &Generator{
		records:     records,
		artifacts:   artifacts,
		provisioner: provisioner,
		links:       links,
		log:         log,
		recorder:    nopRecorder{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate drains the pending records of account into a new artifact.
//
// Drained records stay staged until the artifact is durable. A failure before
// that puts them back on the pending list; if even that fails they return to
// the pending flow once their staging lease expires.
func (g *Generator) Generate(ctx context.Context, account Account) (GenerateOutcome, error) {
	log := g.log.With().Str("account", string(account)).Logger()

	batch, err := g.records.DrainAll(ctx, account)
	if err != nil {
		g.recorder.GenerateFailed("drain")
		return GenerateOutcome{}, fmt.Errorf("Generate: draining pending records: %w", err)
	}
	if len(batch.Records) == 0 {
		g.recorder.NothingPending()
		return GenerateOutcome{Status: GenerateNoPendingRecords}, nil
	}
	log = log.With().Str("batch_id", batch.ID).Logger()

	data := encodeRecords(batch.Records)

	if err := g.provisioner.EnsureProvisioned(ctx); err != nil {
		g.recorder.GenerateFailed("provision")
		return GenerateOutcome{}, g.requeue(ctx, log, account, batch, fmt.Errorf("Generate: provisioning bucket: %w", err))
	}

	createdAt := g.now().UTC()
	name := ObjectName(account, createdAt)

	if err := g.artifacts.Put(ctx, name, data, ContentType); err != nil {
		g.recorder.GenerateFailed("put")
		return GenerateOutcome{}, g.requeue(ctx, log, account, batch, fmt.Errorf("Generate: writing artifact %s: %w", name, err))
	}

	report := GeneratedReport{
		ReportID:    uuid.NewString(),
		Account:     account,
		ObjectName:  name,
		Link:        g.links.Link(name),
		RecordCount: len(batch.Records),
		SizeBytes:   len(data),
		CreatedAt:   createdAt,
	}

	// The artifact is durable from here on. The batch is acknowledged even
	// when the link cannot be recorded; requeueing would report the records
	// twice.
	if err := g.records.RecordLink(ctx, account, report.Link); err != nil {
		g.recorder.GenerateFailed("record_link")
		g.ack(ctx, log, account, batch)
		log.Error().Err(err).Str("object_name", name).Msg("Artifact written but link not recorded")
		return GenerateOutcome{}, fmt.Errorf("Generate: recording link for %s: %w", name, err)
	}
	g.ack(ctx, log, account, batch)

	g.recorder.ReportGenerated(report.RecordCount, report.SizeBytes)

	if g.ledger != nil {
		if err := g.ledger.RecordReport(ctx, report); err != nil {
			log.Warn().Err(err).Str("object_name", name).Msg("Failed to record report in ledger")
		}
	}

	log.Info().
		Str("object_name", name).
		Int("records", report.RecordCount).
		Int("bytes", report.SizeBytes).
		Msg("Report generated")

	return GenerateOutcome{Status: GenerateCreated, Report: report}, nil
}

// requeue returns a staged batch to the pending list after a failure
// downstream of the drain. If that fails too, both errors are returned and the
// records are logged in full; the batch itself stays staged and is folded back
// into a later drain once its lease expires.
func (g *Generator) requeue(ctx context.Context, log zerolog.Logger, account Account, batch Batch, cause error) error {
	// The caller's context may be what failed; the requeue still has to run.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requeueTimeout)
	defer cancel()

	if err := g.records.Requeue(rctx, account, batch.ID); err != nil {
		log.Error().
			Err(err).
			AnErr("cause", cause).
			RawJSON("records", encodeRecords(batch.Records)).
			Msg("Failed to requeue drained records, they stay staged until the lease expires")
		return errors.Join(cause, fmt.Errorf("Generate: requeueing %d records: %w", len(batch.Records), err))
	}

	g.recorder.RecordsRequeued(len(batch.Records))
	log.Warn().Err(cause).Int("records", len(batch.Records)).Msg("Generation failed, records requeued")
	return cause
}

// ack drops a batch whose records are in a durable artifact. A failed ack is
// only logged: the report exists, and the staged copy is reported again once
// its lease expires.
func (g *Generator) ack(ctx context.Context, log zerolog.Logger, account Account, batch Batch) {
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requeueTimeout)
	defer cancel()

	if err := g.records.Ack(actx, account, batch.ID); err != nil {
		log.Error().Err(err).Int("records", len(batch.Records)).Msg("Failed to acknowledge drained records, they will be reported again after the lease expires")
	}
}

const requeueTimeout = 10 * time.Second

type nopRecorder struct{}

func (nopRecorder) ReportGenerated(int, int) {}
func (nopRecorder) NothingPending()          {}
func (nopRecorder) GenerateFailed(string)    {}
func (nopRecorder) RecordsRequeued(int)      {}
